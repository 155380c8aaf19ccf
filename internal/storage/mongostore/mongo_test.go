package mongostore

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/eventlog"
)

func TestBuildURI(t *testing.T) {
	t.Run("discrete fields", func(t *testing.T) {
		uri := BuildURI(&configtypes.MongoConfig{
			Server:      "db.local",
			Port:        27017,
			Database:    "events",
			AuthDB:      "admin",
			User:        "svc",
			Password:    "p@ss",
			MinPoolSize: 5,
			MaxPoolSize: 10,
		})

		u, err := url.Parse(uri)
		require.NoError(t, err)
		assert.Equal(t, "mongodb", u.Scheme)
		assert.Equal(t, "db.local:27017", u.Host)
		assert.Equal(t, "/events", u.Path)
		assert.Equal(t, "svc", u.User.Username())
		psw, _ := u.User.Password()
		assert.Equal(t, "p@ss", psw)
		assert.Equal(t, "admin", u.Query().Get("authSource"))
		assert.Equal(t, "5", u.Query().Get("minPoolSize"))
		assert.Equal(t, "10", u.Query().Get("maxPoolSize"))
	})

	t.Run("no credentials", func(t *testing.T) {
		uri := BuildURI(&configtypes.MongoConfig{Server: "localhost", Port: 27017, Database: "events"})
		assert.Equal(t, "mongodb://localhost:27017/events", uri)
	})

	t.Run("explicit uri wins", func(t *testing.T) {
		uri := BuildURI(&configtypes.MongoConfig{URI: "mongodb+srv://cluster0/app", Server: "ignored"})
		assert.Equal(t, "mongodb+srv://cluster0/app", uri)
	})
}

func TestDatabaseName(t *testing.T) {
	name, err := databaseName(&configtypes.MongoConfig{Database: "events"})
	require.NoError(t, err)
	assert.Equal(t, "events", name)

	name, err = databaseName(&configtypes.MongoConfig{URI: "mongodb://localhost:27017/app?authSource=admin"})
	require.NoError(t, err)
	assert.Equal(t, "app", name)

	_, err = databaseName(&configtypes.MongoConfig{URI: "mongodb://localhost:27017"})
	assert.Error(t, err)
}

func TestDocuments(t *testing.T) {
	now := time.Now().UTC()
	docs := Documents([]eventlog.Event{
		{"date_event": now, "user_ip": "10.0.0.1"},
		{"action": "login"},
	})

	require.Len(t, docs, 2)
	assert.Equal(t, bson.M{"date_event": now, "user_ip": "10.0.0.1"}, docs[0])
	assert.Equal(t, bson.M{"action": "login"}, docs[1])

	raw, err := bson.Marshal(docs[1])
	require.NoError(t, err)
	var back bson.M
	require.NoError(t, bson.Unmarshal(raw, &back))
	assert.Equal(t, "login", back["action"])
}
