package mongostore

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/common/logger"
	"github.com/edgecomet/skeleton/internal/eventlog"
)

const connectTimeout = 10 * time.Second

// Client writes event batches into MongoDB collections.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.Logger
}

// BuildURI returns the connection string for cfg. An explicit URI wins;
// otherwise one is assembled from the discrete fields.
func BuildURI(cfg *configtypes.MongoConfig) string {
	if cfg.URI != "" {
		return cfg.URI
	}

	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}

	q := url.Values{}
	if cfg.AuthDB != "" {
		q.Set("authSource", cfg.AuthDB)
	}
	if cfg.MinPoolSize > 0 {
		q.Set("minPoolSize", strconv.Itoa(cfg.MinPoolSize))
	}
	if cfg.MaxPoolSize > 0 {
		q.Set("maxPoolSize", strconv.Itoa(cfg.MaxPoolSize))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// databaseName resolves the target database from the config or the URI path.
func databaseName(cfg *configtypes.MongoConfig) (string, error) {
	if cfg.Database != "" {
		return cfg.Database, nil
	}
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return "", fmt.Errorf("invalid mongo uri: %w", err)
	}
	if len(u.Path) > 1 {
		return u.Path[1:], nil
	}
	return "", fmt.Errorf("mongo database is not set and the uri has no database path")
}

// NewClient connects to MongoDB and pings the primary.
func NewClient(ctx context.Context, cfg *configtypes.MongoConfig, log *zap.Logger) (*Client, error) {
	dbName, err := databaseName(cfg)
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(options.Client().ApplyURI(BuildURI(cfg)))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	log.Info("Mongo connection ready",
		logger.Label(logger.LabelInitMongo),
		zap.String("database", dbName),
		zap.Int("min_pool_size", cfg.MinPoolSize),
		zap.Int("max_pool_size", cfg.MaxPoolSize))

	return &Client{
		client:   client,
		database: client.Database(dbName),
		logger:   log,
	}, nil
}

// Documents converts events into insertable documents, preserving order.
func Documents(events []eventlog.Event) []any {
	docs := make([]any, len(events))
	for i, e := range events {
		docs[i] = bson.M(e)
	}
	return docs
}

// BulkWrite inserts events into collection in one ordered InsertMany.
func (c *Client) BulkWrite(ctx context.Context, collection string, events []eventlog.Event) error {
	if len(events) == 0 {
		return nil
	}
	if _, err := c.database.Collection(collection).InsertMany(ctx, Documents(events)); err != nil {
		return fmt.Errorf("mongo insert into %s failed: %w", collection, err)
	}
	return nil
}

// Database exposes the configured database for handlers.
func (c *Client) Database() *mongo.Database {
	return c.database
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from mongo", zap.Error(err))
		return err
	}
	return nil
}
