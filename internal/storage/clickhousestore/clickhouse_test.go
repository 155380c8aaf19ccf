package clickhousestore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/eventlog"
)

type fakeConn struct {
	queries []string
	err     error
}

func (f *fakeConn) PrepareBatch(_ context.Context, query string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	f.queries = append(f.queries, query)
	return nil, f.err
}

func (f *fakeConn) Ping(context.Context) error { return nil }
func (f *fakeConn) Close() error               { return nil }

func TestRows(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stamped := now.Add(-time.Hour)

	rows, err := Rows([]eventlog.Event{
		{eventlog.FieldDate: stamped, "action": "login"},
		{"action": "logout"},
	}, now)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, stamped, rows[0].CreatedAt)
	assert.Equal(t, now, rows[1].CreatedAt)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(rows[1].Event), &decoded))
	assert.Equal(t, "logout", decoded["action"])
}

func TestRows_Unserializable(t *testing.T) {
	_, err := Rows([]eventlog.Event{{"ch": make(chan int)}}, time.Now())
	assert.ErrorContains(t, err, "event 0 is not serializable")
}

func TestBulkWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid table", func(t *testing.T) {
		conn := &fakeConn{}
		c := &Client{conn: conn, logger: zap.NewNop()}
		err := c.BulkWrite(ctx, "events; DROP TABLE x", []eventlog.Event{{"a": 1}})
		assert.ErrorContains(t, err, "invalid clickhouse table name")
		assert.Empty(t, conn.queries)
	})

	t.Run("empty batch", func(t *testing.T) {
		conn := &fakeConn{}
		c := &Client{conn: conn, logger: zap.NewNop()}
		assert.NoError(t, c.BulkWrite(ctx, "user_events", nil))
		assert.Empty(t, conn.queries)
	})

	t.Run("prepare failure", func(t *testing.T) {
		conn := &fakeConn{err: errors.New("connection reset")}
		c := &Client{conn: conn, logger: zap.NewNop()}
		err := c.BulkWrite(ctx, "user_events", []eventlog.Event{{"a": 1}})
		assert.ErrorContains(t, err, "connection reset")
		assert.Equal(t, []string{"INSERT INTO user_events (created_at, event)"}, conn.queries)
	})
}
