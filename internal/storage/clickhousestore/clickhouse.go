package clickhousestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/config"
	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/eventlog"
)

// batchConn is the subset of driver.Conn used by Client.
type batchConn interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
	Ping(ctx context.Context) error
	Close() error
}

// Client writes event batches into ClickHouse tables with the schema
// (created_at DateTime64(3), event String).
type Client struct {
	conn   batchConn
	logger *zap.Logger
}

// NewClient opens a native-protocol connection and pings the server.
func NewClient(ctx context.Context, cfg *configtypes.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: cfg.Timeout.ToDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	logger.Info("ClickHouse connection ready",
		zap.Strings("addr", cfg.Addr),
		zap.String("database", cfg.Database))

	return &Client{conn: conn, logger: logger}, nil
}

// Row is one event prepared for insertion.
type Row struct {
	CreatedAt time.Time
	Event     string
}

// Rows encodes events as JSON. created_at is taken from the event's
// date_event when it holds a time, else now.
func Rows(events []eventlog.Event, now time.Time) ([]Row, error) {
	rows := make([]Row, 0, len(events))
	for i, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("event %d is not serializable: %w", i, err)
		}
		created := now
		if ts, ok := e[eventlog.FieldDate].(time.Time); ok {
			created = ts
		}
		rows = append(rows, Row{CreatedAt: created, Event: string(payload)})
	}
	return rows, nil
}

// BulkWrite appends all events to one batch and sends it.
func (c *Client) BulkWrite(ctx context.Context, collection string, events []eventlog.Event) error {
	if !config.ValidIdentifier(collection) {
		return fmt.Errorf("invalid clickhouse table name %q", collection)
	}
	if len(events) == 0 {
		return nil
	}

	rows, err := Rows(events, time.Now().UTC())
	if err != nil {
		return err
	}

	batch, err := c.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (created_at, event)", collection))
	if err != nil {
		return fmt.Errorf("failed to prepare clickhouse batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.CreatedAt, r.Event); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append clickhouse row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send clickhouse batch: %w", err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close(context.Context) error {
	return c.conn.Close()
}
