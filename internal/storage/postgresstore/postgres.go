package postgresstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/config"
	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/eventlog"
)

var columns = []string{"created_at", "event"}

// copier is the subset of *pgxpool.Pool used by Client.
type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// Client copies event batches into PostgreSQL tables with the schema
// (created_at timestamptz, event jsonb).
type Client struct {
	pool   copier
	logger *zap.Logger
}

// PoolConfig parses cfg.DSN and applies the pool limits.
func PoolConfig(cfg *configtypes.PostgresConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout.ToDuration()
	return poolCfg, nil
}

// NewClient creates a connection pool and pings the server.
func NewClient(ctx context.Context, cfg *configtypes.PostgresConfig, logger *zap.Logger) (*Client, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("PostgreSQL pool ready",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns))

	return &Client{pool: pool, logger: logger}, nil
}

// Rows encodes events for COPY. created_at is taken from the event's
// date_event when it holds a time, else now.
func Rows(events []eventlog.Event, now time.Time) ([][]any, error) {
	rows := make([][]any, 0, len(events))
	for i, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("event %d is not serializable: %w", i, err)
		}
		created := now
		if ts, ok := e[eventlog.FieldDate].(time.Time); ok {
			created = ts
		}
		rows = append(rows, []any{created, string(payload)})
	}
	return rows, nil
}

// BulkWrite copies all events in one COPY statement.
func (c *Client) BulkWrite(ctx context.Context, collection string, events []eventlog.Event) error {
	if !config.ValidIdentifier(collection) {
		return fmt.Errorf("invalid postgres table name %q", collection)
	}
	if len(events) == 0 {
		return nil
	}

	rows, err := Rows(events, time.Now().UTC())
	if err != nil {
		return err
	}

	copied, err := c.pool.CopyFrom(ctx, pgx.Identifier{collection}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("postgres copy into %s failed: %w", collection, err)
	}
	if copied != int64(len(rows)) {
		return fmt.Errorf("postgres copy into %s wrote %d of %d rows", collection, copied, len(rows))
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *Client) Close(context.Context) error {
	c.pool.Close()
	return nil
}
