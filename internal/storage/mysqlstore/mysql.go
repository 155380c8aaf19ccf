package mysqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/config"
	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/eventlog"
)

// MaxRowsPerStatement keeps one INSERT under the server limit of 65535
// placeholders, two per row.
const MaxRowsPerStatement = 65535 / 2

// Client writes event batches into MySQL tables with the schema
// (created_at DATETIME(6), event JSON).
type Client struct {
	db     *sqlx.DB
	logger *zap.Logger

	rowsPerStatement int
}

// NormalizeDSN parses dsn and forces time parsing so created_at scans into time.Time.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}

// NewClient opens a connection pool and pings the server.
func NewClient(ctx context.Context, cfg *configtypes.MySQLConfig, logger *zap.Logger) (*Client, error) {
	dsn, err := NormalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	logger.Info("MySQL connection ready",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return &Client{db: db, logger: logger, rowsPerStatement: MaxRowsPerStatement}, nil
}

// InsertStatement builds one multi-row INSERT for n events and its arguments.
func InsertStatement(table string, events []eventlog.Event, now time.Time) (string, []any, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO `%s` (created_at, event) VALUES ", table)

	args := make([]any, 0, 2*len(events))
	for i, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return "", nil, fmt.Errorf("event %d is not serializable: %w", i, err)
		}
		created := now
		if ts, ok := e[eventlog.FieldDate].(time.Time); ok {
			created = ts
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?)")
		args = append(args, created, string(payload))
	}
	return sb.String(), args, nil
}

// BulkWrite inserts all events in a single transaction, split into INSERT
// statements of at most MaxRowsPerStatement rows.
func (c *Client) BulkWrite(ctx context.Context, collection string, events []eventlog.Event) error {
	if !config.ValidIdentifier(collection) {
		return fmt.Errorf("invalid mysql table name %q", collection)
	}
	if len(events) == 0 {
		return nil
	}

	step := c.rowsPerStatement
	if step <= 0 || step > MaxRowsPerStatement {
		step = MaxRowsPerStatement
	}
	now := time.Now().UTC()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mysql transaction: %w", err)
	}
	for start := 0; start < len(events); start += step {
		end := min(start+step, len(events))
		query, args, err := InsertStatement(collection, events[start:end], now)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("mysql insert into %s failed: %w", collection, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mysql transaction: %w", err)
	}
	return nil
}

// DB exposes the pool for handlers.
func (c *Client) DB() *sqlx.DB {
	return c.db
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close(context.Context) error {
	return c.db.Close()
}
