package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/edgecomet/skeleton/internal/common/config"
	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/eventlog"
)

// Record is one line of the event file.
type Record struct {
	Collection string         `json:"collection"`
	CreatedAt  time.Time      `json:"created_at"`
	Event      eventlog.Event `json:"event"`
}

// Client appends event batches as JSON lines to a rotating file.
type Client struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
	path   string
	now    func() time.Time
	logger *zap.Logger
}

// NewClient creates the parent directory of cfg.Path and opens the file
// lazily on first write.
func NewClient(cfg *configtypes.EventFileConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("event file path is empty")
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory %s: %w", dir, err)
	}

	logger.Info("Event file sink ready", zap.String("path", cfg.Path))

	return &Client{
		writer: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.Rotation.MaxSize,
			MaxAge:     cfg.Rotation.MaxAge,
			MaxBackups: cfg.Rotation.MaxBackups,
			Compress:   cfg.Rotation.Compress,
		},
		path:   cfg.Path,
		now:    time.Now,
		logger: logger,
	}, nil
}

// BulkWrite encodes the whole batch before writing it with a single call,
// so an encoding failure leaves the file untouched.
func (c *Client) BulkWrite(_ context.Context, collection string, events []eventlog.Event) error {
	if !config.ValidIdentifier(collection) {
		return fmt.Errorf("invalid collection name %q", collection)
	}

	createdAt := c.now().UTC()
	var buf []byte
	for _, event := range events {
		line, err := json.Marshal(Record{Collection: collection, CreatedAt: createdAt, Event: event})
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.writer.Write(buf); err != nil {
		return fmt.Errorf("failed to write events to %s: %w", c.path, err)
	}
	return nil
}

// Ping checks that the event directory is still reachable.
func (c *Client) Ping(context.Context) error {
	if _, err := os.Stat(filepath.Dir(c.path)); err != nil {
		return fmt.Errorf("event log directory unavailable: %w", err)
	}
	return nil
}

func (c *Client) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writer.Close()
}
