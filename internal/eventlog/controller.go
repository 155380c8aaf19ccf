package eventlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Controller buffers events produced by request handlers and hands bounded
// batches of them to a BulkWriter.
type Controller struct {
	mu      sync.Mutex
	queue   queue
	verbose bool
	metrics Metrics
	logger  *zap.Logger
}

// NewController creates an empty controller. metrics may be nil.
func NewController(verbose bool, metrics Metrics, logger *zap.Logger) *Controller {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		verbose: verbose,
		metrics: metrics,
		logger:  logger,
	}
}

// Enqueue appends v to the tail of the queue when it is a key-value mapping
// (Event or map[string]any). Any other value is dropped without error.
func (c *Controller) Enqueue(v any) {
	event, ok := asEvent(v)
	if !ok {
		c.metrics.RecordDiscarded()
		return
	}

	c.logger.Debug("Event queued", zap.Any("event", event))

	c.mu.Lock()
	c.queue.push(event)
	c.mu.Unlock()

	c.metrics.RecordEnqueued()
}

// Len returns the number of buffered events.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// Flush removes up to limit events from the head of the queue and writes
// them to sink, returning how many were delivered. Removed events are not
// returned to the queue when the write fails.
func (c *Controller) Flush(ctx context.Context, limit int, sink BulkWriter, collection string) (int, error) {
	if sink == nil {
		c.logger.Error("Can not write events, event sink is not configured",
			zap.String("collection", collection))
		return 0, ErrNoSink
	}

	c.mu.Lock()
	size := c.queue.len()
	batch := c.queue.popN(min(size, limit))
	c.mu.Unlock()

	if c.verbose {
		c.logger.Info("Writing events",
			zap.Int("queue_size", size),
			zap.Int("batch_size", len(batch)),
			zap.String("collection", collection))
	}

	if len(batch) == 0 {
		return 0, nil
	}

	c.metrics.RecordDequeued(len(batch))

	start := time.Now()
	err := sink.BulkWrite(ctx, collection, batch)
	c.metrics.RecordFlush(len(batch), time.Since(start), err)

	if err != nil {
		return 0, fmt.Errorf("bulk write of %d events into %q failed: %w", len(batch), collection, err)
	}

	if c.verbose {
		c.logger.Info("Events written",
			zap.Int("count", len(batch)),
			zap.String("collection", collection),
			zap.Duration("duration", time.Since(start)))
	}

	return len(batch), nil
}
