package eventlog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DriverState reports what the periodic flush driver is doing.
type DriverState int32

const (
	StateIdle DriverState = iota
	StateFlushing
)

func (s DriverState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// FlushFunc performs one flush tick.
type FlushFunc func(ctx context.Context) error

// Driver invokes a FlushFunc on a fixed period from a single goroutine.
// The next period starts only after the running flush returns, so ticks
// never overlap; a slow flush delays the following tick.
type Driver struct {
	period time.Duration
	flush  FlushFunc
	logger *zap.Logger

	state     atomic.Int32
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	started   atomic.Bool
}

// NewDriver creates a stopped driver.
func NewDriver(period time.Duration, flush FlushFunc, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		period: period,
		flush:  flush,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// State returns the current driver state.
func (d *Driver) State() DriverState {
	return DriverState(d.state.Load())
}

// Start launches the tick loop. Calling Start more than once has no effect.
func (d *Driver) Start() {
	d.startOnce.Do(func() {
		d.started.Store(true)
		d.logger.Info("Event flush driver starting", zap.Duration("period", d.period))
		go d.loop()
	})
}

// Stop ends the tick loop and waits for an in-flight flush to return or
// for ctx to expire, whichever comes first.
func (d *Driver) Stop(ctx context.Context) error {
	d.cancel()
	if !d.started.Load() {
		return nil
	}

	select {
	case <-d.done:
		d.logger.Info("Event flush driver stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) loop() {
	defer close(d.done)

	timer := time.NewTimer(d.period)
	defer timer.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-timer.C:
			d.tick()
			timer.Reset(d.period)
		}
	}
}

func (d *Driver) tick() {
	d.state.Store(int32(StateFlushing))
	defer d.state.Store(int32(StateIdle))

	// An in-flight write is not interrupted by Stop.
	if err := d.flush(context.WithoutCancel(d.ctx)); err != nil {
		d.logger.Error("Event flush failed", zap.Error(err))
	}
}
