package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/auth"
	"github.com/edgecomet/skeleton/internal/common/config"
	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/common/httputil"
	"github.com/edgecomet/skeleton/internal/common/logger"
	"github.com/edgecomet/skeleton/internal/common/metricsserver"
	"github.com/edgecomet/skeleton/internal/common/redis"
	"github.com/edgecomet/skeleton/internal/eventlog"
	"github.com/edgecomet/skeleton/internal/httpclient"
	"github.com/edgecomet/skeleton/internal/storage"
)

const (
	serverName       = "Skeleton/1.0"
	unixSocketMode   = 0o666
	driverDisabled   = "disabled"
	shutdownDrainMax = 1000
)

type sinkCloser interface {
	Close(ctx context.Context) error
}

// App hosts the HTTP handlers and the integrations they share: Redis, the
// event buffer with its flush driver and sink, JWT signing and the
// outbound HTTP client.
type App struct {
	cfg    *configtypes.AppConfig
	logger *zap.Logger

	redis      *redis.Client
	sink       eventlog.BulkWriter
	events     *eventlog.Controller
	driver     *eventlog.Driver
	httpClient *httpclient.Client
	xmlrpc     *httpclient.Client
	jwt        *auth.Codec

	router   *router
	stages   []Stage
	metrics  *requestMetrics
	registry *prometheus.Registry

	server        *fasthttp.Server
	metricsServer *metricsserver.Server

	onReady    []func()
	onStopping []func()
}

// Option customizes an App before it is opened.
type Option func(*App)

// WithSink makes the event writer use sink instead of connecting the
// configured database.
func WithSink(sink eventlog.BulkWriter) Option {
	return func(a *App) {
		a.sink = sink
	}
}

// WithRedis makes the app use client instead of connecting cfg.Redis.
func WithRedis(client *redis.Client) Option {
	return func(a *App) {
		a.redis = client
	}
}

// OnReady registers fn to run once Run is serving requests.
func OnReady(fn func()) Option {
	return func(a *App) {
		a.onReady = append(a.onReady, fn)
	}
}

// OnStopping registers fn to run when Run begins shutting down.
func OnStopping(fn func()) Option {
	return func(a *App) {
		a.onStopping = append(a.onStopping, fn)
	}
}

// New creates an app for cfg. Integrations are connected by Open.
func New(cfg *configtypes.AppConfig, log *zap.Logger, opts ...Option) *App {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("srv", cfg.Server.Name))

	registry := prometheus.NewRegistry()
	eventMetrics := eventlog.NewPrometheusMetricsWithRegistry(cfg.Metrics.Namespace, registry)

	a := &App{
		cfg:        cfg,
		logger:     log,
		events:     eventlog.NewController(cfg.EventWriter.Verbose, eventMetrics, log),
		httpClient: httpclient.New(cfg.HTTPClient, log),
		router:     newRouter(log),
		metrics:    newRequestMetrics(cfg.Metrics.Namespace, registry),
		registry:   registry,
	}
	if cfg.XMLRPC.Enabled {
		a.xmlrpc = httpclient.New(configtypes.HTTPClientConfig{
			MaxConns: cfg.XMLRPC.MaxClients,
			Timeout:  cfg.HTTPClient.Timeout,
		}, log)
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.EventWriter.Enabled {
		a.driver = eventlog.NewDriver(time.Duration(cfg.EventWriter.FlushPeriod), a.flushTick, log)
	}

	if cfg.Ping.Enabled {
		a.Route(fasthttp.MethodGet, cfg.Ping.Path, a.pingHandler)
		a.Route(fasthttp.MethodPost, cfg.Ping.Path, a.pingHandler)
	}

	timeout := time.Duration(cfg.Server.Timeout)
	a.server = &fasthttp.Server{
		Handler:                      a.Handler(),
		Name:                         serverName,
		ReadTimeout:                  timeout,
		WriteTimeout:                 timeout,
		IdleTimeout:                  timeout,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
	}

	return a
}

// Open connects every enabled integration. A failure wraps
// config.ErrCapability and leaves nothing open.
func (a *App) Open(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			a.closeIntegrations(ctx)
		}
	}()

	if a.cfg.Auth.SecretKey != "" {
		a.jwt, err = auth.NewCodec(a.cfg.Auth.SecretKey, a.cfg.Auth.Algorithm)
		if err != nil {
			return fmt.Errorf("%w: auth: %w", config.ErrCapability, err)
		}
	}

	if a.cfg.Redis.Enabled && a.redis == nil {
		a.redis, err = redis.NewClient(&a.cfg.Redis, a.logger)
		if err != nil {
			return fmt.Errorf("%w: redis: %w", config.ErrCapability, err)
		}
	}

	if a.cfg.EventWriter.Enabled && a.sink == nil {
		sink, err := storage.OpenSink(ctx, a.cfg, a.logger)
		if err != nil {
			return fmt.Errorf("%w: event writer: %w", config.ErrCapability, err)
		}
		a.sink = sink
		a.logger.Info("Event writer initialized",
			logger.Label(logger.LabelInitEvents),
			zap.String("sink", a.cfg.EventWriter.Sink),
			zap.String("collection", a.cfg.EventWriter.Collection),
			zap.Duration("flush_period", time.Duration(a.cfg.EventWriter.FlushPeriod)),
			zap.Int("batch_size", a.cfg.EventWriter.BatchSize))
	}

	return nil
}

// Use appends stages that wrap every route, including 404 and 405 answers.
func (a *App) Use(stages ...Stage) {
	a.stages = append(a.stages, stages...)
}

// Route registers handler for method and path, wrapped with stages.
func (a *App) Route(method, path string, handler Handler, stages ...Stage) {
	a.router.add(method, path, Chain(handler, stages...))
}

// Handler returns the request handler serving every registered route.
func (a *App) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		method := string(ctx.Method())

		rt, _ := a.router.lookup(method, string(ctx.Path()))
		rc := newRequestContext(a, ctx, rt.path)
		rc.RequestID()

		stages := make([]Stage, 0, len(a.stages)+1)
		stages = append(stages, a.recoverPanics)
		stages = append(stages, a.stages...)
		Chain(rt.handler, stages...)(rc)

		a.metrics.record(method, rt.path, ctx.Response.StatusCode(), time.Since(start))
	}
}

func (a *App) recoverPanics(next Handler) Handler {
	return func(rc *RequestContext) {
		defer func() {
			if r := recover(); r != nil {
				a.metrics.panics.Inc()
				a.logger.Error("Handler panic recovered",
					zap.String("path", rc.route),
					zap.String("method", string(rc.Method())),
					zap.String("request_id", rc.RequestID()),
					zap.ByteString("request", rc.Request.Header.Header()),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				rc.Response.ResetBody()
				httputil.JSONError(rc.RequestCtx, "internal server error", fasthttp.StatusInternalServerError)
			}
		}()
		next(rc)
	}
}

// Registry returns the registry holding the app's metrics.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Events returns the event buffer.
func (a *App) Events() *eventlog.Controller {
	return a.events
}

// Redis returns the shared Redis client, or an error wrapping
// config.ErrCapability when Redis is not enabled.
func (a *App) Redis() (*redis.Client, error) {
	if a.redis == nil {
		return nil, fmt.Errorf("%w: redis is not enabled", config.ErrCapability)
	}
	return a.redis, nil
}

// JWT returns the token codec, or an error wrapping config.ErrCapability
// when no secret key is configured.
func (a *App) JWT() (*auth.Codec, error) {
	if a.jwt == nil {
		return nil, fmt.Errorf("%w: auth.secret_key is not configured", config.ErrCapability)
	}
	return a.jwt, nil
}

// XMLRPC returns a caller for endpoint, or an error wrapping
// config.ErrCapability when xmlrpc is not enabled.
func (a *App) XMLRPC(endpoint string) (*httpclient.XMLRPCClient, error) {
	if a.xmlrpc == nil {
		return nil, fmt.Errorf("%w: xmlrpc is not enabled", config.ErrCapability)
	}
	return a.xmlrpc.XMLRPC(endpoint), nil
}

// FlushEvents writes one batch of buffered events to the sink.
func (a *App) FlushEvents(ctx context.Context) (int, error) {
	return a.events.Flush(ctx, a.cfg.EventWriter.BatchSize, a.sink, a.cfg.EventWriter.Collection)
}

func (a *App) flushTick(ctx context.Context) error {
	_, err := a.FlushEvents(ctx)
	return err
}

func (a *App) driverState() string {
	if a.driver == nil {
		return driverDisabled
	}
	return a.driver.State().String()
}

// Listen binds the configured TCP address or unix socket.
func (a *App) Listen() (net.Listener, error) {
	network, address, err := a.cfg.Server.ListenTarget()
	if err != nil {
		return nil, err
	}

	if network == "unix" {
		if err := os.Remove(address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale socket %s: %w", address, err)
		}
	}

	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s %s: %w", network, address, err)
	}

	if network == "unix" {
		if err := os.Chmod(address, unixSocketMode); err != nil {
			ln.Close()
			return nil, fmt.Errorf("failed to set socket permissions: %w", err)
		}
	}
	return ln, nil
}

// Start launches the flush driver and the metrics server.
func (a *App) Start() error {
	var err error
	a.metricsServer, err = metricsserver.Start(a.cfg.Metrics, a.registry, a.logger)
	if err != nil {
		return err
	}
	if a.driver != nil {
		a.driver.Start()
	}
	return nil
}

// Serve handles connections from ln until the server is shut down.
func (a *App) Serve(ln net.Listener) error {
	a.logger.Info("Server started", zap.String("address", ln.Addr().String()))
	return a.server.Serve(ln)
}

// Run opens the integrations, serves until ctx is done and then shuts
// everything down within the configured server timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.Open(ctx); err != nil {
		return err
	}

	ln, err := a.Listen()
	if err != nil {
		a.closeIntegrations(ctx)
		return err
	}

	if err := a.Start(); err != nil {
		ln.Close()
		a.closeIntegrations(ctx)
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.Serve(ln)
	}()
	for _, fn := range a.onReady {
		fn()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		if runErr != nil {
			runErr = fmt.Errorf("HTTP server failed: %w", runErr)
		}
	}
	for _, fn := range a.onStopping {
		fn()
	}
	if runErr != nil {
		a.logger.Error("Server failed, initiating shutdown", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(a.cfg.Server.Timeout))
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown stops accepting requests, stops the flush driver, drains the
// buffer when configured to and closes every integration.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	a.logger.Info("Shutting down server")
	if err := a.server.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}

	// A flush still running after Stop keeps the sink: no drain, no close.
	inFlight := false
	if a.driver != nil {
		if err := a.driver.Stop(ctx); err != nil {
			inFlight = true
			errs = append(errs, fmt.Errorf("flush driver: %w", err))
		}
	}

	if a.cfg.EventWriter.Enabled && a.cfg.EventWriter.FlushOnShutdown {
		if inFlight {
			a.logger.Warn("Final flush skipped, a flush is still in flight",
				zap.Int("count", a.events.Len()))
		} else if err := a.drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("final flush: %w", err))
		}
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}

	if !inFlight {
		errs = append(errs, a.closeSink(ctx)...)
	}
	errs = append(errs, a.closeRedis()...)

	a.logger.Info("Server stopped")
	return errors.Join(errs...)
}

func (a *App) drain(ctx context.Context) error {
	for i := 0; i < shutdownDrainMax && a.events.Len() > 0; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := a.FlushEvents(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
	}
	if left := a.events.Len(); left > 0 {
		a.logger.Warn("Events left unwritten at shutdown", zap.Int("count", left))
	}
	return nil
}

func (a *App) closeIntegrations(ctx context.Context) []error {
	return append(a.closeSink(ctx), a.closeRedis()...)
}

func (a *App) closeSink(ctx context.Context) []error {
	closer, ok := a.sink.(sinkCloser)
	if !ok {
		return nil
	}
	a.sink = nil
	if err := closer.Close(ctx); err != nil {
		return []error{fmt.Errorf("event sink: %w", err)}
	}
	return nil
}

func (a *App) closeRedis() []error {
	if a.redis == nil {
		return nil
	}
	client := a.redis
	a.redis = nil
	if err := client.Close(); err != nil {
		return []error{fmt.Errorf("redis: %w", err)}
	}
	return nil
}
