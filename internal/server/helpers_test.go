package server

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/config"
	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/eventlog"
)

type memorySink struct {
	mu      sync.Mutex
	batches map[string][][]eventlog.Event
	err     error
	closed  int
}

func (s *memorySink) BulkWrite(_ context.Context, collection string, events []eventlog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.batches == nil {
		s.batches = make(map[string][][]eventlog.Event)
	}
	s.batches[collection] = append(s.batches[collection], events)
	return nil
}

func (s *memorySink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *memorySink) events(collection string) []eventlog.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []eventlog.Event
	for _, batch := range s.batches[collection] {
		all = append(all, batch...)
	}
	return all
}

func testConfig() *configtypes.AppConfig {
	cfg := &configtypes.AppConfig{}
	cfg.Ping.Enabled = true
	cfg.EventWriter.Enabled = true
	cfg.Auth.SecretKey = "test-secret"
	config.ApplyDefaults(cfg)
	return cfg
}

func newTestApp(t *testing.T, cfg *configtypes.AppConfig, opts ...Option) *App {
	t.Helper()
	app := New(cfg, zap.NewNop(), opts...)
	require.NoError(t, app.Open(context.Background()))
	return app
}

var testRemoteAddr = &net.TCPAddr{IP: net.ParseIP("10.1.2.3"), Port: 5555}

func serve(app *App, method, uri string, setup func(req *fasthttp.Request)) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if setup != nil {
		setup(&req)
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, testRemoteAddr, nil)
	app.Handler()(ctx)
	return ctx
}

func requestContext(app *App, setup func(req *fasthttp.Request)) *RequestContext {
	var req fasthttp.Request
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI("/test")
	if setup != nil {
		setup(&req)
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, testRemoteAddr, nil)
	return newRequestContext(app, ctx, "/test")
}

func decodeBody(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	return body
}
