package server

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/httputil"
)

// Handler serves one request.
type Handler func(rc *RequestContext)

// Stage wraps a handler with behavior that runs before or after it.
type Stage func(next Handler) Handler

// Chain wraps h with stages so that the first stage runs outermost.
func Chain(h Handler, stages ...Stage) Handler {
	for i := len(stages) - 1; i >= 0; i-- {
		h = stages[i](h)
	}
	return h
}

type route struct {
	path    string
	handler Handler
}

// router dispatches on exact method and path.
type router struct {
	routes map[string]map[string]route // method -> path -> route
	logger *zap.Logger
}

func newRouter(logger *zap.Logger) *router {
	return &router{
		routes: make(map[string]map[string]route),
		logger: logger,
	}
}

func (r *router) add(method, path string, h Handler) {
	if r.routes[method] == nil {
		r.routes[method] = make(map[string]route)
	}
	if _, exists := r.routes[method][path]; exists {
		r.logger.Warn("Overwriting existing handler registration",
			zap.String("method", method),
			zap.String("path", path))
	}
	r.routes[method][path] = route{path: path, handler: h}
	r.logger.Debug("Registered handler",
		zap.String("method", method),
		zap.String("path", path))
}

// lookup returns the route for method and path. ok is false when nothing
// matches; the returned handler then answers 404 or 405.
func (r *router) lookup(method, path string) (route, bool) {
	if methodRoutes, ok := r.routes[method]; ok {
		if rt, ok := methodRoutes[path]; ok {
			return rt, true
		}
	}

	for _, methodRoutes := range r.routes {
		if _, ok := methodRoutes[path]; ok {
			return route{path: path, handler: methodNotAllowed}, false
		}
	}
	return route{path: "unmatched", handler: notFound}, false
}

func notFound(rc *RequestContext) {
	httputil.JSONError(rc.RequestCtx, "not found", fasthttp.StatusNotFound)
}

func methodNotAllowed(rc *RequestContext) {
	httputil.JSONError(rc.RequestCtx, "method not allowed", fasthttp.StatusMethodNotAllowed)
}
