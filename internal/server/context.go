package server

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mssola/useragent"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/auth"
	"github.com/edgecomet/skeleton/internal/common/httputil"
	"github.com/edgecomet/skeleton/internal/common/logger"
	"github.com/edgecomet/skeleton/internal/common/redis"
	"github.com/edgecomet/skeleton/internal/common/requestid"
	"github.com/edgecomet/skeleton/internal/common/strutil"
	"github.com/edgecomet/skeleton/internal/eventlog"
	"github.com/edgecomet/skeleton/internal/httpclient"
)

const (
	unknownUserAgent = "Unknown"
	maxSkeletonField = 128
)

// RequestContext is the per-request view handlers work with. It embeds the
// fasthttp request and gives access to the host's capabilities.
type RequestContext struct {
	*fasthttp.RequestCtx
	app    *App
	route  string
	claims jwt.MapClaims
}

func newRequestContext(app *App, ctx *fasthttp.RequestCtx, route string) *RequestContext {
	return &RequestContext{RequestCtx: ctx, app: app, route: route}
}

// Logger returns the host logger tagged with the request ID.
func (rc *RequestContext) Logger() *zap.Logger {
	return rc.app.logger.With(zap.String("request_id", rc.RequestID()))
}

// RequestID returns the ID assigned to this request.
func (rc *RequestContext) RequestID() string {
	return requestid.FromRequest(rc.RequestCtx)
}

// Route returns the registered path that matched this request.
func (rc *RequestContext) Route() string {
	return rc.route
}

// UserIP returns the client address from the first configured header that
// carries a valid IP, else the connection's remote address.
func (rc *RequestContext) UserIP() string {
	for _, header := range rc.app.cfg.ClientIP.Headers {
		value := strings.TrimSpace(string(rc.Request.Header.Peek(header)))
		if idx := strings.IndexByte(value, ','); idx >= 0 {
			value = strings.TrimSpace(value[:idx])
		}
		if ip := normalizeIP(value); strutil.IsValidIP(ip) {
			return ip
		}
	}

	addr := rc.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return normalizeIP(addr)
}

func normalizeIP(raw string) string {
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	if idx := strings.IndexByte(raw, '%'); idx >= 0 {
		raw = raw[:idx]
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}

// UserAgent describes the client as "<device> / <os> / <browser>", for
// example "PC / Linux / Chrome 69.0". It is "Unknown" without a User-Agent.
func (rc *RequestContext) UserAgent() string {
	raw := string(rc.Request.Header.UserAgent())
	desc := DescribeUserAgent(raw)
	rc.app.logger.Debug(desc, logger.Label(logger.LabelUserAgent))
	return desc
}

// DescribeUserAgent formats a User-Agent header value.
func DescribeUserAgent(raw string) string {
	if raw == "" {
		return unknownUserAgent
	}

	ua := useragent.New(raw)
	device := "PC"
	switch {
	case ua.Bot():
		device = "Spider"
	case ua.Mobile():
		device = "Mobile"
	}

	osInfo := ua.OSInfo()
	os := strings.TrimSpace(osInfo.Name + " " + osInfo.Version)
	if os == "" {
		os = "Other"
	}

	name, version := ua.Browser()
	browser := strings.TrimSpace(name + " " + version)
	if browser == "" {
		browser = "Other"
	}

	return device + " / " + os + " / " + browser
}

// Languages returns the distinct two-letter codes from Accept-Language in
// header order, or the configured local default when the header is absent.
func (rc *RequestContext) Languages() []string {
	header := strings.TrimSpace(string(rc.Request.Header.Peek(fasthttp.HeaderAcceptLanguage)))
	if header == "" {
		return []string{rc.app.cfg.Languages.DefaultLocal}
	}

	var langs []string
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if len(tag) > 2 {
			tag = tag[:2]
		}
		if tag != "" && !slices.Contains(langs, tag) {
			langs = append(langs, tag)
		}
	}
	if len(langs) == 0 {
		return []string{rc.app.cfg.Languages.DefaultLocal}
	}
	return langs
}

// Arg returns the query or form value of name, or def when it is absent.
func (rc *RequestContext) Arg(name, def string) string {
	if v := rc.QueryArgs().Peek(name); v != nil {
		return string(v)
	}
	if v := rc.PostArgs().Peek(name); v != nil {
		return string(v)
	}
	return def
}

// Args returns the values of names that are present in the request.
func (rc *RequestContext) Args(names ...string) map[string]string {
	all := rc.ArgsMap()
	res := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := all[name]; ok {
			res[name] = v
		}
	}
	return res
}

// ArgsMap returns every query and form argument. Repeated values are
// concatenated; form values follow query values.
func (rc *RequestContext) ArgsMap() map[string]string {
	res := make(map[string]string)
	collect := func(key, value []byte) {
		res[string(key)] += string(value)
	}
	rc.QueryArgs().VisitAll(collect)
	rc.PostArgs().VisitAll(collect)
	return res
}

// AuthToken returns the bearer token from the Authorization header.
func (rc *RequestContext) AuthToken() (string, error) {
	return auth.ParseBearer(string(rc.Request.Header.Peek(fasthttp.HeaderAuthorization)))
}

// EncodeJWT signs claims with the configured secret.
func (rc *RequestContext) EncodeJWT(claims jwt.MapClaims) (string, error) {
	codec, err := rc.app.JWT()
	if err != nil {
		return "", err
	}
	return codec.Encode(claims)
}

// DecodeJWT verifies token with the configured secret.
func (rc *RequestContext) DecodeJWT(token string) (jwt.MapClaims, error) {
	codec, err := rc.app.JWT()
	if err != nil {
		return nil, err
	}
	return codec.Decode(token)
}

// Claims returns the claims stored by RequireJWT, or nil.
func (rc *RequestContext) Claims() jwt.MapClaims {
	return rc.claims
}

// Redis returns the shared Redis client.
func (rc *RequestContext) Redis() (*redis.Client, error) {
	return rc.app.Redis()
}

// XMLRPC returns a caller for an XML-RPC endpoint.
func (rc *RequestContext) XMLRPC(endpoint string) (*httpclient.XMLRPCClient, error) {
	return rc.app.XMLRPC(endpoint)
}

// HTTPClient returns the shared outbound HTTP client.
func (rc *RequestContext) HTTPClient() *httpclient.Client {
	return rc.app.httpClient
}

// AddLogEvent queues event for the event writer. With withSkeleton the
// request's standard fields are added first and event's keys override them.
// Nothing is queued when the writer is disabled or the result is empty.
func (rc *RequestContext) AddLogEvent(event map[string]any, withSkeleton bool) {
	if !rc.app.cfg.EventWriter.Enabled {
		return
	}

	var merged eventlog.Event
	if withSkeleton {
		merged = rc.eventSkeleton(rc.app.cfg.EventWriter.LiteEvents)
	} else {
		merged = make(eventlog.Event, len(event))
	}
	for k, v := range event {
		merged[k] = v
	}

	if len(merged) == 0 {
		return
	}
	rc.app.events.Enqueue(merged)
}

func (rc *RequestContext) eventSkeleton(lite bool) eventlog.Event {
	event := eventlog.Event{
		eventlog.FieldDate:      time.Now().UTC(),
		eventlog.FieldUserAgent: truncate(rc.UserAgent(), maxSkeletonField),
		eventlog.FieldUserIP:    rc.UserIP(),
	}
	if !lite {
		event[eventlog.FieldURL] = truncate(string(rc.RequestURI()), maxSkeletonField)
		event[eventlog.FieldServerName] = rc.app.cfg.Server.Name
		event[eventlog.FieldMethod] = string(rc.Method())
		event[eventlog.FieldRequestID] = rc.RequestID()
	}
	return event
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// back off to a rune boundary
	cut := limit
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// WriteResult answers with a JSON result document and status 200.
func (rc *RequestContext) WriteResult(code int, msg string, extra map[string]any) {
	httputil.WriteResult(rc.RequestCtx, fasthttp.StatusOK, code, msg, extra)
}

// WriteResultXML answers with an XML result document and status 200.
func (rc *RequestContext) WriteResultXML(code int, msg string, extra map[string]any) {
	httputil.WriteResultXML(rc.RequestCtx, fasthttp.StatusOK, code, msg, extra)
}

// Fail answers with a failed JSON result and statusCode.
func (rc *RequestContext) Fail(statusCode int, format string, args ...any) {
	httputil.JSONError(rc.RequestCtx, fmt.Sprintf(format, args...), statusCode)
}
