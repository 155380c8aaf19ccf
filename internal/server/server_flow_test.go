package server_test

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/config"
	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/eventlog"
	"github.com/edgecomet/skeleton/internal/server"
)

type collectingSink struct {
	mu     sync.Mutex
	events []eventlog.Event
}

func (s *collectingSink) BulkWrite(_ context.Context, _ string, events []eventlog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *collectingSink) written() []eventlog.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]eventlog.Event(nil), s.events...)
}

var _ = Describe("Request to event sink flow", func() {
	var (
		app    *server.App
		sink   *collectingSink
		ln     *fasthttputil.InmemoryListener
		client *fasthttp.Client
		done   chan error
	)

	get := func(uri string, headers map[string]string) (int, map[string]any, string) {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI("http://skeleton" + uri)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		Expect(client.DoTimeout(req, resp, 5*time.Second)).To(Succeed())

		var body map[string]any
		Expect(json.Unmarshal(resp.Body(), &body)).To(Succeed())
		return resp.StatusCode(), body, string(resp.Header.Peek("X-Request-ID"))
	}

	BeforeEach(func() {
		cfg := &configtypes.AppConfig{}
		cfg.Ping.Enabled = true
		cfg.EventWriter.Enabled = true
		cfg.EventWriter.FlushPeriod = configtypes.Duration(20 * time.Millisecond)
		cfg.EventWriter.FlushOnShutdown = true
		cfg.Auth.SecretKey = "suite-secret"
		config.ApplyDefaults(cfg)

		sink = &collectingSink{}
		app = server.New(cfg, zap.NewNop(), server.WithSink(sink))
		Expect(app.Open(context.Background())).To(Succeed())

		app.Route(fasthttp.MethodGet, "/", func(rc *server.RequestContext) {
			rc.AddLogEvent(map[string]any{"action": "hello"}, true)
			rc.WriteResult(0, "Hello world", nil)
		})
		app.Route(fasthttp.MethodGet, "/login", func(rc *server.RequestContext) {
			token, err := rc.EncodeJWT(jwt.MapClaims{
				"sub": rc.Arg("user", "guest"),
				"exp": time.Now().Add(time.Hour).Unix(),
			})
			if err != nil {
				rc.Fail(fasthttp.StatusInternalServerError, "%v", err)
				return
			}
			rc.WriteResult(0, "ok", map[string]any{"token": token})
		})
		app.Route(fasthttp.MethodGet, "/secured", func(rc *server.RequestContext) {
			rc.AddLogEvent(map[string]any{"user": rc.Claims()["sub"]}, false)
			rc.WriteResult(0, "welcome", nil)
		}, server.RequireJWT)

		ln = fasthttputil.NewInmemoryListener()
		client = &fasthttp.Client{
			Dial: func(string) (net.Conn, error) { return ln.Dial() },
		}

		Expect(app.Start()).To(Succeed())
		done = make(chan error, 1)
		go func() { done <- app.Serve(ln) }()
	})

	AfterEach(func() {
		Expect(app.Shutdown(context.Background())).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
	})

	It("delivers handler events to the sink with the request skeleton", func() {
		status, body, requestID := get("/", map[string]string{
			"X-Real-IP":  "203.0.113.9",
			"User-Agent": "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		})
		Expect(status).To(Equal(fasthttp.StatusOK))
		Expect(body["resultMessage"]).To(Equal("Hello world"))

		Eventually(sink.written).Should(HaveLen(1))
		event := sink.written()[0]
		Expect(event).To(HaveKeyWithValue("action", "hello"))
		Expect(event).To(HaveKeyWithValue(eventlog.FieldUserIP, "203.0.113.9"))
		Expect(event).To(HaveKeyWithValue(eventlog.FieldURL, "/"))
		Expect(event).To(HaveKeyWithValue(eventlog.FieldRequestID, requestID))
		Expect(event[eventlog.FieldUserAgent]).To(HavePrefix("Spider"))
	})

	It("keeps request order across flushes", func() {
		for i := 0; i < 25; i++ {
			status, _, _ := get("/", nil)
			Expect(status).To(Equal(fasthttp.StatusOK))
		}

		Eventually(sink.written).Should(HaveLen(25))
		var previous time.Time
		for _, event := range sink.written() {
			at := event[eventlog.FieldDate].(time.Time)
			Expect(at.Before(previous)).To(BeFalse())
			previous = at
		}
	})

	It("guards secured routes with a bearer token", func() {
		status, body, _ := get("/secured", nil)
		Expect(status).To(Equal(fasthttp.StatusUnauthorized))
		Expect(body["resultMessage"]).To(Equal("Missing authorization"))

		status, body, _ = get("/login?user=alice", nil)
		Expect(status).To(Equal(fasthttp.StatusOK))
		token, ok := body["token"].(string)
		Expect(ok).To(BeTrue())

		status, body, _ = get("/secured", map[string]string{"Authorization": "Bearer " + token})
		Expect(status).To(Equal(fasthttp.StatusOK))
		Expect(body["resultMessage"]).To(Equal("welcome"))

		Eventually(sink.written).Should(ContainElement(HaveKeyWithValue("user", "alice")))
	})

	It("answers ping", func() {
		status, body, _ := get("/service/ping", nil)
		Expect(status).To(Equal(fasthttp.StatusOK))
		Expect(body).To(HaveKeyWithValue("resultMessage", "Service is up"))
	})
})
