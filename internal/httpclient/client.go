package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/clbanning/mxj/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
)

// ErrStatus is returned for responses outside the 2xx range.
var ErrStatus = errors.New("unexpected response status")

// Options tune a single request.
type Options struct {
	DecodeJSON bool
	DecodeXML  bool
	// QuietTimeout logs timeouts at debug instead of error level.
	QuietTimeout bool
	// ReturnErrors makes failures return an error. By default a failed
	// request is logged and yields a nil response and nil error.
	ReturnErrors bool
	Headers      map[string]string
}

// Response is a completed outbound request.
type Response struct {
	StatusCode int
	Body       []byte
	// Data holds the decoded body when DecodeJSON or DecodeXML is set.
	Data any
}

// Client is a shared outbound HTTP client with a connection cap per host.
type Client struct {
	client  *fasthttp.Client
	timeout time.Duration
	logger  *zap.Logger
}

func New(cfg configtypes.HTTPClientConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout.ToDuration()
	return &Client{
		client: &fasthttp.Client{
			MaxConnsPerHost: cfg.MaxConns,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// Get fetches rawURL.
func (c *Client) Get(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(rawURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	return c.do(ctx, req, opts)
}

// PostForm posts form as application/x-www-form-urlencoded.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, opts Options) (*Response, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(rawURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBodyString(form.Encode())
	return c.do(ctx, req, opts)
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, opts Options) (*Response, error) {
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	target := req.URI().String()
	res, err := c.exchange(ctx, req, resp, opts)
	if err == nil {
		return res, nil
	}

	if isTimeout(err) {
		if opts.QuietTimeout {
			c.logger.Debug("HTTP request timed out", zap.String("url", target))
		} else {
			c.logger.Error("HTTP request timed out", zap.String("url", target), zap.Error(err))
		}
	} else {
		c.logger.Warn("HTTP request failed", zap.String("url", target), zap.Error(err))
	}

	if opts.ReturnErrors {
		return nil, err
	}
	return nil, nil
}

func (c *Client) exchange(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, opts Options) (*Response, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var err error
	if timeout > 0 {
		err = c.client.DoTimeout(req, resp, timeout)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URI().String(), err)
	}

	res := &Response{
		StatusCode: resp.StatusCode(),
		Body:       append([]byte(nil), resp.Body()...),
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, res.StatusCode)
	}

	switch {
	case opts.DecodeJSON:
		if err := json.Unmarshal(res.Body, &res.Data); err != nil {
			return nil, fmt.Errorf("failed to decode JSON response: %w", err)
		}
	case opts.DecodeXML:
		m, err := mxj.NewMapXml(res.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode XML response: %w", err)
		}
		res.Data = map[string]any(m)
	}

	return res, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
