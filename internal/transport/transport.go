// Package transport performs single backend calls with a per-attempt timeout
// and bounded retries with geometric backoff.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/blacktop/postfan/internal/logutil"
	"github.com/blacktop/postfan/internal/postfan"
)

// GrowthFactor multiplies the delay after every failed attempt.
const GrowthFactor = 2.0

// Policy bounds one logical call.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// Delay returns the pause taken after failed attempt n (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(GrowthFactor, float64(attempt-1)))
}

func (p Policy) attempts() int {
	if p.MaxRetries < 1 {
		return 1
	}
	return p.MaxRetries
}

// RequestFunc builds a fresh request for every attempt so request bodies can
// be replayed.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Sleeper pauses between attempts. It returns early with ctx.Err() when the
// context is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// IsJSON reports whether the response declared a JSON content type.
func (r *Response) IsJSON() bool { return isJSON(r.Header.Get("Content-Type")) }

// Client issues requests with retries. Only one attempt is ever in flight.
type Client struct {
	http   *http.Client
	policy Policy
	sleep  Sleeper
	header http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleeper replaces the backoff sleeper.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// New returns a Client using policy as its default.
func New(policy Policy, opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{},
		policy: policy,
		sleep:  Sleep,
		header: http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the default policy.
func (c *Client) Policy() Policy { return c.policy }

// Do runs build with the client's default policy.
func (c *Client) Do(ctx context.Context, build RequestFunc) (*Response, error) {
	return c.DoWithPolicy(ctx, c.policy, build)
}

// DoWithPolicy performs the call, retrying on network errors, timeouts and
// non-JSON error responses. A non-2xx JSON response is returned to the caller
// as is because it carries a structured provider error. When every attempt
// fails the last error is returned.
func (c *Client) DoWithPolicy(ctx context.Context, policy Policy, build RequestFunc) (*Response, error) {
	attempts := policy.attempts()
	var lastErr *postfan.TransportError
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.attempt(ctx, policy, build)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request canceled: %w", ctx.Err())
		}
		var tErr *postfan.TransportError
		if !errors.As(err, &tErr) {
			return nil, err
		}
		tErr.Attempts = attempt
		lastErr = tErr
		logutil.Debug("request attempt failed", "url", tErr.URL, "attempt", attempt, "of", attempts, "err", err)

		if attempt == attempts {
			break
		}
		delay := policy.Delay(attempt)
		logutil.Debug("retrying request", "url", tErr.URL, "delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("request canceled: %w", err)
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, policy Policy, build RequestFunc) (*Response, error) {
	attemptCtx := ctx
	cancel := func() {}
	if policy.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
	}
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range c.header {
		if req.Header.Get(key) == "" {
			req.Header[key] = values
		}
	}
	if id := RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	url := req.URL.String()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(url, attemptCtx, ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(url, attemptCtx, ctx, err)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if !out.OK() && !out.IsJSON() {
		return nil, &postfan.TransportError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected %s response: %s", contentType(resp.Header), snippet(body)),
		}
	}
	return out, nil
}

func classify(url string, attemptCtx, parent context.Context, err error) error {
	if parent.Err() != nil {
		return err
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &postfan.TransportError{URL: url, Timeout: true}
	}
	return &postfan.TransportError{URL: url, Err: err}
}

func isJSON(value string) bool {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func contentType(h http.Header) string {
	if ct := h.Get("Content-Type"); ct != "" {
		return ct
	}
	return "untyped"
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return s
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type requestIDKey struct{}

// WithRequestID tags every request issued with ctx with an X-Request-ID header.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
