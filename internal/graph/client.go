// internal/graph/client.go
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"graphplane/pkg/audit"
	"graphplane/pkg/tenants"
)

const (
	// DefaultTimeout bounds each individual attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries on top of the initial attempt.
	DefaultMaxRetries = 3
)

// TokenSource acquires a bearer token for a scope set. Implemented by
// auth.Resolver; stubbed in tests.
type TokenSource interface {
	AcquireToken(ctx context.Context, scopes []string) (string, error)
}

// Clock is the slice of timekeeping the retry loop needs. Satisfied by
// benbjohnson/clock, so tests substitute time without real sleeps.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// Client is the tenant-scoped dispatcher: it owns one tenant's base URL and
// auth config, acquires a token per attempt, and applies the retry/backoff
// policy against throttling.
//
// Retries apply to every method, including non-idempotent writes; a create
// retried across a transient status can duplicate the resource. Known,
// accepted risk: Graph offers no general idempotency-key header to inject.
type Client struct {
	tenant     tenants.TenantConfig
	tokens     TokenSource
	audit      *audit.Logger
	httpClient *http.Client
	clock      Clock
	maxRetries int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithClock(clk Clock) Option {
	return func(c *Client) { c.clock = clk }
}

func NewClient(tenant tenants.TenantConfig, tokens TokenSource, auditLog *audit.Logger, opts ...Option) *Client {
	c := &Client{
		tenant: tenant,
		tokens: tokens,
		audit:  auditLog,
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		clock:      clock.New(),
		maxRetries: DefaultMaxRetries,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Response is the dispatcher's view of a completed call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

type requestSpec struct {
	scopes  []string
	headers http.Header
	body    any
	hasBody bool
}

type RequestOption func(*requestSpec)

// WithScopes overrides the tenant's default scopes for this call.
func WithScopes(scopes ...string) RequestOption {
	return func(s *requestSpec) { s.scopes = scopes }
}

// WithJSONBody attaches a JSON-encoded request body.
func WithJSONBody(v any) RequestOption {
	return func(s *requestSpec) {
		s.body = v
		s.hasBody = true
	}
}

// WithHeader adds a caller-supplied header. Caller headers are merged into
// every attempt, never dropped; Authorization is reserved for the dispatcher.
func WithHeader(key, value string) RequestOption {
	return func(s *requestSpec) {
		if s.headers == nil {
			s.headers = http.Header{}
		}
		s.headers.Add(key, value)
	}
}

// Get issues a GET against a path under the tenant's Graph base URL.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, opts...)
}

// Post issues a POST with a JSON body against a path under the tenant's base URL.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPost, path, append(opts, WithJSONBody(body))...)
}

// Request executes one logical call with the governed retry policy:
// a fresh token per attempt, numeric Retry-After hints honored, exponential
// backoff otherwise, and an audit event for every attempt outcome. The retry
// sleep blocks the calling goroutine but aborts if ctx is cancelled.
func (c *Client) Request(ctx context.Context, method, path string, opts ...RequestOption) (*Response, error) {
	var spec requestSpec
	for _, o := range opts {
		o(&spec)
	}
	scopes := spec.scopes
	if len(scopes) == 0 {
		scopes = c.tenant.DefaultScopes
	}
	var body []byte
	if spec.hasBody {
		var err error
		body, err = json.Marshal(spec.body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}
	u := c.url(path)

	backoff := DefaultInitialBackoff
	attempts := c.maxRetries + 1
	var lastStatus int

	for attempt := 1; attempt <= attempts; attempt++ {
		// Tokens can expire mid-backoff, so each attempt acquires anew.
		token, err := c.tokens.AcquireToken(ctx, scopes)
		if err != nil {
			return nil, err
		}

		var reader io.Reader
		if spec.hasBody {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, fmt.Errorf("build graph request: %w", err)
		}
		for k, vs := range spec.headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if spec.hasBody && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("graph request %s %s: %w", method, u, err)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("read graph response for %s %s: %w", method, u, readErr)
		}
		status := resp.StatusCode
		requestsTotal.WithLabelValues(c.tenant.TenantID, statusClass(status)).Inc()

		switch {
		case status == http.StatusTooManyRequests ||
			status == http.StatusServiceUnavailable ||
			status == http.StatusGatewayTimeout:
			lastStatus = status
			hint := RetryAfterHint(resp.Header)
			wait, next := NextWait(hint, backoff)
			throttledTotal.WithLabelValues(c.tenant.TenantID).Inc()
			c.audit.Warn("graph_throttled", audit.Fields{
				"tenant_id":   c.tenant.TenantID,
				"status":      status,
				"retry_after": wait.Seconds(),
				"attempt":     attempt,
			})
			if attempt == attempts {
				continue // budget spent, no point sleeping
			}
			select {
			case <-c.clock.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff = next

		case status >= 400:
			c.audit.Error("graph_request_failed", audit.Fields{
				"tenant_id": c.tenant.TenantID,
				"status":    status,
				"url":       u,
				"body":      string(respBody),
			})
			return nil, &RequestError{StatusCode: status, URL: u, Body: string(respBody)}

		default:
			c.audit.Info("graph_request_succeeded", audit.Fields{
				"tenant_id": c.tenant.TenantID,
				"status":    status,
				"url":       u,
			})
			return &Response{StatusCode: status, Header: resp.Header, Body: respBody}, nil
		}
	}

	return nil, &RetryExhaustedError{Attempts: attempts, LastStatus: lastStatus}
}

// url joins a path to the tenant base URL; already-absolute URLs pass through.
func (c *Client) url(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(c.tenant.GraphBaseURL, "/") + path
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
