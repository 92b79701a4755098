// Package transport performs the HTTP exchange for an assembled request.
//
// A transport is stateless per call: it sends exactly one request and
// returns the status, reason phrase and body. It never retries.
package transport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/weibokit/weibo/pkg/weibo/apierr"
	"github.com/weibokit/weibo/pkg/weibo/request"
)

// DefaultTimeout bounds one request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "weibo-go"

// Response is the raw outcome of one HTTP exchange.
type Response struct {
	Status int
	Reason string
	Header http.Header
	Body   []byte
}

// Doer executes an assembled request.
type Doer interface {
	Do(ctx context.Context, req *request.Request) (*Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(ctx context.Context, req *request.Request) (*Response, error)

// Do calls f.
func (f DoerFunc) Do(ctx context.Context, req *request.Request) (*Response, error) {
	return f(ctx, req)
}

// HTTP is a Doer backed by net/http.
type HTTP struct {
	client    *http.Client
	userAgent string
	hooks     Hooks
	logger    *slog.Logger
}

var _ Doer = (*HTTP)(nil)

// Option configures an HTTP transport.
type Option func(*options)

type options struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	hooks     Hooks
	logger    *slog.Logger
}

// WithHTTPClient uses client instead of a fresh one. The client is copied
// if a timeout must be applied.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.client = client }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithHooks installs observability hooks.
func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates an HTTP transport.
func New(opts ...Option) *HTTP {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var client *http.Client
	switch {
	case o.client == nil:
		timeout := o.timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	case o.timeout > 0:
		c := *o.client
		c.Timeout = o.timeout
		client = &c
	default:
		client = o.client
	}

	if o.userAgent == "" {
		o.userAgent = DefaultUserAgent
	}
	if o.hooks == nil {
		o.hooks = NopHooks{}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	return &HTTP{
		client:    client,
		userAgent: o.userAgent,
		hooks:     o.hooks,
		logger:    o.logger,
	}
}

// Timeout returns the effective client timeout.
func (t *HTTP) Timeout() time.Duration {
	return t.client.Timeout
}

// Do sends req once. Connection failures and body read failures are
// transport errors; any received status, including non-200, is returned
// as a Response for the caller to interpret.
func (t *HTTP) Do(ctx context.Context, req *request.Request) (*Response, error) {
	info := RequestInfo{Method: req.Method, URL: req.URL}
	ctx = t.hooks.OnRequestStart(ctx, info)
	start := time.Now()

	resp, err := t.do(ctx, req)

	result := RequestResult{Duration: time.Since(start), Error: err}
	if resp != nil {
		result.StatusCode = resp.Status
		result.BodyBytes = len(resp.Body)
	}
	t.hooks.OnRequestEnd(ctx, info, result)

	if err != nil {
		t.logger.Debug("request failed", "method", req.Method, "url", RedactURL(req.URL), "error", err)
		return nil, err
	}
	t.logger.Debug("request",
		"method", req.Method,
		"url", RedactURL(req.URL),
		"status", resp.Status,
		"bytes", len(resp.Body),
		"duration", result.Duration)
	return resp, nil
}

func (t *HTTP) do(ctx context.Context, req *request.Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, apierr.ErrNetwork(err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, apierr.ErrNetwork(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.ErrNetwork(err)
	}

	return &Response{
		Status: resp.StatusCode,
		Reason: ReasonPhrase(resp),
		Header: resp.Header,
		Body:   data,
	}, nil
}

// ReasonPhrase extracts the reason phrase from a response status line,
// falling back to the standard text for the code.
func ReasonPhrase(resp *http.Response) string {
	if reason, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok && reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}

// sensitiveParams are redacted from logged URLs.
var sensitiveParams = map[string]bool{
	"oauth_signature":    true,
	"oauth_token":        true,
	"oauth_token_secret": true,
	"oauth_verifier":     true,
	"access_token":       true,
	"client_secret":      true,
	"code":               true,
}

// RedactURL replaces credential-bearing query values with [REDACTED].
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	changed := false
	for k := range q {
		if sensitiveParams[strings.ToLower(k)] {
			q.Set(k, "[REDACTED]")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}
