package weibo

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/weibokit/weibo/pkg/weibo/oauth1"
	"github.com/weibokit/weibo/pkg/weibo/transport"
)

// Option configures a Client.
type Option func(*config)

type config struct {
	doer       transport.Doer
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     *slog.Logger
	hooks      transport.Hooks
	clock      oauth1.Clock
	noncer     oauth1.Noncer
}

// WithTransport replaces the HTTP transport entirely. Timeout, user agent
// and HTTP client options are then ignored.
func WithTransport(d transport.Doer) Option {
	return func(c *config) { c.doer = d }
}

// WithHTTPClient sends requests through client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithTimeout bounds each request. The default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// WithLogger sets a debug logger for calls and requests.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithHooks installs observability hooks.
func WithHooks(h transport.Hooks) Option {
	return func(c *config) { c.hooks = h }
}

// WithClock sets the source of oauth_timestamp.
func WithClock(clock oauth1.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithNoncer sets the source of oauth_nonce.
func WithNoncer(n oauth1.Noncer) Option {
	return func(c *config) { c.noncer = n }
}
