// Package weibo is a client for OAuth-protected microblogging APIs.
//
// A Client binds one provider profile and one application's credentials.
// It acquires tokens, signs or authorizes calls, and interprets responses:
//
//	client, err := weibo.NewFromCatalog("sina", auth.Credentials{AppKey: key, AppSecret: secret})
//	tok, err := client.CreateToken(ctx, "")
//	url, err := client.AuthorizationURL(tok)
//	// ... the user approves and returns a verifier ...
//	tok, err = client.ExchangeVerifier(ctx, tok, verifier)
//	status, err := client.API().Path("statuses", "update").Post(ctx, tok, request.Params{"status": "hi"})
//
// A Client holds no per-call state and is safe for concurrent use.
// Tokens belong to the caller and must not be shared by concurrent exchanges.
package weibo

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/weibokit/weibo/pkg/weibo/apierr"
	"github.com/weibokit/weibo/pkg/weibo/auth"
	"github.com/weibokit/weibo/pkg/weibo/dispatch"
	"github.com/weibokit/weibo/pkg/weibo/envelope"
	"github.com/weibokit/weibo/pkg/weibo/oauth1"
	"github.com/weibokit/weibo/pkg/weibo/provider"
	"github.com/weibokit/weibo/pkg/weibo/request"
	"github.com/weibokit/weibo/pkg/weibo/transport"
)

// Version is the library version.
const Version = "0.3.0"

// DefaultUserAgent identifies the library to providers.
const DefaultUserAgent = "weibo-go/" + Version

// Client calls one provider on behalf of one application.
type Client struct {
	profile   *provider.Profile
	creds     auth.Credentials
	doer      transport.Doer
	hooks     transport.Hooks
	logger    *slog.Logger
	clock     oauth1.Clock
	noncer    oauth1.Noncer
	exchanger *auth.Exchanger
}

var _ dispatch.Invoker = (*Client)(nil)

// New creates a client for profile. The profile is copied.
func New(profile *provider.Profile, creds auth.Credentials, opts ...Option) (*Client, error) {
	if profile == nil {
		return nil, apierr.ErrValidation("provider profile is required")
	}
	if err := profile.Validate(); err != nil {
		return nil, apierr.ErrValidation("%v", err)
	}
	if creds.AppKey == "" || creds.AppSecret == "" {
		return nil, apierr.ErrValidation("app key and app secret are required")
	}

	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.hooks == nil {
		cfg.hooks = transport.NopHooks{}
	}
	if cfg.clock == nil {
		cfg.clock = oauth1.SystemClock{}
	}
	if cfg.noncer == nil {
		cfg.noncer = oauth1.RandomNoncer{}
	}
	if cfg.doer == nil {
		ua := cfg.userAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		topts := []transport.Option{
			transport.WithUserAgent(ua),
			transport.WithHooks(cfg.hooks),
			transport.WithLogger(cfg.logger),
		}
		if cfg.httpClient != nil {
			topts = append(topts, transport.WithHTTPClient(cfg.httpClient))
		}
		if cfg.timeout > 0 {
			topts = append(topts, transport.WithTimeout(cfg.timeout))
		}
		cfg.doer = transport.New(topts...)
	}

	p := profile.Clone()
	return &Client{
		profile: p,
		creds:   creds,
		doer:    cfg.doer,
		hooks:   cfg.hooks,
		logger:  cfg.logger,
		clock:   cfg.clock,
		noncer:  cfg.noncer,
		exchanger: &auth.Exchanger{
			Profile:     p,
			Credentials: creds,
			Transport:   cfg.doer,
			Clock:       cfg.clock,
			Noncer:      cfg.noncer,
		},
	}, nil
}

// NewFromCatalog creates a client for a built-in provider such as "sina".
func NewFromCatalog(name string, creds auth.Credentials, opts ...Option) (*Client, error) {
	p, err := provider.Lookup(name)
	if err != nil {
		return nil, apierr.ErrValidation("%v", err)
	}
	return New(p, creds, opts...)
}

// Profile returns a copy of the client's provider profile.
func (c *Client) Profile() *provider.Profile {
	return c.profile.Clone()
}

// CreateToken starts the OAuth 1.0 handshake and returns an unauthorized
// request token.
func (c *Client) CreateToken(ctx context.Context, callback string) (tok *auth.Token, err error) {
	ctx, end := c.operation(ctx, "oauth/request_token", "GET")
	defer func() { end(err) }()
	return c.exchanger.CreateToken(ctx, callback)
}

// AuthorizationURL returns the page where the user approves tok.
func (c *Client) AuthorizationURL(tok *auth.Token) (string, error) {
	return c.exchanger.AuthorizationURL(tok)
}

// ExchangeVerifier promotes tok to an access token using the verifier the
// user obtained from the authorization page. tok is updated in place and
// returned.
func (c *Client) ExchangeVerifier(ctx context.Context, tok *auth.Token, verifier string) (_ *auth.Token, err error) {
	ctx, end := c.operation(ctx, "oauth/access_token", c.profile.TokenMethod())
	defer func() { end(err) }()
	if err := c.exchanger.SetVerifier(ctx, tok, verifier); err != nil {
		return nil, err
	}
	return tok, nil
}

// AuthorizationURL2 returns the OAuth 2.0 consent page.
func (c *Client) AuthorizationURL2(redirectURI string) (string, error) {
	return c.exchanger.AuthorizationURL2(redirectURI)
}

// ExchangeCode trades an OAuth 2.0 authorization code for a bearer token.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (tok *auth.BearerToken, err error) {
	ctx, end := c.operation(ctx, "oauth2/access_token", c.profile.TokenMethod())
	defer func() { end(err) }()
	return c.exchanger.ExchangeCode(ctx, code, redirectURI)
}

// API returns the root method chain bound to this client.
func (c *Client) API() dispatch.Chain {
	return dispatch.New(c, c.profile.RewriteSegment)
}

// Invoke executes a resolved chain endpoint.
func (c *Client) Invoke(ctx context.Context, ep dispatch.Endpoint, a auth.Authorizer, params request.Params) (envelope.Value, error) {
	return c.Call(ctx, a, ep.Method, ep.Path(), params)
}

// Call issues one API call. path is relative to the provider base URL or
// absolute. a may be nil for calls that need no credentials.
func (c *Client) Call(ctx context.Context, a auth.Authorizer, verb, path string, params request.Params) (v envelope.Value, err error) {
	verb = strings.ToUpper(verb)
	ctx, end := c.operation(ctx, path, verb)
	defer func() { end(err) }()

	prepared := make(request.Params, len(params)+len(c.profile.ExtraParams))
	for k, val := range params {
		prepared[c.profile.RewriteParam(k)] = val
	}
	for k, val := range c.profile.ExtraParams {
		prepared[k] = val
	}

	var key *oauth1.Key
	if a != nil {
		if err := c.checkAuthorizer(a); err != nil {
			return envelope.Value{}, err
		}
		key, err = a.Authorize(prepared, auth.SigningContext{
			Credentials: c.creds,
			Clock:       c.clock,
			Noncer:      c.noncer,
		})
		if err != nil {
			return envelope.Value{}, err
		}
	}

	style := request.StyleQuery
	if c.profile.HeaderAuth() {
		style = request.StyleHeader
	}
	req, err := request.Build(request.Input{
		Method: verb,
		URL:    c.profile.Endpoint(path),
		Params: prepared,
		Key:    key,
		Style:  style,
		Upload: &request.UploadRule{
			Field:    c.profile.Upload.FieldName(),
			MinBytes: c.profile.Upload.MinBytes,
			MaxBytes: c.profile.Upload.MaxBytes,
			Filter:   c.profile.Upload.Filter(),
		},
	})
	if err != nil {
		return envelope.Value{}, err
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return envelope.Value{}, err
	}
	return envelope.Interpret(resp.Status, resp.Reason, resp.Body)
}

func (c *Client) checkAuthorizer(a auth.Authorizer) error {
	switch a.(type) {
	case *auth.Token:
		if c.profile.OAuthVersion != 1 {
			return apierr.ErrAuth("OAuth 1.0 token used with OAuth 2.0 provider " + c.profile.Name)
		}
	case *auth.BearerToken:
		if c.profile.OAuthVersion != 2 {
			return apierr.ErrAuth("OAuth 2.0 token used with OAuth 1.0 provider " + c.profile.Name)
		}
	}
	return nil
}

// operation brackets one logical call with hooks and a debug log line.
func (c *Client) operation(ctx context.Context, name, method string) (context.Context, func(error)) {
	op := transport.OperationInfo{Name: name, Method: method}
	ctx = c.hooks.OnOperationStart(ctx, op)
	start := time.Now()
	return ctx, func(err error) {
		d := time.Since(start)
		c.hooks.OnOperationEnd(ctx, op, err, d)
		if err != nil {
			c.logger.Debug("call failed", "provider", c.profile.Name, "op", name, "method", method, "error", err)
			return
		}
		c.logger.Debug("call", "provider", c.profile.Name, "op", name, "method", method, "duration", d)
	}
}
