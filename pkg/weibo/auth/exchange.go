package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/weibokit/weibo/pkg/weibo/apierr"
	"github.com/weibokit/weibo/pkg/weibo/envelope"
	"github.com/weibokit/weibo/pkg/weibo/oauth1"
	"github.com/weibokit/weibo/pkg/weibo/provider"
	"github.com/weibokit/weibo/pkg/weibo/request"
	"github.com/weibokit/weibo/pkg/weibo/transport"
)

// Exchanger runs token exchanges against one provider.
type Exchanger struct {
	Profile     *provider.Profile
	Credentials Credentials
	Transport   transport.Doer
	Clock       oauth1.Clock
	Noncer      oauth1.Noncer
}

// CreateToken obtains an unauthorized request token. An empty callback
// uses the provider default (desktop flow).
func (e *Exchanger) CreateToken(ctx context.Context, callback string) (*Token, error) {
	if err := e.requireVersion(1); err != nil {
		return nil, err
	}

	cb := e.Profile.Callback(callback)
	params := request.Params(oauth1.CommonParams(e.Credentials.AppKey, e.Clock, e.Noncer))
	if !e.Profile.OmitRequestCallback {
		params[oauth1.ParamCallback] = cb
	}

	values, raw, err := e.exchange(ctx, http.MethodGet, e.Profile.RequestTokenURL, params, "")
	if err != nil {
		return nil, err
	}

	tok := &Token{
		Key:      values.Get(oauth1.ParamToken),
		Secret:   values.Get(oauth1.ParamTokenSecret),
		Callback: cb,
		State:    StateUnauthorized,
		Raw:      raw,
	}
	if tok.Key == "" || tok.Secret == "" {
		return nil, apierr.ErrAuth("request token response missing oauth_token or oauth_token_secret")
	}
	return tok, nil
}

// SetVerifier exchanges an unauthorized token and the user's verifier for
// an access token, promoting tok in place. A verified token is rejected and
// left untouched; on any failure tok is unchanged.
func (e *Exchanger) SetVerifier(ctx context.Context, tok *Token, verifier string) error {
	if err := e.requireVersion(1); err != nil {
		return err
	}
	if tok == nil {
		return apierr.ErrAuth("nil token")
	}
	if tok.State == StateVerified {
		return apierr.ErrAuth("already authorized")
	}
	verifier = strings.TrimSpace(verifier)
	if verifier == "" && !e.Profile.OptionalVerifier {
		return apierr.ErrAuth("verifier is required")
	}

	params := request.Params(oauth1.CommonParams(e.Credentials.AppKey, e.Clock, e.Noncer))
	params[oauth1.ParamToken] = tok.Key
	if verifier != "" {
		params[oauth1.ParamVerifier] = verifier
	}

	values, raw, err := e.exchange(ctx, e.Profile.TokenMethod(), e.Profile.AccessTokenURL, params, tok.Secret)
	if err != nil {
		return err
	}

	key, secret := values.Get(oauth1.ParamToken), values.Get(oauth1.ParamTokenSecret)
	if key == "" || secret == "" {
		return apierr.ErrAuth("access token response missing oauth_token or oauth_token_secret")
	}

	tok.Key = key
	tok.Secret = secret
	tok.UserID = values.Get("user_id")
	tok.Name = values.Get("name")
	tok.Raw = raw
	tok.State = StateVerified
	return nil
}

// AuthorizationURL returns the page where the user grants access to tok.
// Web callbacks use the provider's authenticate endpoint when it has one.
func (e *Exchanger) AuthorizationURL(tok *Token) (string, error) {
	if err := e.requireVersion(1); err != nil {
		return "", err
	}
	if tok == nil || tok.Key == "" {
		return "", apierr.ErrAuth("token has no oauth_token")
	}
	if tok.Verified() {
		return "", apierr.ErrAuth("already authorized")
	}

	web := isWebCallback(tok.Callback)
	base := e.Profile.AuthorizeURL
	if web && e.Profile.AuthenticateURL != "" {
		base = e.Profile.AuthenticateURL
	}

	q := url.Values{}
	q.Set(oauth1.ParamToken, tok.Key)
	for k, v := range e.Profile.AuthorizeParams {
		q.Set(k, v)
	}
	if web && (e.Profile.AuthorizeCallback || e.Profile.AuthenticateURL != "") {
		q.Set(oauth1.ParamCallback, tok.Callback)
	}
	return withQuery(base, q)
}

// AuthorizationURL2 returns the OAuth 2.0 consent page for redirectURI.
func (e *Exchanger) AuthorizationURL2(redirectURI string) (string, error) {
	if err := e.requireVersion(2); err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("client_id", e.Credentials.AppKey)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	return withQuery(e.Profile.AuthorizeURL, q)
}

// ExchangeCode trades an OAuth 2.0 authorization code for a bearer token.
func (e *Exchanger) ExchangeCode(ctx context.Context, code, redirectURI string) (*BearerToken, error) {
	if err := e.requireVersion(2); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apierr.ErrAuth("authorization code is required")
	}

	params := request.Params{
		"client_id":     e.Credentials.AppKey,
		"client_secret": e.Credentials.AppSecret,
		"grant_type":    "authorization_code",
		"redirect_uri":  redirectURI,
		"code":          code,
	}
	req, err := request.Build(request.Input{
		Method: e.Profile.TokenMethod(),
		URL:    e.Profile.AccessTokenURL,
		Params: params,
	})
	if err != nil {
		return nil, err
	}

	resp, err := e.Transport.Do(ctx, req)
	if err != nil {
		return nil, apierr.ErrAuthCause("access token", err)
	}
	if resp.Status != http.StatusOK {
		return nil, apierr.ErrAuthStatus(resp.Status, resp.Reason, resp.Body)
	}

	v, err := envelope.Parse(resp.Body)
	if err != nil {
		return nil, apierr.ErrAuthCause("parsing access token", err)
	}
	tok := &BearerToken{
		AccessToken:  v.Get("access_token").Str(),
		ExpiresIn:    v.Get("expires_in").Int(),
		UID:          v.Get("uid").Str(),
		RefreshToken: v.Get("refresh_token").Str(),
		Raw:          string(resp.Body),
	}
	if tok.AccessToken == "" {
		return nil, apierr.ErrAuth("access token response missing access_token")
	}
	return tok, nil
}

// exchange signs params with appSecret&tokenSecret, sends them as a query
// style request and parses a key=value&... body.
func (e *Exchanger) exchange(ctx context.Context, method, endpoint string, params request.Params, tokenSecret string) (url.Values, string, error) {
	req, err := request.Build(request.Input{
		Method: method,
		URL:    endpoint,
		Params: params,
		Key:    &oauth1.Key{ConsumerSecret: e.Credentials.AppSecret, TokenSecret: tokenSecret},
		Style:  request.StyleQuery,
	})
	if err != nil {
		return nil, "", err
	}

	resp, err := e.Transport.Do(ctx, req)
	if err != nil {
		return nil, "", apierr.ErrAuthCause("token exchange", err)
	}
	if resp.Status != http.StatusOK {
		return nil, "", apierr.ErrAuthStatus(resp.Status, resp.Reason, resp.Body)
	}

	raw := strings.TrimSpace(string(resp.Body))
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, "", apierr.ErrAuthCause("parsing token response", err)
	}
	return values, raw, nil
}

func (e *Exchanger) requireVersion(v int) error {
	if e.Profile.OAuthVersion != v {
		return apierr.ErrAuth("provider " + e.Profile.Name + " does not use OAuth " + versionName(v))
	}
	return nil
}

func versionName(v int) string {
	if v == 2 {
		return "2.0"
	}
	return "1.0"
}

func isWebCallback(cb string) bool {
	cb = strings.ToLower(cb)
	return strings.HasPrefix(cb, "http://") || strings.HasPrefix(cb, "https://")
}

func withQuery(base string, q url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", apierr.ErrAuthCause("invalid authorize url", err)
	}
	existing := u.Query()
	for k, vs := range q {
		existing[k] = vs
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}
