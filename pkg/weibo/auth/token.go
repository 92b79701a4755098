// Package auth manages delegated-access tokens: the OAuth 1.0 request/access
// token handshake, the OAuth 2.0 code exchange, and attaching credentials to
// outgoing calls.
package auth

import (
	"fmt"
	"net/url"

	"github.com/weibokit/weibo/pkg/weibo/apierr"
	"github.com/weibokit/weibo/pkg/weibo/oauth1"
	"github.com/weibokit/weibo/pkg/weibo/request"
)

// Credentials identify the calling application.
type Credentials struct {
	AppKey    string
	AppSecret string
}

// SigningContext carries what a token needs to authorize one call.
type SigningContext struct {
	Credentials
	Clock  oauth1.Clock
	Noncer oauth1.Noncer
}

// Authorizer attaches credentials to a call's parameters. It returns the
// HMAC key when the call must be signed, or nil when it must not.
type Authorizer interface {
	Authorize(params request.Params, sc SigningContext) (*oauth1.Key, error)
}

// State is the authorization state of an OAuth 1.0 token.
type State int

const (
	// StateUnauthorized is a request token awaiting user consent.
	StateUnauthorized State = iota
	// StateVerified is an access token usable for signed calls.
	StateVerified
)

func (s State) String() string {
	if s == StateVerified {
		return "verified"
	}
	return "unauthorized"
}

// Token is an OAuth 1.0 token. It starts as a request token and is promoted
// in place to an access token by Exchanger.SetVerifier, exactly once.
type Token struct {
	Key      string `json:"oauth_token"`
	Secret   string `json:"oauth_token_secret"`
	Callback string `json:"callback,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Name     string `json:"name,omitempty"`
	State    State  `json:"state"`
	// Raw is the body of the last token exchange response.
	Raw string `json:"raw,omitempty"`
}

var _ Authorizer = (*Token)(nil)

// NewAccessToken returns a verified token from stored credentials.
func NewAccessToken(key, secret string) *Token {
	return &Token{Key: key, Secret: secret, State: StateVerified}
}

// Verified reports whether the token may sign calls.
func (t *Token) Verified() bool {
	return t != nil && t.State == StateVerified
}

// String returns the raw exchange response when there is one.
func (t *Token) String() string {
	if t.Raw != "" {
		return t.Raw
	}
	v := url.Values{}
	v.Set(oauth1.ParamToken, t.Key)
	v.Set(oauth1.ParamTokenSecret, t.Secret)
	if t.UserID != "" {
		v.Set("user_id", t.UserID)
	}
	if t.Name != "" {
		v.Set("name", t.Name)
	}
	return v.Encode()
}

// SigningParams returns the oauth_* parameters for one signed call. It
// refuses an unverified token: no signed call may use incomplete credentials.
func (t *Token) SigningParams(consumerKey string, clock oauth1.Clock, noncer oauth1.Noncer) (map[string]string, error) {
	if !t.Verified() {
		return nil, apierr.ErrAuth("unauthorized token")
	}
	params := oauth1.CommonParams(consumerKey, clock, noncer)
	params[oauth1.ParamToken] = t.Key
	return params, nil
}

// Authorize adds the signing parameters and returns the HMAC key.
func (t *Token) Authorize(params request.Params, sc SigningContext) (*oauth1.Key, error) {
	oauth, err := t.SigningParams(sc.AppKey, sc.Clock, sc.Noncer)
	if err != nil {
		return nil, err
	}
	for k, v := range oauth {
		params[k] = v
	}
	return &oauth1.Key{ConsumerSecret: sc.AppSecret, TokenSecret: t.Secret}, nil
}

// BearerToken is an OAuth 2.0 access token. It is attached to calls as the
// access_token parameter and never signs anything.
type BearerToken struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	UID          string `json:"uid,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Raw          string `json:"raw,omitempty"`
}

var _ Authorizer = (*BearerToken)(nil)

// String returns the raw exchange response when there is one.
func (b *BearerToken) String() string {
	if b.Raw != "" {
		return b.Raw
	}
	return fmt.Sprintf("{access_token: %s, expires_in: %d, uid: %s}", b.AccessToken, b.ExpiresIn, b.UID)
}

// Authorize adds access_token. It returns a nil key.
func (b *BearerToken) Authorize(params request.Params, _ SigningContext) (*oauth1.Key, error) {
	if b == nil || b.AccessToken == "" {
		return nil, apierr.ErrAuth("empty access token")
	}
	params["access_token"] = b.AccessToken
	return nil, nil
}
