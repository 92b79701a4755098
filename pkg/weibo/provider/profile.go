// Package provider describes microblogging providers as configuration data.
// One signing-and-dispatch engine serves every provider; a Profile carries the
// endpoints and conventions that differ between them.
package provider

import (
	"fmt"
	"maps"
	"net/url"
	"strings"

	"github.com/weibokit/weibo/pkg/weibo/oauth1"
)

// Signature styles.
const (
	// StyleHeader moves oauth_* parameters into an Authorization header.
	StyleHeader = "header"
	// StyleQuery leaves oauth_* parameters in the query string or form body.
	StyleQuery = "query"
)

// Upload signing policies.
const (
	// SignAll signs every form field except the file itself.
	SignAll = "all"
	// SignOAuthOnly signs only oauth_* parameters on uploads.
	SignOAuthOnly = "oauth_only"
)

// DefaultUploadField is the parameter that names a file to attach.
const DefaultUploadField = "pic"

// Profile describes one provider.
type Profile struct {
	Name         string `yaml:"name"`
	Title        string `yaml:"title"`
	OAuthVersion int    `yaml:"oauth_version"`
	BaseURL      string `yaml:"base_url"`
	PathSuffix   string `yaml:"path_suffix"`

	RequestTokenURL   string            `yaml:"request_token_url"`
	AuthorizeURL      string            `yaml:"authorize_url"`
	AuthenticateURL   string            `yaml:"authenticate_url"`
	AccessTokenURL    string            `yaml:"access_token_url"`
	AccessTokenMethod string            `yaml:"access_token_method"`
	AuthorizeParams   map[string]string `yaml:"authorize_params"`

	// AuthorizeCallback appends oauth_callback to the authorization URL
	// when the token's callback is a web URL.
	AuthorizeCallback bool `yaml:"authorize_callback"`
	// OmitRequestCallback leaves oauth_callback out of the request token call.
	OmitRequestCallback bool `yaml:"omit_request_callback"`
	// OptionalVerifier permits exchanging a request token with an empty verifier.
	OptionalVerifier bool   `yaml:"optional_verifier"`
	DefaultCallback  string `yaml:"default_callback"`

	SignatureStyle string `yaml:"signature_style"`
	Upload         Upload `yaml:"upload"`

	ReservedWords map[string]string `yaml:"reserved_words"`
	ParamPrefixes map[string]string `yaml:"param_prefixes"`
	ExtraParams   map[string]string `yaml:"extra_params"`
}

// Upload bounds and signing policy for multipart file uploads.
type Upload struct {
	Field    string `yaml:"field"`
	MinBytes int64  `yaml:"min_bytes"`
	MaxBytes int64  `yaml:"max_bytes"`
	Sign     string `yaml:"sign"`
}

// FieldName returns the upload field, defaulting to "pic".
func (u Upload) FieldName() string {
	if u.Field == "" {
		return DefaultUploadField
	}
	return u.Field
}

// Filter returns the signature filter applied to upload requests.
func (u Upload) Filter() oauth1.Filter {
	return oauth1.FilterByName(u.Sign)
}

// HeaderAuth reports whether oauth_* parameters travel in the Authorization header.
func (p *Profile) HeaderAuth() bool {
	return p.SignatureStyle == StyleHeader
}

// TokenMethod returns the HTTP method for the access token exchange.
func (p *Profile) TokenMethod() string {
	if p.AccessTokenMethod == "" {
		return "GET"
	}
	return strings.ToUpper(p.AccessTokenMethod)
}

// Callback returns cb, or the profile default when cb is empty.
func (p *Profile) Callback(cb string) string {
	if cb != "" {
		return cb
	}
	if p.DefaultCallback != "" {
		return p.DefaultCallback
	}
	return "oob"
}

// Endpoint resolves an API path against the base URL and appends the path
// suffix. Absolute URLs are used as given, still receiving the suffix.
func (p *Profile) Endpoint(path string) string {
	var u string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u = path
	} else {
		u = strings.TrimSuffix(p.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if p.PathSuffix != "" && !strings.HasSuffix(strings.ToLower(u), strings.ToLower(p.PathSuffix)) {
		u += p.PathSuffix
	}
	return u
}

// RewriteSegment substitutes a reserved path segment with the provider's token.
func (p *Profile) RewriteSegment(seg string) string {
	if r, ok := p.ReservedWords[seg]; ok {
		return r
	}
	return seg
}

// RewriteParam rewrites a parameter name that starts with a configured prefix,
// e.g. "__id" becomes ":id".
func (p *Profile) RewriteParam(key string) string {
	for from, to := range p.ParamPrefixes {
		if from != "" && strings.HasPrefix(key, from) {
			return to + key[len(from):]
		}
	}
	return key
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	c := *p
	c.AuthorizeParams = maps.Clone(p.AuthorizeParams)
	c.ReservedWords = maps.Clone(p.ReservedWords)
	c.ParamPrefixes = maps.Clone(p.ParamPrefixes)
	c.ExtraParams = maps.Clone(p.ExtraParams)
	return &c
}

// Validate checks that the profile is complete for its OAuth version.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile: name is required")
	}
	if err := absoluteURL("base_url", p.BaseURL); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}

	required := map[string]string{
		"authorize_url":    p.AuthorizeURL,
		"access_token_url": p.AccessTokenURL,
	}
	switch p.OAuthVersion {
	case 1:
		required["request_token_url"] = p.RequestTokenURL
		switch p.SignatureStyle {
		case "", StyleHeader, StyleQuery:
		default:
			return fmt.Errorf("profile %s: unknown signature_style %q", p.Name, p.SignatureStyle)
		}
	case 2:
	default:
		return fmt.Errorf("profile %s: oauth_version must be 1 or 2, got %d", p.Name, p.OAuthVersion)
	}
	for field, v := range required {
		if err := absoluteURL(field, v); err != nil {
			return fmt.Errorf("profile %s: %w", p.Name, err)
		}
	}
	if p.AuthenticateURL != "" {
		if err := absoluteURL("authenticate_url", p.AuthenticateURL); err != nil {
			return fmt.Errorf("profile %s: %w", p.Name, err)
		}
	}

	switch p.TokenMethod() {
	case "GET", "POST":
	default:
		return fmt.Errorf("profile %s: access_token_method must be GET or POST", p.Name)
	}

	switch p.Upload.Sign {
	case "", SignAll, SignOAuthOnly:
	default:
		return fmt.Errorf("profile %s: unknown upload sign policy %q", p.Name, p.Upload.Sign)
	}
	if p.Upload.MinBytes < 0 || p.Upload.MaxBytes < 0 {
		return fmt.Errorf("profile %s: upload bounds must not be negative", p.Name)
	}
	if p.Upload.MaxBytes > 0 && p.Upload.MinBytes > p.Upload.MaxBytes {
		return fmt.Errorf("profile %s: upload min_bytes exceeds max_bytes", p.Name)
	}
	return nil
}

func absoluteURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL: %s", field, raw)
	}
	return nil
}
