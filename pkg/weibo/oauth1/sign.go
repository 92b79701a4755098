// Package oauth1 implements OAuth 1.0 HMAC-SHA1 request signing.
//
// Signing is pure: nonces and timestamps are produced by a Clock and a Noncer
// owned by the caller and passed in as ordinary parameters, so the same
// inputs always yield the same signature.
package oauth1

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // G505: HMAC-SHA1 is mandated by OAuth 1.0
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// Protocol constants.
const (
	SignatureMethod = "HMAC-SHA1"
	Version         = "1.0"
	ParamPrefix     = "oauth_"

	ParamConsumerKey     = "oauth_consumer_key"
	ParamNonce           = "oauth_nonce"
	ParamSignature       = "oauth_signature"
	ParamSignatureMethod = "oauth_signature_method"
	ParamTimestamp       = "oauth_timestamp"
	ParamToken           = "oauth_token"
	ParamTokenSecret     = "oauth_token_secret"
	ParamVerifier        = "oauth_verifier"
	ParamCallback        = "oauth_callback"
	ParamVersion         = "oauth_version"
)

// Key is the HMAC key material for one request.
// TokenSecret is empty while requesting a request token.
type Key struct {
	ConsumerSecret string
	TokenSecret    string
}

// String returns the HMAC key: consumerSecret&tokenSecret.
func (k Key) String() string {
	return k.ConsumerSecret + "&" + k.TokenSecret
}

// Sign returns the base64 HMAC-SHA1 signature of the request described by
// method, rawURL and params. Only parameters accepted by filter take part in
// the signature; a nil filter accepts everything.
func Sign(method, rawURL string, params map[string]string, key Key, filter Filter) string {
	return HMACSHA1(key.String(), BaseString(method, rawURL, params, filter))
}

// HMACSHA1 signs message with key and returns the standard base64 digest.
func HMACSHA1(key, message string) string {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(message))
	return strings.TrimRight(base64.StdEncoding.EncodeToString(mac.Sum(nil)), "\n")
}

// BaseString builds the signature base string:
//
//	METHOD&enc(base URL)&enc(normalized parameters)
//
// Query parameters already present on rawURL are folded into the parameter
// set and stripped from the base URL.
func BaseString(method, rawURL string, params map[string]string, filter Filter) string {
	base, query := splitURL(rawURL)

	all := make(map[string]string, len(params)+len(query))
	for k, vs := range query {
		if len(vs) > 0 {
			all[k] = vs[0]
		}
	}
	for k, v := range params {
		all[k] = v
	}

	return strings.ToUpper(method) + "&" + PercentEncode(base) + "&" + PercentEncode(NormalizeParams(all, filter))
}

// NormalizeParams encodes each accepted key and value, sorts the pairs by
// encoded key and joins them as k=v&k=v.
func NormalizeParams(params map[string]string, filter Filter) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if filter != nil && !filter(k) {
			continue
		}
		pairs = append(pairs, PercentEncode(k)+"="+PercentEncode(v))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// AuthorizationHeader renders params as an OAuth Authorization header value:
//
//	OAuth realm="", k1="v1", k2="v2"
//
// Keys are emitted in sorted order so the header is reproducible.
func AuthorizationHeader(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, `OAuth realm=""`)
	for _, k := range keys {
		parts = append(parts, PercentEncode(k)+`="`+PercentEncode(params[k])+`"`)
	}
	return strings.Join(parts, ", ")
}

// splitURL separates the scheme://host/path part from the query. The scheme
// and host are lowercased.
func splitURL(rawURL string) (string, url.Values) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, nil
	}
	query := u.Query()
	u.RawQuery = ""
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String(), query
}
