// Package request assembles outbound API requests: signing, Authorization
// header placement and body encoding. It performs no network I/O.
package request

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/weibokit/weibo/pkg/weibo/apierr"
	"github.com/weibokit/weibo/pkg/weibo/oauth1"
)

// Style selects where signed oauth_* parameters travel.
type Style int

const (
	// StyleQuery leaves oauth_* parameters with the other parameters.
	StyleQuery Style = iota
	// StyleHeader moves oauth_* parameters into the Authorization header.
	StyleHeader
)

// Content types.
const (
	ContentTypeForm      = "application/x-www-form-urlencoded"
	ContentTypeMultipart = "multipart/form-data"
)

// Input describes one call before encoding.
type Input struct {
	Method string
	URL    string
	Params Params

	// Key signs the request when non-nil.
	Key   *oauth1.Key
	Style Style

	// Upload is consulted when Params carries the upload field.
	Upload *UploadRule
}

// Request is a fully assembled request, ready for a transport.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Build assembles the request described by in. Upload preconditions are
// checked before anything else, so a rejected upload never reaches a transport.
func Build(in Input) (*Request, error) {
	method := strings.ToUpper(in.Method)
	if method != http.MethodGet && method != http.MethodPost {
		return nil, apierr.ErrValidation("unsupported http method %q", in.Method)
	}
	if _, err := url.Parse(in.URL); err != nil {
		return nil, apierr.ErrValidation("invalid url %q: %v", in.URL, err)
	}

	params := in.Params.Clone()
	req := &Request{Method: method, URL: in.URL, Header: make(http.Header)}

	var file *uploadFile
	if in.Upload != nil {
		if path, ok := params[in.Upload.field()]; ok {
			if method != http.MethodPost {
				return nil, apierr.ErrValidation("file upload requires POST, got %s", method)
			}
			f, err := in.Upload.check(path)
			if err != nil {
				return nil, err
			}
			file = f
			delete(params, in.Upload.field())
		}
	}

	if in.Key != nil && len(params) > 0 {
		filter := oauth1.All()
		if file != nil {
			filter = in.Upload.filter().And(oauth1.Except(in.Upload.field()))
		}
		params[oauth1.ParamSignature] = oauth1.Sign(method, in.URL, params, *in.Key, filter)

		if in.Style == StyleHeader {
			req.Header.Set("Authorization", oauth1.AuthorizationHeader(takeOAuth(params)))
		}
	}

	switch {
	case file != nil:
		body, contentType, err := encodeMultipart(params, file)
		if err != nil {
			return nil, err
		}
		req.Body = body
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	case method == http.MethodPost:
		req.Body = []byte(params.Encode())
		req.Header.Set("Content-Type", ContentTypeForm)
		req.Header.Set("Content-Length", strconv.Itoa(len(req.Body)))
	default:
		req.URL = withQuery(in.URL, params)
	}

	return req, nil
}

// takeOAuth removes and returns every oauth_* parameter.
func takeOAuth(params Params) map[string]string {
	out := make(map[string]string)
	for k, v := range params {
		if strings.HasPrefix(k, oauth1.ParamPrefix) {
			out[k] = v
			delete(params, k)
		}
	}
	return out
}

// withQuery appends params to rawURL, merging with any query already present.
func withQuery(rawURL string, params Params) string {
	if len(params) == 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
