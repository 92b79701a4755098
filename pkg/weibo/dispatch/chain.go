// Package dispatch resolves a chain of path segments and a terminal HTTP
// verb into an API endpoint.
//
//	api.Path("statuses", "update").Post(ctx, tok, params)
//
// A Chain is an immutable value. Path returns a new chain, so chains built
// from the same root never observe each other and no reset is needed after
// a call, whether it succeeds or fails.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/weibokit/weibo/pkg/weibo/apierr"
	"github.com/weibokit/weibo/pkg/weibo/auth"
	"github.com/weibokit/weibo/pkg/weibo/envelope"
	"github.com/weibokit/weibo/pkg/weibo/request"
)

// Endpoint is a resolved API operation.
type Endpoint struct {
	Method   string
	Segments []string
}

// Path joins the segments with "/".
func (e Endpoint) Path() string {
	return strings.Join(e.Segments, "/")
}

func (e Endpoint) String() string {
	return e.Method + " " + e.Path()
}

// Invoker executes a resolved endpoint.
type Invoker interface {
	Invoke(ctx context.Context, ep Endpoint, a auth.Authorizer, params request.Params) (envelope.Value, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, ep Endpoint, a auth.Authorizer, params request.Params) (envelope.Value, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, ep Endpoint, a auth.Authorizer, params request.Params) (envelope.Value, error) {
	return f(ctx, ep, a, params)
}

// Chain accumulates path segments until a terminal verb.
type Chain struct {
	invoker  Invoker
	rewrite  func(string) string
	segments []string
}

// New returns an empty root chain. rewrite, if non-nil, maps each segment to
// the provider's path token (e.g. "delete" to "del") when the chain is resolved.
func New(invoker Invoker, rewrite func(string) string) Chain {
	return Chain{invoker: invoker, rewrite: rewrite}
}

// Path returns a new chain with segments appended. A segment containing "/"
// contributes each of its parts.
func (c Chain) Path(segments ...string) Chain {
	next := Chain{
		invoker:  c.invoker,
		rewrite:  c.rewrite,
		segments: slices.Clone(c.segments),
	}
	for _, s := range segments {
		for part := range strings.SplitSeq(s, "/") {
			if part != "" {
				next.segments = append(next.segments, part)
			}
		}
	}
	return next
}

// Segments returns the accumulated segments before rewriting.
func (c Chain) Segments() []string {
	return slices.Clone(c.segments)
}

// Endpoint resolves the chain for verb.
func (c Chain) Endpoint(verb string) Endpoint {
	segs := make([]string, len(c.segments))
	for i, s := range c.segments {
		if c.rewrite != nil {
			s = c.rewrite(s)
		}
		segs[i] = s
	}
	return Endpoint{Method: strings.ToUpper(verb), Segments: segs}
}

// Get issues the chain as a GET.
func (c Chain) Get(ctx context.Context, a auth.Authorizer, params request.Params) (envelope.Value, error) {
	return c.Call(ctx, http.MethodGet, a, params)
}

// Post issues the chain as a POST.
func (c Chain) Post(ctx context.Context, a auth.Authorizer, params request.Params) (envelope.Value, error) {
	return c.Call(ctx, http.MethodPost, a, params)
}

// Call issues the chain with an arbitrary verb.
func (c Chain) Call(ctx context.Context, verb string, a auth.Authorizer, params request.Params) (envelope.Value, error) {
	if len(c.segments) == 0 {
		return envelope.Value{}, apierr.ErrValidation("empty method chain")
	}
	if c.invoker == nil {
		return envelope.Value{}, apierr.ErrValidation("chain has no invoker")
	}
	return c.invoker.Invoke(ctx, c.Endpoint(verb), a, params)
}

// Parse splits a dotted expression such as "statuses.update.post" into
// path segments and an upper-cased verb. The form "statuses/update:post"
// is accepted too.
func Parse(expr string) ([]string, string, error) {
	expr = strings.TrimSpace(expr)

	var path, verb string
	if i := strings.LastIndex(expr, ":"); i >= 0 {
		path, verb = expr[:i], expr[i+1:]
	} else if i := strings.LastIndex(expr, "."); i >= 0 {
		path, verb = expr[:i], expr[i+1:]
	} else {
		return nil, "", fmt.Errorf("method %q has no verb (expected e.g. statuses.update.post)", expr)
	}

	verb = strings.ToUpper(verb)
	if verb != http.MethodGet && verb != http.MethodPost {
		return nil, "", fmt.Errorf("method %q: verb must be get or post, got %q", expr, verb)
	}

	segs := strings.FieldsFunc(path, func(r rune) bool { return r == '.' || r == '/' })
	if len(segs) == 0 {
		return nil, "", fmt.Errorf("method %q has no path", expr)
	}
	return segs, verb, nil
}
