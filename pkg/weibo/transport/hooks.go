package transport

import (
	"context"
	"time"
)

// OperationInfo describes one logical API call, which may issue a request.
type OperationInfo struct {
	Name   string // e.g. "statuses/update" or "oauth/request_token"
	Method string
}

// RequestInfo describes one HTTP request.
type RequestInfo struct {
	Method string
	URL    string
}

// RequestResult describes the outcome of one HTTP request.
type RequestResult struct {
	StatusCode int
	BodyBytes  int
	Duration   time.Duration
	Error      error
}

// Hooks observes operations and requests. Implementations must be safe for
// concurrent use.
type Hooks interface {
	OnOperationStart(ctx context.Context, op OperationInfo) context.Context
	OnOperationEnd(ctx context.Context, op OperationInfo, err error, duration time.Duration)
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
}

// NopHooks does nothing.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) OnOperationStart(ctx context.Context, _ OperationInfo) context.Context { return ctx }
func (NopHooks) OnOperationEnd(context.Context, OperationInfo, error, time.Duration)   {}
func (NopHooks) OnRequestStart(ctx context.Context, _ RequestInfo) context.Context     { return ctx }
func (NopHooks) OnRequestEnd(context.Context, RequestInfo, RequestResult)             {}
