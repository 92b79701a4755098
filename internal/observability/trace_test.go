package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weibokit/weibo/pkg/weibo/transport"
)

func TestTraceWriter_WriteOperationStart(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)

	w.WriteOperationStart(transport.OperationInfo{Name: "oauth/request_token", Method: "GET"})

	out := buf.String()
	assert.Contains(t, out, "Calling GET oauth/request_token")
	assert.True(t, strings.HasPrefix(out, "["), "expected timestamp prefix, got: %s", out)
}

func TestTraceWriter_WriteOperationEnd(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)

	w.WriteOperationEnd(transport.OperationInfo{Name: "users/show", Method: "GET"}, nil, 50*time.Millisecond)
	assert.Contains(t, buf.String(), "Completed GET users/show (50ms)")

	buf.Reset()
	w.WriteOperationEnd(transport.OperationInfo{Name: "users/show", Method: "GET"}, errors.New("forbidden"), 0)
	assert.Contains(t, buf.String(), "Failed GET users/show: forbidden")
}

func TestTraceWriter_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)

	w.WriteRequestStart(transport.RequestInfo{
		Method: "GET",
		URL:    "https://open.t.qq.com/api/user/info?format=json&oauth_token=TOKVAL&oauth_signature=SIGVAL",
	})

	out := buf.String()
	assert.Contains(t, out, "format=json")
	assert.NotContains(t, out, "TOKVAL")
	assert.NotContains(t, out, "SIGVAL")
}

func TestTraceWriter_WriteRequestEnd(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)

	w.WriteRequestEnd(transport.RequestInfo{}, transport.RequestResult{StatusCode: 502, BodyBytes: 12, Duration: 3 * time.Millisecond})
	assert.Contains(t, buf.String(), "<- 502 (3ms, 12 bytes)")

	buf.Reset()
	w.WriteRequestEnd(transport.RequestInfo{}, transport.RequestResult{Error: errors.New("connection refused")})
	assert.Contains(t, buf.String(), "<- ERROR: connection refused")
}
