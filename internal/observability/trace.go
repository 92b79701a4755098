package observability

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/weibokit/weibo/pkg/weibo/transport"
)

// TraceWriter outputs human-readable trace information to stderr.
// It formats output with timestamps relative to session start.
type TraceWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
}

// NewTraceWriter creates a new TraceWriter that writes to stderr.
func NewTraceWriter() *TraceWriter {
	return NewTraceWriterTo(os.Stderr)
}

// NewTraceWriterTo creates a new TraceWriter that writes to the given writer.
func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{
		writer:    w,
		startTime: time.Now(),
	}
}

func (t *TraceWriter) elapsed() float64 {
	return time.Since(t.startTime).Seconds()
}

// WriteOperationStart writes an operation start trace line.
// Format: [0.234s] Calling POST statuses/update
func (t *TraceWriter) WriteOperationStart(op transport.OperationInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[%.3fs] Calling %s %s\n", t.elapsed(), op.Method, op.Name)
}

// WriteOperationEnd writes an operation completion trace line.
// Format: [0.234s] Completed POST statuses/update (234ms)
func (t *TraceWriter) WriteOperationEnd(op transport.OperationInfo, err error, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		fmt.Fprintf(t.writer, "[%.3fs] Failed %s %s: %v\n", t.elapsed(), op.Method, op.Name, err)
		return
	}
	fmt.Fprintf(t.writer, "[%.3fs] Completed %s %s (%dms)\n", t.elapsed(), op.Method, op.Name, duration.Milliseconds())
}

// WriteRequestStart writes a request start trace line.
// Format: [0.234s]   -> GET http://api.t.sina.com.cn/statuses/home_timeline.json
// Credentials in the query are redacted.
func (t *TraceWriter) WriteRequestStart(info transport.RequestInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[%.3fs]   -> %s %s\n", t.elapsed(), info.Method, transport.RedactURL(info.URL))
}

// WriteRequestEnd writes a request completion trace line.
// Format: [0.234s]   <- 200 (45ms, 1024 bytes)
func (t *TraceWriter) WriteRequestEnd(_ transport.RequestInfo, result transport.RequestResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if result.Error != nil {
		fmt.Fprintf(t.writer, "[%.3fs]   <- ERROR: %v\n", t.elapsed(), result.Error)
		return
	}
	fmt.Fprintf(t.writer, "[%.3fs]   <- %d (%dms, %d bytes)\n",
		t.elapsed(), result.StatusCode, result.Duration.Milliseconds(), result.BodyBytes)
}

// Reset resets the start time for relative timestamps.
func (t *TraceWriter) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now()
}
