package intercept

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"plannercolors/internal/logging"
	"plannercolors/internal/model"
)

// Credentials holds the last Authorization value seen on a task listing
// request. Nothing in this module sends it anywhere.
type Credentials struct {
	mu         sync.RWMutex
	token      string
	capturedAt time.Time
}

func (c *Credentials) capture(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = value
	c.capturedAt = time.Now()
}

// Token returns the captured header value, if any.
func (c *Credentials) Token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// CapturedAt is when the current token was seen.
func (c *Credentials) CapturedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capturedAt
}

// Transport observes planner exchanges on their way through Base.
type Transport struct {
	// Base performs the actual exchange. http.DefaultTransport when nil.
	Base http.RoundTripper
	// Sink receives decoded collections.
	Sink Sink
	// Credentials, when set, receives Authorization headers of task listings.
	Credentials *Credentials

	seq atomic.Uint64
}

// NewTransport wraps base.
func NewTransport(base http.RoundTripper, sink Sink) *Transport {
	return &Transport{Base: base, Sink: sink, Credentials: &Credentials{}}
}

type sequenceKey struct{}

// WithSequence attaches a stamp to requests made with ctx. Callers that see
// requests earlier than RoundTrip does reserve it with Stamp.
func WithSequence(ctx context.Context, seq uint64) context.Context {
	return context.WithValue(ctx, sequenceKey{}, seq)
}

// SequenceFrom returns the stamp attached by WithSequence.
func SequenceFrom(ctx context.Context) (uint64, bool) {
	seq, ok := ctx.Value(sequenceKey{}).(uint64)
	return seq, ok && seq != 0
}

// Stamp reserves the next sequence number.
func (t *Transport) Stamp() uint64 { return t.seq.Add(1) }

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper. The caller always gets the base
// transport's response and error; observation failures are only logged.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, ok := Classify(req.URL)
	if !ok {
		return t.base().RoundTrip(req)
	}

	if res == model.ResourceTasks && t.Credentials != nil {
		if v := req.Header.Get("Authorization"); v != "" {
			t.Credentials.capture(v)
		}
	}

	// Stamps follow the order requests reach this process, not the order the
	// page issued them. Concurrent requests may be stamped in either order;
	// a slow response is still dropped once a later stamp has applied.
	seq, ok := SequenceFrom(req.Context())
	if !ok {
		seq = t.Stamp()
	}
	log := logging.WithRequestID(logging.CategoryIntercept, uuid.NewString())
	log.Debug("%s %s -> %s (seq %d)", req.Method, req.URL.Redacted(), res, seq)

	resp, err := t.base().RoundTrip(req)
	if err != nil || resp == nil {
		return resp, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || resp.Body == nil {
		log.Debug("not dispatching %s: status %d", res, resp.StatusCode)
		return resp, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		resp.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), errReader{readErr}))
		log.Warn("reading %s body: %v", res, readErr)
		return resp, nil
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if t.Sink == nil {
		return resp, nil
	}
	applied, err := Dispatch(t.Sink, res, seq, body)
	if err != nil {
		log.Warn("ignoring %s payload: %v", res, err)
		return resp, nil
	}
	if !applied {
		log.Debug("%s payload seq %d superseded", res, seq)
	}
	return resp, nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
