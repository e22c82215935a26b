// Package capture records every transaction against the mock surface. Intake
// is published before the request reaches the router; completion is recorded
// exactly once, appended to the bounded log and published again.
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/7sDream/geko"
	"github.com/google/uuid"
	"github.com/suar-net/suar-playground/internal/model"
	"go.uber.org/zap"
)

const DefaultMaxBody = 10000

// Publisher receives intake and completion events.
type Publisher interface {
	Publish(e model.Event)
}

// Archiver stores completed transactions out of band. Archive must not block.
type Archiver interface {
	Archive(e model.RequestLogEntry)
}

type Option func(*Capture)

// WithMaxBody sets the size above which captured bodies are truncated.
func WithMaxBody(n int) Option {
	return func(c *Capture) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

func WithArchiver(a Archiver) Option {
	return func(c *Capture) { c.archiver = a }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Capture) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Capture) { c.now = now }
}

type Capture struct {
	log       *Log
	publisher Publisher
	archiver  Archiver
	maxBody   int
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func New(log *Log, publisher Publisher, opts ...Option) *Capture {
	c := &Capture{
		log:       log,
		publisher: publisher,
		maxBody:   DefaultMaxBody,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Log returns the bounded log completed transactions are appended to.
func (c *Capture) Log() *Log {
	return c.log
}

// Middleware wraps the mock surface. Mount it after the mount prefix has been
// stripped so Path is relative to the surface and FullPath is the original URI.
func (c *Capture) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tx := c.begin(w, r)
		ctx := context.WithValue(r.Context(), txContextKey, tx)

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			c.logger.Error("mock handler panicked",
				zap.String("request_id", tx.entry.ID), zap.Any("panic", rec), zap.Stack("stack"))
			if !tx.rec.wroteHeader {
				tx.rec.Header().Set("Content-Type", "application/json; charset=utf-8")
				tx.rec.WriteHeader(http.StatusInternalServerError)
				tx.rec.Write([]byte(`{"error":"An internal error occurred"}`))
			}
			tx.Complete()
		}()

		next.ServeHTTP(tx.rec, r.WithContext(ctx))

		if r.Context().Err() != nil && !tx.rec.wroteHeader {
			c.logger.Debug("request abandoned before a response was sent",
				zap.String("request_id", tx.entry.ID), zap.String("path", tx.entry.Path))
			return
		}
		tx.Complete()
	})
}

func (c *Capture) begin(w http.ResponseWriter, r *http.Request) *Transaction {
	start := c.now()
	headers := SanitizeHeaders(r.Header)
	if r.Host != "" {
		headers["host"] = r.Host
	}

	tx := &Transaction{
		c:     c,
		start: start,
		rec:   &recorder{ResponseWriter: w, status: http.StatusOK, limit: c.maxBody},
		entry: model.RequestLogEntry{
			ID:        c.newID(),
			Timestamp: start.UTC(),
			Method:    r.Method,
			Path:      r.URL.Path,
			FullPath:  r.RequestURI,
			Headers:   headers,
			Query:     queryMap(r),
			Body:      c.readBody(r),
			IP:        clientIP(r.RemoteAddr),
			Status:    model.RequestPending,
		},
	}
	if tx.entry.Path == "" {
		tx.entry.Path = "/"
	}
	if tx.entry.FullPath == "" {
		tx.entry.FullPath = r.URL.RequestURI()
	}

	c.publisher.Publish(model.Event{Type: model.EventRequestNew, Data: tx.entry})
	return tx
}

// readBody snapshots the request body and restores it for the handler.
func (c *Capture) readBody(r *http.Request) any {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	raw, err := io.ReadAll(r.Body)
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		c.logger.Debug("failed to read request body", zap.Error(err))
	}
	return c.decodeBody(raw, r.Header.Get("Content-Type"))
}

// decodeBody keeps JSON bodies structured and everything else as text,
// truncating either once its serialized form exceeds maxBody.
func (c *Capture) decodeBody(raw []byte, contentType string) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if len(raw) > c.maxBody {
		return model.TruncatedBody{Truncated: true, OriginalLength: len(raw), Preview: string(raw[:c.maxBody])}
	}
	if strings.Contains(contentType, "json") || json.Valid(raw) {
		if v, err := geko.JSONUnmarshal(raw, geko.UseNumber(true)); err == nil {
			return v
		}
	}
	return string(raw)
}

// Transaction is the capture state of one in-flight request. Its methods are
// safe to call on a nil receiver, so handlers run outside capture need no
// checks.
type Transaction struct {
	c     *Capture
	entry model.RequestLogEntry
	start time.Time
	rec   *recorder
	once  sync.Once
}

type contextKey struct{}

var txContextKey = contextKey{}

// FromContext returns the transaction carried by ctx, or nil.
func FromContext(ctx context.Context) *Transaction {
	tx, _ := ctx.Value(txContextKey).(*Transaction)
	return tx
}

// ID returns the transaction id shared by its intake and completion events.
func (t *Transaction) ID() string {
	if t == nil {
		return ""
	}
	return t.entry.ID
}

// SetEndpoint records which endpoint served the request. It has no effect
// after completion.
func (t *Transaction) SetEndpoint(id, name string) {
	if t == nil {
		return
	}
	t.entry.EndpointID = id
	t.entry.EndpointName = name
}

// Complete finalizes the transaction. Only the first call has any effect.
func (t *Transaction) Complete() {
	if t == nil {
		return
	}
	t.once.Do(t.complete)
}

func (t *Transaction) complete() {
	c := t.c
	duration := c.now().Sub(t.start).Milliseconds()

	entry := t.entry
	entry.Status = model.RequestCompleted
	entry.Duration = &duration
	entry.Response = &model.CapturedResponse{
		Status:  t.rec.status,
		Headers: SanitizeHeaders(t.rec.Header()),
		Body:    t.rec.capturedBody(c),
	}

	c.log.Append(entry)
	c.publisher.Publish(model.Event{Type: model.EventRequestComplete, Data: entry})
	if c.archiver != nil {
		c.archiver.Archive(entry)
	}
}

// recorder tracks what the handler sent, keeping at most limit body bytes.
// status is the final status the client saw.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	limit       int
	body        bytes.Buffer
	size        int
}

func (r *recorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	// Informational headers go out as-is; the final status comes later.
	if code >= 100 && code <= 199 && code != http.StatusSwitchingProtocols {
		r.ResponseWriter.WriteHeader(code)
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	// Only count what the client actually received; 204 and 304 refuse bodies.
	n, err := r.ResponseWriter.Write(b)
	if room := r.limit - r.body.Len(); room > 0 {
		if room > n {
			room = n
		}
		r.body.Write(b[:room])
	}
	r.size += n
	return n, err
}

func (r *recorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *recorder) capturedBody(c *Capture) any {
	if r.size == 0 {
		return nil
	}
	if r.size > r.limit {
		return model.TruncatedBody{Truncated: true, OriginalLength: r.size, Preview: r.body.String()}
	}
	return c.decodeBody(r.body.Bytes(), r.Header().Get("Content-Type"))
}

func queryMap(r *http.Request) map[string]any {
	values := r.URL.Query()
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			out[k] = v[0]
		} else {
			out[k] = v
		}
	}
	return out
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
