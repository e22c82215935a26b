package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suar-net/suar-playground/internal/model"
	"go.uber.org/zap/zaptest"
)

type recordedEvent struct {
	event model.Event
	at    time.Time
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(e model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{event: e, at: time.Now()})
}

func (p *fakePublisher) snapshot() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.events...)
}

type fakeArchiver struct {
	entries []model.RequestLogEntry
}

func (a *fakeArchiver) Archive(e model.RequestLogEntry) { a.entries = append(a.entries, e) }

func entryOf(t *testing.T, e recordedEvent) model.RequestLogEntry {
	t.Helper()
	entry, ok := e.event.Data.(model.RequestLogEntry)
	require.True(t, ok, "event data is %T", e.event.Data)
	return entry
}

func TestLogEvictsOldestFirst(t *testing.T) {
	const n = 4
	l := NewLog(n)
	for i := 0; i < n+5; i++ {
		evicted := l.Append(model.RequestLogEntry{ID: fmt.Sprint(i)})
		assert.Equal(t, i >= n, evicted)
	}

	entries := l.Entries()
	require.Len(t, entries, n)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprint(i+5), e.ID)
	}

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, n, l.Cap())
	assert.Empty(t, l.Entries())
}

func TestSanitizeHeadersRedactsCredentials(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer xyz")
	h.Set("Cookie", "session=abc")
	h.Set("X-Api-Key", "k1")
	h.Set("X-Custom-Apikey", "k2")
	h.Set("Accept", "application/json")
	h.Add("X-Multi", "a")
	h.Add("X-Multi", "b")

	got := SanitizeHeaders(h)

	assert.Equal(t, Redacted, got["authorization"])
	assert.Equal(t, Redacted, got["cookie"])
	assert.Equal(t, Redacted, got["x-api-key"])
	assert.Equal(t, Redacted, got["x-custom-apikey"])
	assert.Equal(t, "application/json", got["accept"])
	assert.Equal(t, "a, b", got["x-multi"])
	for _, v := range got {
		assert.NotContains(t, v, "xyz")
	}
}

func TestMiddlewarePublishesIntakeBeforeHandlerRuns(t *testing.T) {
	pub := &fakePublisher{}
	c := New(NewLog(10), pub, WithLogger(zaptest.NewLogger(t)))

	var seenBody string
	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		events := pub.snapshot()
		require.Len(t, events, 1, "intake must be published before the handler runs")
		assert.Equal(t, model.EventRequestNew, events[0].event.Type)

		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		FromContext(r.Context()).SetEndpoint("ep-1", "Users")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/users?tag=a&tag=b&page=2", strings.NewReader(`{"name":"ada"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer xyz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `{"name":"ada"}`, seenBody, "handler still sees the body")

	events := pub.snapshot()
	require.Len(t, events, 2)
	intake, done := entryOf(t, events[0]), entryOf(t, events[1])

	assert.Equal(t, intake.ID, done.ID)
	assert.Equal(t, model.RequestPending, intake.Status)
	assert.Nil(t, intake.Response)
	assert.Equal(t, model.RequestCompleted, done.Status)
	assert.Equal(t, "/users", done.Path)
	assert.Equal(t, "/users?tag=a&tag=b&page=2", done.FullPath)
	assert.Equal(t, map[string]any{"tag": []string{"a", "b"}, "page": "2"}, done.Query)
	assert.Equal(t, Redacted, done.Headers["authorization"])
	assert.Equal(t, "192.0.2.1", done.IP)
	assert.Equal(t, "ep-1", done.EndpointID)
	assert.Equal(t, "Users", done.EndpointName)
	require.NotNil(t, done.Response)
	assert.Equal(t, http.StatusCreated, done.Response.Status)

	encoded, err := json.Marshal(done.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"ada"}`, string(encoded))
	encoded, err = json.Marshal(done.Response.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(encoded))

	assert.Equal(t, 1, c.Log().Len())
}

func TestCompletionIsRecordedOnce(t *testing.T) {
	pub := &fakePublisher{}
	arch := &fakeArchiver{}
	c := New(NewLog(10), pub, WithArchiver(arch))

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
		tx := FromContext(r.Context())
		tx.Complete()
		tx.Complete()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	events := pub.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, model.EventRequestComplete, events[1].event.Type)
	assert.Equal(t, "hello", entryOf(t, events[1]).Response.Body)
	assert.Equal(t, 1, c.Log().Len())
	assert.Len(t, arch.entries, 1)
}

func TestEmptyResponseStillCompletes(t *testing.T) {
	pub := &fakePublisher{}
	c := New(NewLog(10), pub)

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/x", nil))

	entries := c.Log().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusNoContent, entries[0].Response.Status)
	assert.Nil(t, entries[0].Response.Body)
}

func TestDurationCoversHandlerDelay(t *testing.T) {
	pub := &fakePublisher{}
	c := New(NewLog(10), pub)

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))

	events := pub.snapshot()
	require.Len(t, events, 2)
	done := entryOf(t, events[1])
	require.NotNil(t, done.Duration)
	assert.GreaterOrEqual(t, *done.Duration, int64(50))
	assert.GreaterOrEqual(t, events[1].at.Sub(events[0].at), 50*time.Millisecond)
}

func TestLargeBodiesAreTruncated(t *testing.T) {
	pub := &fakePublisher{}
	c := New(NewLog(10), pub, WithMaxBody(8))

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789abcdef"))
	}))
	req := httptest.NewRequest(http.MethodPost, "/big", strings.NewReader("request-body-too-long"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := c.Log().Entries()[0]
	assert.Equal(t, model.TruncatedBody{Truncated: true, OriginalLength: 21, Preview: "request-"}, entry.Body)
	assert.Equal(t, model.TruncatedBody{Truncated: true, OriginalLength: 16, Preview: "01234567"}, entry.Response.Body)
}

func TestAbandonedRequestIsNotLogged(t *testing.T) {
	pub := &fakePublisher{}
	c := New(NewLog(10), pub)

	ctx, cancel := context.WithCancel(context.Background())
	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		<-r.Context().Done()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/gone", nil).WithContext(ctx))

	assert.Len(t, pub.snapshot(), 1, "only the intake event is published")
	assert.Equal(t, 0, c.Log().Len())
}

func TestFromContextWithoutCaptureIsNoop(t *testing.T) {
	tx := FromContext(context.Background())
	assert.Nil(t, tx)
	assert.NotPanics(t, func() {
		tx.SetEndpoint("id", "name")
		tx.Complete()
	})
	assert.Equal(t, "", tx.ID())
}

func TestInformationalStatusIsNotRecordedAsFinal(t *testing.T) {
	c := New(NewLog(10), &fakePublisher{})
	srv := httptest.NewServer(c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusEarlyHints)
		w.Write([]byte(`{"a":1}`))
	})))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/hints")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"a":1}`, string(body))

	require.Eventually(t, func() bool { return c.Log().Len() == 1 }, time.Second, 10*time.Millisecond)
	entry := c.Log().Entries()[0]
	assert.Equal(t, http.StatusOK, entry.Response.Status)
	encoded, err := json.Marshal(entry.Response.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(encoded))
}

func TestRefusedBodyIsNotCaptured(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusNotModified} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			c := New(NewLog(10), &fakePublisher{})
			srv := httptest.NewServer(c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, err := w.Write([]byte(`{"never":"sent"}`))
				assert.ErrorIs(t, err, http.ErrBodyNotAllowed)
			})))
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/empty")
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, status, resp.StatusCode)

			require.Eventually(t, func() bool { return c.Log().Len() == 1 }, time.Second, 10*time.Millisecond)
			entry := c.Log().Entries()[0]
			assert.Equal(t, status, entry.Response.Status)
			assert.Nil(t, entry.Response.Body)
		})
	}
}

func TestCapturedJSONKeepsNumberLiterals(t *testing.T) {
	c := New(NewLog(10), &fakePublisher{})
	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":12345678901234567890,"f":1.50}`))
	}))
	req := httptest.NewRequest(http.MethodPost, "/n", strings.NewReader(`{"n":9007199254740993}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := c.Log().Entries()[0]
	encoded, err := json.Marshal(entry.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"n":9007199254740993}`, string(encoded))
	encoded, err = json.Marshal(entry.Response.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"id":12345678901234567890,"f":1.50}`, string(encoded))
}

func TestPanickingHandlerStillCompletes(t *testing.T) {
	pub := &fakePublisher{}
	c := New(NewLog(10), pub, WithLogger(zaptest.NewLogger(t)))
	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"An internal error occurred"}`, rec.Body.String())

	events := pub.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, model.EventRequestComplete, events[1].event.Type)
	entries := c.Log().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusInternalServerError, entries[0].Response.Status)
}
