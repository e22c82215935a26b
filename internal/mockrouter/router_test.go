package mockrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suar-net/suar-playground/internal/capture"
	"github.com/suar-net/suar-playground/internal/model"
	"github.com/suar-net/suar-playground/internal/template"
	"go.uber.org/zap/zaptest"
)

type stubSource struct {
	mu        sync.Mutex
	endpoints []model.Endpoint
}

func (s *stubSource) Enabled() []model.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Endpoint
	for _, ep := range s.endpoints {
		if ep.Enabled {
			out = append(out, ep.Clone())
		}
	}
	return out
}

func (s *stubSource) set(eps ...model.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = eps
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.Event) {}

func endpoint(id string, method model.Method, path, body string) model.Endpoint {
	ep := model.Endpoint{
		ID:      id,
		Name:    "ep-" + id,
		Method:  method,
		Path:    path,
		Enabled: true,
		Response: model.EndpointResponse{
			Status:  http.StatusOK,
			Headers: map[string]string{},
		},
	}
	if body != "" {
		ep.Response.Body = json.RawMessage(body)
	}
	return ep
}

func newRouter(t *testing.T, eps ...model.Endpoint) (*Router, *stubSource) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	src := &stubSource{}
	src.set(eps...)
	rt := New(src, template.New(template.NewFakerCatalogue(), logger), logger)
	rt.Rebuild()
	return rt, src
}

func serve(rt http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestPatternMatching(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		match   bool
		params  map[string]string
	}{
		{"/users", "/users", true, nil},
		{"/users", "/users/", true, nil},
		{"/users", "/USERS", true, nil},
		{"/Users/Active", "/users/active", true, nil},
		{"/users", "/users/1", false, nil},
		{"/users/:id", "/users/42", true, map[string]string{"id": "42"}},
		{"/users/{id}/posts/:post", "/users/7/posts/x", true, map[string]string{"id": "7", "post": "x"}},
		{"/users/:id", "/users", false, nil},
		{"/users/:id", "/users//", false, nil},
		{"/a/b", "/a//b", false, nil},
		{"/files/*", "/files/a/b/c.txt", true, map[string]string{"*": "a/b/c.txt"}},
		{"/files/*", "/files", true, map[string]string{"*": ""}},
		{"/", "/", true, nil},
		{"/", "/x", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			p, err := compilePattern(tt.pattern)
			require.NoError(t, err)
			params, ok := p.match(tt.path)
			assert.Equal(t, tt.match, ok)
			if tt.match {
				assert.Equal(t, tt.params, params)
			}
		})
	}
}

func TestCompilePatternRejectsInvalidPaths(t *testing.T) {
	_, err := compilePattern("users")
	assert.Error(t, err)
	_, err = compilePattern("/files/*/meta")
	assert.Error(t, err)
}

func TestEmptyRouterReturnsFallback(t *testing.T) {
	logger := zaptest.NewLogger(t)
	rt := New(&stubSource{}, template.New(template.NewFakerCatalogue(), logger), logger)

	rec := serve(rt, http.MethodGet, "/anything")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"error": "No mock endpoint found",
		"path": "/anything",
		"method": "GET",
		"hint": "Create an endpoint matching this path and method"
	}`, rec.Body.String())
}

func TestMethodMustMatch(t *testing.T) {
	rt, _ := newRouter(t, endpoint("1", model.MethodPost, "/orders", `{"ok":true}`))

	assert.Equal(t, http.StatusOK, serve(rt, http.MethodPost, "/orders").Code)
	assert.Equal(t, http.StatusNotFound, serve(rt, http.MethodGet, "/orders").Code)
}

func TestFirstMatchWins(t *testing.T) {
	rt, _ := newRouter(t,
		endpoint("1", model.MethodGet, "/users/:id", `{"from":"param"}`),
		endpoint("2", model.MethodGet, "/users/me", `{"from":"literal"}`),
	)

	rec := serve(rt, http.MethodGet, "/users/me")
	assert.JSONEq(t, `{"from":"param"}`, rec.Body.String())
}

func TestRebuildDropsDisabledAndInvalidEndpoints(t *testing.T) {
	disabled := endpoint("2", model.MethodGet, "/off", `{}`)
	disabled.Enabled = false

	rt, src := newRouter(t,
		endpoint("1", model.MethodGet, "/on", `{}`),
		disabled,
		endpoint("3", model.Method("TRACE"), "/trace", `{}`),
		endpoint("4", model.MethodGet, "no-slash", `{}`),
	)
	assert.Equal(t, 1, rt.Routes())
	assert.Equal(t, http.StatusNotFound, serve(rt, http.MethodGet, "/off").Code)
	assert.Equal(t, http.StatusNotFound, serve(rt, "TRACE", "/trace").Code)

	src.set()
	assert.Equal(t, 0, rt.Rebuild())
	assert.Equal(t, http.StatusNotFound, serve(rt, http.MethodGet, "/on").Code)
}

func TestHeadUsesGetEndpointWithoutBody(t *testing.T) {
	rt, _ := newRouter(t, endpoint("1", model.MethodGet, "/ping", `{"pong":true}`))

	rec := serve(rt, http.MethodHead, "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))
	assert.Zero(t, rec.Body.Len())
}

func TestResponseBodies(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		want        string
	}{
		{"object", `{"a":1,"b":[true,null]}`, contentTypeJSON, `{"a":1,"b":[true,null]}`},
		{"json in a string", `"{\"a\":1}"`, contentTypeJSON, `{"a":1}`},
		{"plain string", `"hello world"`, contentTypeText, "hello world"},
		{"number", `42`, contentTypeJSON, `42`},
		{"number literals", `{"id":12345678901234567890,"f":1.50}`, contentTypeJSON, `{"id":12345678901234567890,"f":1.50}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, _ := newRouter(t, endpoint("1", model.MethodGet, "/b", tt.body))
			rec := serve(rt, http.MethodGet, "/b")
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestEmptyBodySendsStatusOnly(t *testing.T) {
	ep := endpoint("1", model.MethodDelete, "/items/:id", "")
	ep.Response.Status = http.StatusNoContent
	rt, _ := newRouter(t, ep)

	rec := serve(rt, http.MethodDelete, "/items/9")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestGeneratorsRenderPerRequest(t *testing.T) {
	rt, _ := newRouter(t, endpoint("1", model.MethodGet, "/id", `{"id":"{{string.uuid()}}","fixed":"x"}`))

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(serve(rt, http.MethodGet, "/id").Body.Bytes(), &first))
	require.NoError(t, json.Unmarshal(serve(rt, http.MethodGet, "/id").Body.Bytes(), &second))

	assert.Equal(t, "x", first["fixed"])
	assert.Len(t, first["id"], 36)
	assert.NotEqual(t, first["id"], second["id"])
}

func TestConfiguredHeadersAndStatus(t *testing.T) {
	ep := endpoint("1", model.MethodPut, "/x", `{"ok":true}`)
	ep.Response.Status = http.StatusAccepted
	ep.Response.Headers = map[string]string{"Content-Type": "application/vnd.api+json", "X-Mock": "yes"}
	rt, _ := newRouter(t, ep)

	rec := serve(rt, http.MethodPut, "/x")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/vnd.api+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "yes", rec.Header().Get("X-Mock"))
}

func TestDelayIsHonoured(t *testing.T) {
	ep := endpoint("1", model.MethodGet, "/slow", `{}`)
	ep.Response.Delay = 60
	rt, _ := newRouter(t, ep)

	start := time.Now()
	rec := serve(rt, http.MethodGet, "/slow")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestCancelledDelayWritesNothingAndIsNotLogged(t *testing.T) {
	ep := endpoint("1", model.MethodGet, "/slow", `{}`)
	ep.Response.Delay = 5000
	rt, _ := newRouter(t, ep)

	log := capture.NewLog(10)
	surface := capture.New(log, nopPublisher{}).Middleware(rt)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	rec := httptest.NewRecorder()
	start := time.Now()
	surface.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil).WithContext(ctx))

	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, rec.Header())
	assert.Zero(t, log.Len())
}

func TestCapturedEntryNamesMatchedEndpoint(t *testing.T) {
	rt, _ := newRouter(t, endpoint("abc", model.MethodGet, "/who", `{}`))
	log := capture.NewLog(10)
	surface := capture.New(log, nopPublisher{}).Middleware(rt)

	serve(surface, http.MethodGet, "/who")
	serve(surface, http.MethodGet, "/nobody")

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "abc", entries[0].EndpointID)
	assert.Equal(t, "ep-abc", entries[0].EndpointName)
	assert.Empty(t, entries[1].EndpointID)
	assert.Equal(t, http.StatusNotFound, entries[1].Response.Status)
}

func TestRebuildSwapsTableForLaterRequests(t *testing.T) {
	rt, src := newRouter(t, endpoint("1", model.MethodGet, "/v", `{"v":1}`))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			rec := serve(rt, http.MethodGet, "/v")
			// Each request sees one complete table.
			assert.Contains(t, []string{`{"v":1}`, `{"v":2}`}, rec.Body.String())
		}
	}()

	for i := 0; i < 20; i++ {
		src.set(endpoint("1", model.MethodGet, "/v", `{"v":2}`))
		rt.Rebuild()
		src.set(endpoint("1", model.MethodGet, "/v", `{"v":1}`))
		rt.Rebuild()
	}
	src.set(endpoint("1", model.MethodGet, "/v", `{"v":2}`))
	rt.Rebuild()
	close(stop)
	wg.Wait()

	assert.JSONEq(t, `{"v":2}`, serve(rt, http.MethodGet, "/v").Body.String())
}
