// Package mockrouter serves the configured mock endpoints. The live route
// table is an immutable snapshot; Rebuild compiles a new one from the
// registry and swaps it in atomically.
package mockrouter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/suar-net/suar-playground/internal/capture"
	"github.com/suar-net/suar-playground/internal/model"
	"go.uber.org/zap"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
)

// EndpointSource supplies the enabled endpoints in routing order.
type EndpointSource interface {
	Enabled() []model.Endpoint
}

// Renderer expands generator expressions in response bodies.
type Renderer interface {
	RenderString(s string) string
	RenderJSON(raw []byte) (any, error)
}

type route struct {
	pattern    pattern
	endpointID string
	handler    http.HandlerFunc
}

// table maps each supported method to its routes in registration order.
type table struct {
	routes map[model.Method][]route
	size   int
}

func newTable() *table {
	t := &table{routes: make(map[model.Method][]route, len(model.Methods))}
	for _, m := range model.Methods {
		t.routes[m] = nil
	}
	return t
}

// register adds a route under method. It reports false for a method the
// table has no bucket for.
func (t *table) register(method string, r route) bool {
	m := model.Method(method)
	bucket, ok := t.routes[m]
	if !ok {
		return false
	}
	t.routes[m] = append(bucket, r)
	t.size++
	return true
}

func (t *table) lookup(method, path string) (route, map[string]string, bool) {
	if method == http.MethodHead {
		method = http.MethodGet
	}
	for _, r := range t.routes[model.Method(method)] {
		if params, ok := r.pattern.match(path); ok {
			return r, params, true
		}
	}
	return route{}, nil, false
}

type Router struct {
	source   EndpointSource
	renderer Renderer
	logger   *zap.Logger
	current  atomic.Pointer[table]
}

// New returns a router in the empty state: every request gets the fallback 404
// until Rebuild is called.
func New(source EndpointSource, renderer Renderer, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Router{source: source, renderer: renderer, logger: logger}
	rt.current.Store(newTable())
	return rt
}

// Rebuild compiles the enabled endpoints into a fresh table and publishes it.
// Definitions with an unknown method or an invalid path are skipped. It
// returns the number of registered routes.
func (rt *Router) Rebuild() int {
	next := newTable()
	endpoints := rt.source.Enabled()

	for _, ep := range endpoints {
		p, err := compilePattern(ep.Path)
		if err != nil {
			rt.logger.Warn("skipping endpoint with invalid path",
				zap.String("endpoint_id", ep.ID), zap.String("path", ep.Path), zap.Error(err))
			continue
		}
		r := route{pattern: p, endpointID: ep.ID, handler: rt.handlerFor(ep)}
		if !next.register(string(ep.Method), r) {
			rt.logger.Warn("skipping endpoint with unknown method",
				zap.String("endpoint_id", ep.ID), zap.String("method", string(ep.Method)))
			continue
		}
		rt.logger.Debug("registered mock route",
			zap.String("method", string(ep.Method)), zap.String("path", ep.Path))
	}

	rt.current.Store(next)
	rt.logger.Info("mock router rebuilt", zap.Int("routes", next.size), zap.Int("enabled", len(endpoints)))
	return next.size
}

// Routes returns the size of the live table.
func (rt *Router) Routes() int {
	return rt.current.Load().size
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// One snapshot per request; a concurrent Rebuild does not affect it.
	t := rt.current.Load()

	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	matched, params, ok := t.lookup(r.Method, path)
	if !ok {
		rt.notFound(w, r, path)
		return
	}
	if len(params) > 0 {
		rt.logger.Debug("matched mock route", zap.String("endpoint_id", matched.endpointID), zap.Any("params", params))
	}
	matched.handler(w, r)
}

func (rt *Router) notFound(w http.ResponseWriter, r *http.Request, path string) {
	payload := map[string]string{
		"error":  "No mock endpoint found",
		"path":   path,
		"method": r.Method,
		"hint":   "Create an endpoint matching this path and method",
	}
	body, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusNotFound)
	w.Write(body)
	capture.FromContext(r.Context()).Complete()
}

// handlerFor captures the endpoint's response by value; later edits to the
// registry only take effect after the next Rebuild.
func (rt *Router) handlerFor(ep model.Endpoint) http.HandlerFunc {
	resp := ep.Response.Clone()
	id, name := ep.ID, ep.Name

	return func(w http.ResponseWriter, r *http.Request) {
		tx := capture.FromContext(r.Context())
		tx.SetEndpoint(id, name)

		if resp.Delay > 0 {
			timer := time.NewTimer(time.Duration(resp.Delay) * time.Millisecond)
			select {
			case <-timer.C:
			case <-r.Context().Done():
				timer.Stop()
				rt.logger.Debug("client went away during delay",
					zap.String("endpoint_id", id), zap.Int("delay_ms", resp.Delay))
				return
			}
		}

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}

		body, contentType := rt.renderBody(resp.Body)
		if body != nil && w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(resp.Status)
		if body != nil && r.Method != http.MethodHead {
			if _, err := w.Write(body); err != nil {
				rt.logger.Debug("failed to write mock response", zap.String("endpoint_id", id), zap.Error(err))
			}
		}
		tx.Complete()
	}
}

// renderBody renders a stored body. A JSON string holding a JSON document is
// treated as that document; any other string is rendered as plain text. A nil
// result means no body.
func (rt *Router) renderBody(raw json.RawMessage) ([]byte, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ""
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, ""
		}
		inner := bytes.TrimSpace([]byte(s))
		if len(inner) == 0 || !json.Valid(inner) {
			return []byte(rt.renderer.RenderString(s)), contentTypeText
		}
		raw = inner
	}

	v, err := rt.renderer.RenderJSON(raw)
	if err != nil {
		rt.logger.Warn("failed to render body, sending it verbatim", zap.Error(err))
		return raw, contentTypeJSON
	}
	switch t := v.(type) {
	case nil:
		return nil, ""
	case string:
		return []byte(t), contentTypeText
	}
	out, err := json.Marshal(v)
	if err != nil {
		rt.logger.Warn("failed to encode rendered body, sending it verbatim", zap.Error(err))
		return raw, contentTypeJSON
	}
	return out, contentTypeJSON
}
