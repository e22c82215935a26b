// Package registry holds the authoritative set of mock endpoint definitions.
// It performs no I/O: callers rebuild the mock router and notify observers
// after a mutation succeeds.
package registry

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/suar-net/suar-playground/internal/model"
)

const DefaultMaxSize = 100

type Option func(*Registry)

// WithMaxSize caps the number of stored endpoints.
func WithMaxSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxSize = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator overrides endpoint id generation.
func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) { r.newID = newID }
}

// Registry is an in-memory, concurrency-safe endpoint store. Endpoints are
// kept in insertion order, which is also the routing order.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*model.Endpoint
	order     []string
	maxSize   int
	now       func() time.Time
	newID     func() string
}

func New(opts ...Option) *Registry {
	r := &Registry{
		endpoints: make(map[string]*model.Endpoint),
		maxSize:   DefaultMaxSize,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultResponse() model.EndpointResponse {
	return model.EndpointResponse{
		Status:  200,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    json.RawMessage(`{"message":"Mock response"}`),
		Delay:   0,
	}
}

// List returns copies of every endpoint in insertion order.
func (r *Registry) List() []model.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Endpoint, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.endpoints[id].Clone())
	}
	return out
}

// Enabled returns copies of the enabled endpoints in insertion order.
func (r *Registry) Enabled() []model.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Endpoint, 0, len(r.order))
	for _, id := range r.order {
		if ep := r.endpoints[id]; ep.Enabled {
			out = append(out, ep.Clone())
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

func (r *Registry) Get(id string) (model.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ep, ok := r.endpoints[id]
	if !ok {
		return model.Endpoint{}, ErrNotFound
	}
	return ep.Clone(), nil
}

// Create validates the input and stores a new endpoint. Validation,
// capacity and duplicate failures are reported as *ValidationError.
func (r *Registry) Create(in model.EndpointInput) (model.Endpoint, error) {
	n, messages := validateInput(in, false)
	if len(messages) > 0 {
		return model.Endpoint{}, newValidationError(nil, messages...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.endpoints) >= r.maxSize {
		return model.Endpoint{}, newValidationError(ErrCapacity,
			fmt.Sprintf("Maximum number of endpoints (%d) reached", r.maxSize))
	}
	if r.routeTaken(*n.method, *n.path, "") {
		return model.Endpoint{}, newValidationError(ErrDuplicate,
			"An endpoint with the same method and path already exists")
	}

	now := r.now()
	ep := &model.Endpoint{
		ID:        r.newID(),
		Name:      *n.name,
		Method:    *n.method,
		Path:      *n.path,
		Enabled:   n.enabled == nil || *n.enabled,
		Response:  defaultResponse(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	n.response.applyTo(&ep.Response)

	r.endpoints[ep.ID] = ep
	r.order = append(r.order, ep.ID)
	return ep.Clone(), nil
}

// Update merges the provided fields into an existing endpoint. The response
// is merged field by field; id and createdAt never change.
func (r *Registry) Update(id string, in model.EndpointInput) (model.Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.endpoints[id]
	if !ok {
		return model.Endpoint{}, ErrNotFound
	}

	n, messages := validateInput(in, true)
	if len(messages) > 0 {
		return model.Endpoint{}, newValidationError(nil, messages...)
	}

	updated := existing.Clone()
	if n.name != nil {
		updated.Name = *n.name
	}
	if n.method != nil {
		updated.Method = *n.method
	}
	if n.path != nil {
		updated.Path = *n.path
	}
	if n.enabled != nil {
		updated.Enabled = *n.enabled
	}
	n.response.applyTo(&updated.Response)

	if (updated.Method != existing.Method || updated.Path != existing.Path) &&
		r.routeTaken(updated.Method, updated.Path, id) {
		return model.Endpoint{}, newValidationError(ErrDuplicate,
			"An endpoint with the same method and path already exists")
	}

	updated.UpdatedAt = r.now()
	r.endpoints[id] = &updated
	return updated.Clone(), nil
}

func (r *Registry) Delete(id string) (model.Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ep, ok := r.endpoints[id]
	if !ok {
		return model.Endpoint{}, ErrNotFound
	}
	delete(r.endpoints, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *ep, nil
}

// Toggle flips the enabled flag.
func (r *Registry) Toggle(id string) (model.Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ep, ok := r.endpoints[id]
	if !ok {
		return model.Endpoint{}, ErrNotFound
	}
	updated := ep.Clone()
	updated.Enabled = !updated.Enabled
	updated.UpdatedAt = r.now()
	r.endpoints[id] = &updated
	return updated.Clone(), nil
}

// Clear removes every endpoint.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints = make(map[string]*model.Endpoint)
	r.order = nil
}

// routeTaken reports whether another endpoint, enabled or not, already owns
// the method and path. Callers must hold the lock.
func (r *Registry) routeTaken(method model.Method, path, exceptID string) bool {
	for id, ep := range r.endpoints {
		if id != exceptID && ep.Method == method && ep.Path == path {
			return true
		}
	}
	return false
}
