package service

import (
	"errors"
	"sync"

	"github.com/suar-net/suar-playground/internal/model"
	"github.com/suar-net/suar-playground/internal/registry"
	"go.uber.org/zap"
)

// EndpointStore is the registry surface the service drives.
type EndpointStore interface {
	List() []model.Endpoint
	Get(id string) (model.Endpoint, error)
	Create(in model.EndpointInput) (model.Endpoint, error)
	Update(id string, in model.EndpointInput) (model.Endpoint, error)
	Delete(id string) (model.Endpoint, error)
	Toggle(id string) (model.Endpoint, error)
	Len() int
}

// RouteBuilder recompiles the mock surface from the store.
type RouteBuilder interface {
	Rebuild() int
}

// EventPublisher delivers events to observers.
type EventPublisher interface {
	Publish(e model.Event)
}

// EndpointService applies registry mutations and, after each successful one,
// rebuilds the mock router and broadcasts the full endpoint list.
type EndpointService struct {
	store     EndpointStore
	router    RouteBuilder
	publisher EventPublisher
	logger    *zap.Logger

	// syncMu keeps rebuild and broadcast pairs from interleaving.
	syncMu sync.Mutex
}

func NewEndpointService(store EndpointStore, router RouteBuilder, publisher EventPublisher, logger *zap.Logger) *EndpointService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EndpointService{store: store, router: router, publisher: publisher, logger: logger}
}

func (s *EndpointService) List() []model.Endpoint {
	return s.store.List()
}

func (s *EndpointService) Get(id string) (model.Endpoint, error) {
	return s.store.Get(id)
}

func (s *EndpointService) Count() int {
	return s.store.Len()
}

func (s *EndpointService) Create(in model.EndpointInput) (model.Endpoint, error) {
	ep, err := s.store.Create(in)
	if err != nil {
		return model.Endpoint{}, err
	}
	s.logger.Info("endpoint created", zap.String("endpoint_id", ep.ID),
		zap.String("method", string(ep.Method)), zap.String("path", ep.Path))
	s.Sync()
	return ep, nil
}

func (s *EndpointService) Update(id string, in model.EndpointInput) (model.Endpoint, error) {
	ep, err := s.store.Update(id, in)
	if err != nil {
		return model.Endpoint{}, err
	}
	s.logger.Info("endpoint updated", zap.String("endpoint_id", ep.ID))
	s.Sync()
	return ep, nil
}

func (s *EndpointService) Delete(id string) (model.Endpoint, error) {
	ep, err := s.store.Delete(id)
	if err != nil {
		return model.Endpoint{}, err
	}
	s.logger.Info("endpoint deleted", zap.String("endpoint_id", ep.ID))
	s.Sync()
	return ep, nil
}

func (s *EndpointService) Toggle(id string) (model.Endpoint, error) {
	ep, err := s.store.Toggle(id)
	if err != nil {
		return model.Endpoint{}, err
	}
	s.logger.Info("endpoint toggled", zap.String("endpoint_id", ep.ID), zap.Bool("enabled", ep.Enabled))
	s.Sync()
	return ep, nil
}

// Import creates each input independently. Failures are reported per index
// and do not stop the batch; the router is rebuilt once at the end.
func (s *EndpointService) Import(inputs []model.EndpointInput) model.DTOImportResponse {
	result := model.DTOImportResponse{
		Imported: []model.Endpoint{},
		Failed:   []model.DTOImportFailure{},
	}

	for i, in := range inputs {
		ep, err := s.store.Create(in)
		if err != nil {
			result.Failed = append(result.Failed, model.DTOImportFailure{Index: i, Errors: ErrorMessages(err)})
			continue
		}
		result.Imported = append(result.Imported, ep)
	}

	s.logger.Info("endpoints imported",
		zap.Int("imported", len(result.Imported)), zap.Int("failed", len(result.Failed)))
	if len(result.Imported) > 0 {
		s.Sync()
	}
	return result
}

// Export returns every endpoint without its server-assigned fields.
func (s *EndpointService) Export() []model.PortableEndpoint {
	endpoints := s.store.List()
	out := make([]model.PortableEndpoint, len(endpoints))
	for i, ep := range endpoints {
		out[i] = model.PortableEndpoint{
			Name:     ep.Name,
			Method:   ep.Method,
			Path:     ep.Path,
			Enabled:  ep.Enabled,
			Response: ep.Response,
		}
	}
	return out
}

// Sync rebuilds the router and broadcasts the current endpoint list.
func (s *EndpointService) Sync() {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	s.router.Rebuild()
	s.publisher.Publish(model.Event{Type: model.EventEndpointsSync, Data: s.store.List()})
}

// ErrorMessages flattens err into the messages shown to API clients.
func ErrorMessages(err error) []string {
	var verr *registry.ValidationError
	if errors.As(err, &verr) {
		return verr.Messages
	}
	if errors.Is(err, registry.ErrNotFound) {
		return []string{"Endpoint not found"}
	}
	return []string{err.Error()}
}
