package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/suar-net/suar-playground/internal/model"
	"github.com/suar-net/suar-playground/internal/registry"
	"github.com/suar-net/suar-playground/internal/service"
	"go.uber.org/zap"
)

type EndpointService interface {
	List() []model.Endpoint
	Get(id string) (model.Endpoint, error)
	Create(in model.EndpointInput) (model.Endpoint, error)
	Update(id string, in model.EndpointInput) (model.Endpoint, error)
	Delete(id string) (model.Endpoint, error)
	Toggle(id string) (model.Endpoint, error)
	Import(inputs []model.EndpointInput) model.DTOImportResponse
	Export() []model.PortableEndpoint
	Count() int
}

type EndpointHandler struct {
	service EndpointService
	logger  *zap.Logger
}

func NewEndpointHandler(s EndpointService, l *zap.Logger) *EndpointHandler {
	return &EndpointHandler{service: s, logger: l}
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	respondWithJson(w, http.StatusOK, map[string]any{"endpoints": h.service.List()})
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	ep, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJson(w, http.StatusOK, map[string]any{"endpoint": ep})
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readInput(w, r)
	if !ok {
		return
	}
	ep, err := h.service.Create(in)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.audit(r, "create", ep.ID)
	respondWithJson(w, http.StatusCreated, map[string]any{"endpoint": ep})
}

func (h *EndpointHandler) Update(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readInput(w, r)
	if !ok {
		return
	}
	ep, err := h.service.Update(chi.URLParam(r, "id"), in)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.audit(r, "update", ep.ID)
	respondWithJson(w, http.StatusOK, map[string]any{"endpoint": ep})
}

func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ep, err := h.service.Delete(chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.audit(r, "delete", ep.ID)
	respondWithJson(w, http.StatusOK, map[string]any{"message": "Endpoint deleted", "endpoint": ep})
}

func (h *EndpointHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ep, err := h.service.Toggle(chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.audit(r, "toggle", ep.ID)
	respondWithJson(w, http.StatusOK, map[string]any{"endpoint": ep})
}

func (h *EndpointHandler) Import(w http.ResponseWriter, r *http.Request) {
	var payload model.DTOImportRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Endpoints == nil {
		respondWithError(w, http.StatusBadRequest, "Request body must contain an endpoints array")
		return
	}

	inputs := make([]model.EndpointInput, len(payload.Endpoints))
	for i, raw := range payload.Endpoints {
		// Items that are not objects fail validation like an empty definition.
		inputs[i], _ = decodeEndpointInput(raw)
	}
	respondWithJson(w, http.StatusOK, h.service.Import(inputs))
}

func (h *EndpointHandler) Export(w http.ResponseWriter, r *http.Request) {
	respondWithJson(w, http.StatusOK, map[string]any{"endpoints": h.service.Export()})
}

// audit records who changed an endpoint when the management API is guarded.
func (h *EndpointHandler) audit(r *http.Request, action, id string) {
	if claims, ok := AdminFromContext(r.Context()); ok {
		h.logger.Info("endpoint changed by admin",
			zap.String("action", action), zap.String("endpoint_id", id), zap.String("subject", claims.Subject))
	}
}

func (h *EndpointHandler) readInput(w http.ResponseWriter, r *http.Request) (model.EndpointInput, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, "Request body is too large")
		return model.EndpointInput{}, false
	}
	in, err := decodeEndpointInput(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON format")
		return model.EndpointInput{}, false
	}
	return in, true
}

func (h *EndpointHandler) respondWithServiceError(w http.ResponseWriter, err error) {
	var verr *registry.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, verr.Messages...)
	case errors.Is(err, registry.ErrNotFound):
		respondWithError(w, http.StatusNotFound, service.ErrorMessages(err)...)
	default:
		h.logger.Error("endpoint operation failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "An internal error occurred")
	}
}

// decodeEndpointInput reads a definition field by field so a value of the
// wrong type becomes a validation failure instead of a decode error.
func decodeEndpointInput(raw []byte) (model.EndpointInput, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.EndpointInput{}, err
	}
	if fields == nil {
		return model.EndpointInput{}, errors.New("definition must be an object")
	}

	var in model.EndpointInput
	in.Name = stringField(fields, "name")
	in.Method = stringField(fields, "method")
	in.Path = stringField(fields, "path")
	if v, ok := fields["enabled"]; ok {
		var b bool
		if json.Unmarshal(v, &b) == nil {
			in.Enabled = &b
		}
	}
	if v, ok := fields["response"]; ok {
		in.Response = v
	}
	return in, nil
}

// stringField returns nil for an absent key and "" for a present value that
// is not a string.
func stringField(fields map[string]json.RawMessage, key string) *string {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		s = ""
	}
	return &s
}
