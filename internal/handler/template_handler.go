package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/suar-net/suar-playground/internal/model"
	"go.uber.org/zap"
)

type TemplateRenderer interface {
	RenderJSON(raw []byte) (any, error)
}

type MethodLister interface {
	Methods() map[string][]string
}

// TemplateHandler serves the generator preview used by the response editor.
type TemplateHandler struct {
	renderer TemplateRenderer
	methods  MethodLister
	logger   *zap.Logger
}

func NewTemplateHandler(renderer TemplateRenderer, methods MethodLister, l *zap.Logger) *TemplateHandler {
	return &TemplateHandler{renderer: renderer, methods: methods, logger: l}
}

func (h *TemplateHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var dto model.DTOPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if len(dto.Template) == 0 || bytes.Equal(dto.Template, []byte("null")) {
		respondWithError(w, http.StatusBadRequest, "Template is required")
		return
	}

	result, err := h.renderer.RenderJSON(dto.Template)
	if err != nil {
		h.logger.Error("failed to render template preview", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to process template: "+err.Error())
		return
	}
	respondWithJson(w, http.StatusOK, map[string]any{"result": result})
}

func (h *TemplateHandler) Methods(w http.ResponseWriter, r *http.Request) {
	respondWithJson(w, http.StatusOK, map[string]any{"methods": h.methods.Methods()})
}
