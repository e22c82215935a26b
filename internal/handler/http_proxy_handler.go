package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/suar-net/suar-playground/internal/model"
	"github.com/suar-net/suar-playground/internal/service"
	"go.uber.org/zap"
)

// HTTPProxyService adalah interface yang mendefinisikan kontrak untuk service HTTP proxy.
// Handler bergantung pada interface ini, bukan pada implementasi konkretnya.
type HTTPProxyService interface {
	ProcessRequest(ctx context.Context, dto *model.DTOProxyRequest) (*model.DTOProxyResponse, error)
}

// HTTPProxyHandler forwards tester requests to arbitrary URLs.
type HTTPProxyHandler struct {
	service HTTPProxyService
	logger  *zap.Logger
}

func NewHTTPProxyHandler(s HTTPProxyService, l *zap.Logger) *HTTPProxyHandler {
	return &HTTPProxyHandler{
		service: s,
		logger:  l,
	}
}

func (h *HTTPProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "Invalid request method")
		return
	}

	var dto model.DTOProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	// Validate the DTO
	if err := validate.Struct(&dto); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessages(err)...)
		return
	}

	// r.Context() carries deadlines, cancellation signals, and other request-scoped values.
	dtoResponse, err := h.service.ProcessRequest(r.Context(), &dto)
	if err != nil {
		var upErr *service.UpstreamError
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &upErr):
			code := http.StatusBadGateway
			if errors.Is(err, service.ErrRequestTimeout) {
				code = http.StatusGatewayTimeout
			}
			h.logger.Info("tester request failed",
				zap.String("url", dto.URL), zap.Int("status", code), zap.Int64("timing_ms", upErr.Timing), zap.Error(err))
			respondWithJson(w, code, map[string]any{"error": upErr.Message, "timing": upErr.Timing})
		default:
			h.logger.Error("tester request failed", zap.String("url", dto.URL), zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "An internal error occurred")
		}
		return
	}

	respondWithJson(w, http.StatusOK, dtoResponse)
}
