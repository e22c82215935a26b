package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/suar-net/suar-playground/internal/model"
	"go.uber.org/zap"
)

// RequestLog is the bounded in-memory log of captured transactions.
type RequestLog interface {
	Entries() []model.RequestLogEntry
	Len() int
	Clear()
}

// HistoryReader reads archived transactions. It is nil when no database is
// configured.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]*model.ArchivedRequest, error)
}

type RequestHandler struct {
	log     RequestLog
	history HistoryReader
	logger  *zap.Logger
}

func NewRequestHandler(log RequestLog, history HistoryReader, l *zap.Logger) *RequestHandler {
	return &RequestHandler{log: log, history: history, logger: l}
}

// List returns the captured transactions, oldest first.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.log.Entries()
	respondWithJson(w, http.StatusOK, map[string]any{"logs": entries, "count": len(entries)})
}

func (h *RequestHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.log.Clear()
	respondWithJson(w, http.StatusOK, map[string]any{"message": "Logs cleared"})
}

// History returns archived transactions, newest first.
func (h *RequestHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondWithError(w, http.StatusNotFound, "Request archive is not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rows, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read request history", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to read request history")
		return
	}
	respondWithJson(w, http.StatusOK, map[string]any{"history": rows, "count": len(rows)})
}
