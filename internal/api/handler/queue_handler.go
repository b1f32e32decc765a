package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/speechtrack/syncagent/internal/api/middleware"
	"github.com/speechtrack/syncagent/internal/domain"
	"github.com/speechtrack/syncagent/internal/queue"
)

// QueueHandler exposes the offline queue over the agent's local control API:
// enqueue, inspect, remove, clear, and trigger a processing pass.
type QueueHandler struct {
	svc    *queue.Service
	tokens queue.TokenSource
	logger *zap.Logger
}

func NewQueueHandler(svc *queue.Service, tokens queue.TokenSource, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{svc: svc, tokens: tokens, logger: logger}
}

// Enqueue handles POST /api/v1/queue — the capture flow's entry point when
// an immediate upload failed or the device is offline.
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := h.svc.Add(r.Context(), req)
	if err != nil {
		h.logger.Warn("enqueue failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// List handles GET /api/v1/queue.
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.svc.Items(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"count": len(items),
	})
}

// Count handles GET /api/v1/queue/count — the pending-count indicator.
func (h *QueueHandler) Count(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int{
		"pending": h.svc.PendingCount(r.Context()),
	})
}

// Remove handles DELETE /api/v1/queue/{id}.
func (h *QueueHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/v1/queue.
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Process handles POST /api/v1/queue/process: it kicks a processing pass
// with the stored session credential and returns immediately. The queue's
// single-flight guard makes overlapping triggers harmless.
func (h *QueueHandler) Process(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens(r.Context())
	if err != nil {
		h.logger.Warn("credential lookup failed", zap.Error(err))
		token = ""
	}

	go h.svc.Process(context.Background(), token)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
}
