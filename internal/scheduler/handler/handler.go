// Package handler exposes scheduler introspection and manual job triggers.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fiscalwatch/internal/scheduler"
	"fiscalwatch/pkg/platform/httputil"
)

// Service defines the scheduler operations the HTTP layer needs.
type Service interface {
	Status() scheduler.Status
	TriggerManual(ctx context.Context, jobID string) (scheduler.TriggerResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts scheduler routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/scheduler/status", h.handleStatus)
	r.Post("/scheduler/jobs/{jobID}/trigger", h.handleTrigger)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Status())
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	result, err := h.service.TriggerManual(r.Context(), jobID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusAccepted
	if !result.Started {
		// Busy jobs report a skip, not a failure.
		status = http.StatusConflict
	}
	httputil.WriteJSON(w, status, result)
}
