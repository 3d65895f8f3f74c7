// Package handler exposes alert listing and acknowledgement over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	alertmodels "fiscalwatch/internal/alert/models"
	id "fiscalwatch/pkg/domain"
	"fiscalwatch/pkg/platform/httputil"
)

// Service defines the alert operations the HTTP layer needs.
type Service interface {
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*alertmodels.Alert, error)
	MarkRead(ctx context.Context, alertID id.AlertID) (*alertmodels.Alert, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts alert routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/companies/{companyID}/alerts", h.handleList)
	r.Post("/alerts/{alertID}/read", h.handleMarkRead)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	alerts, err := h.service.ListByCompany(r.Context(), companyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alerts)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	alertID, err := id.ParseAlertID(chi.URLParam(r, "alertID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	alert, err := h.service.MarkRead(r.Context(), alertID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}
