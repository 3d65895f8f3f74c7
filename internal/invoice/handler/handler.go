// Package handler exposes invoice ingestion and ledger queries over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	invoicemodels "fiscalwatch/internal/invoice/models"
	invoiceservice "fiscalwatch/internal/invoice/service"
	"fiscalwatch/internal/platform/middleware"
	id "fiscalwatch/pkg/domain"
	"fiscalwatch/pkg/platform/httputil"
)

// Service defines the invoice operations the HTTP layer needs.
type Service interface {
	Import(ctx context.Context, companyID id.CompanyID, rawXML []byte) (*invoicemodels.Invoice, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*invoicemodels.Invoice, error)
	StatsByCompany(ctx context.Context, companyID id.CompanyID) (invoiceservice.Stats, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts invoice routes under the company resource.
func (h *Handler) Register(r chi.Router) {
	r.Post("/companies/{companyID}/invoices", h.handleImport)
	r.Get("/companies/{companyID}/invoices", h.handleList)
	r.Get("/companies/{companyID}/stats", h.handleStats)
}

// handleImport accepts a raw NFS-e XML document in the request body.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	raw, ok := httputil.ReadBody(w, r)
	if !ok {
		return
	}

	invoice, err := h.service.Import(ctx, companyID, raw)
	if err != nil {
		h.logger.WarnContext(ctx, "invoice import rejected",
			"request_id", middleware.GetRequestID(ctx),
			"company_id", companyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, invoice)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	invoices, err := h.service.ListByCompany(r.Context(), companyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invoices)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stats, err := h.service.StatsByCompany(r.Context(), companyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
