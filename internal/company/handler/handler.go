// Package handler exposes company registration and settings over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"fiscalwatch/internal/company/models"
	companyservice "fiscalwatch/internal/company/service"
	"fiscalwatch/internal/platform/middleware"
	id "fiscalwatch/pkg/domain"
	"fiscalwatch/pkg/platform/httputil"
)

// Service defines the company operations the HTTP layer needs.
type Service interface {
	Create(ctx context.Context, in companyservice.CreateInput) (*models.Company, error)
	Get(ctx context.Context, companyID id.CompanyID) (*models.Company, error)
	List(ctx context.Context) ([]*models.Company, error)
	UpdateNotificationConfig(ctx context.Context, companyID id.CompanyID, cfg models.NotificationConfig) (*models.Company, error)
	SetPermittedServiceCodes(ctx context.Context, companyID id.CompanyID, codes map[string]string) (*models.Company, error)
	SetAutoCollect(ctx context.Context, companyID id.CompanyID, enabled bool) (*models.Company, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts company routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/companies", h.handleCreate)
	r.Get("/companies", h.handleList)
	r.Get("/companies/{companyID}", h.handleGet)
	r.Put("/companies/{companyID}/notification-config", h.handleUpdateNotificationConfig)
	r.Put("/companies/{companyID}/permitted-codes", h.handleSetPermittedCodes)
	r.Put("/companies/{companyID}/auto-collect", h.handleSetAutoCollect)
}

type createRequest struct {
	CNPJ                  string                     `json:"cnpj"`
	LegalName             string                     `json:"legal_name"`
	TradeName             string                     `json:"trade_name"`
	Regime                string                     `json:"regime"`
	AnnualLimit           decimal.Decimal            `json:"annual_limit"`
	PermittedServiceCodes map[string]string          `json:"permitted_service_codes"`
	Notification          *models.NotificationConfig `json:"notification"`
	AutoCollect           bool                       `json:"auto_collect"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[createRequest](w, r, h.logger)
	if !ok {
		return
	}

	company, err := h.service.Create(ctx, companyservice.CreateInput{
		CNPJ:                  req.CNPJ,
		LegalName:             req.LegalName,
		TradeName:             req.TradeName,
		Regime:                models.Regime(req.Regime),
		AnnualLimit:           req.AnnualLimit,
		PermittedServiceCodes: req.PermittedServiceCodes,
		Notification:          req.Notification,
		AutoCollect:           req.AutoCollect,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "company registration failed",
			"request_id", middleware.GetRequestID(ctx),
			"cnpj", req.CNPJ,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, company)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, companies)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	company, err := h.service.Get(r.Context(), companyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, company)
}

func (h *Handler) handleUpdateNotificationConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cfg, ok := httputil.DecodeJSON[models.NotificationConfig](w, r, h.logger)
	if !ok {
		return
	}
	company, err := h.service.UpdateNotificationConfig(ctx, companyID, cfg)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, company)
}

type permittedCodesRequest struct {
	Codes map[string]string `json:"codes"`
}

func (h *Handler) handleSetPermittedCodes(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[permittedCodesRequest](w, r, h.logger)
	if !ok {
		return
	}
	company, err := h.service.SetPermittedServiceCodes(r.Context(), companyID, req.Codes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, company)
}

type autoCollectRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) handleSetAutoCollect(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[autoCollectRequest](w, r, h.logger)
	if !ok {
		return
	}
	company, err := h.service.SetAutoCollect(r.Context(), companyID, req.Enabled)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, company)
}
