// Package handler exposes the per-company collection history over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fiscalwatch/internal/ports"
	id "fiscalwatch/pkg/domain"
	dErrors "fiscalwatch/pkg/domain-errors"
	"fiscalwatch/pkg/platform/httputil"
)

const maxHistoryLimit = 200

type Handler struct {
	logs   ports.CollectionLogStore
	logger *slog.Logger
}

func New(logs ports.CollectionLogStore, logger *slog.Logger) *Handler {
	return &Handler{logs: logs, logger: logger}
}

// Register mounts the collection-history route under the company resource.
func (h *Handler) Register(r chi.Router) {
	r.Get("/companies/{companyID}/collections", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 || limit > maxHistoryLimit {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "limit must be between 0 and %d", maxHistoryLimit))
			return
		}
	}

	entries, err := h.logs.ListByCompany(r.Context(), companyID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}
