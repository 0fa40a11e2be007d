package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vasiliy-maslov/fashion-storefront/internal/dashboard"
)

type DashboardHandler struct {
	service dashboard.Service
}

func NewDashboardHandler(service dashboard.Service) *DashboardHandler {
	return &DashboardHandler{service: service}
}

func (h *DashboardHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/admin/dashboard", h.handleGetStats)
}

func (h *DashboardHandler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch dashboard stats")
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}
