package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/fashion-storefront/internal/shipping"
)

type ShippingRateRequest struct {
	Province string          `json:"province" validate:"required,max=100"`
	District *string         `json:"district,omitempty" validate:"omitempty,max=100"`
	Ward     *string         `json:"ward,omitempty" validate:"omitempty,max=100"`
	Rate     decimal.Decimal `json:"rate"`
}

type ReplaceRatesRequest struct {
	Rates []ShippingRateRequest `json:"rates" validate:"dive"`
}

type ShippingFeeResponse struct {
	ShippingFee decimal.Decimal `json:"shippingFee"`
}

type ShippingHandler struct {
	service  shipping.Service
	validate *validator.Validate
}

func NewShippingHandler(service shipping.Service) *ShippingHandler {
	return &ShippingHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *ShippingHandler) RegisterPublicRoutes(router chi.Router) {
	router.Get("/settings/shipping-fee", h.handleGetShippingFee)
	router.Get("/shipping-rates", h.handleListRates)
}

func (h *ShippingHandler) RegisterAdminRoutes(router chi.Router) {
	router.Put("/shipping-rates", h.handleReplaceRates)
}

func (h *ShippingHandler) handleGetShippingFee(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, ShippingFeeResponse{ShippingFee: h.service.Fee()})
}

func (h *ShippingHandler) handleListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.ListRates(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch shipping rates")
		return
	}

	respondWithJSON(w, http.StatusOK, rates)
}

func (h *ShippingHandler) handleReplaceRates(w http.ResponseWriter, r *http.Request) {
	var requestPayload ReplaceRatesRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	rates := make([]shipping.Rate, 0, len(requestPayload.Rates))
	for _, rr := range requestPayload.Rates {
		rates = append(rates, shipping.Rate{
			Province: rr.Province,
			District: rr.District,
			Ward:     rr.Ward,
			Rate:     rr.Rate,
		})
	}

	stored, err := h.service.ReplaceRates(r.Context(), rates)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update shipping rates")
		return
	}

	respondWithJSON(w, http.StatusOK, stored)
}
