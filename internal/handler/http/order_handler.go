package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/fashion-storefront/internal/order"
)

const idempotencyKeyHeader = "Idempotency-Key"

// PlaceOrderRequest leaves the required-field checks to the order engine so
// missing fields are reported together with the other business checks.
type PlaceOrderRequest struct {
	ShippingAddress  string  `json:"shippingAddress" validate:"max=500"`
	CustomerPhone    string  `json:"customerPhone" validate:"max=20"`
	Notes            *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
	ShippingProvince string  `json:"shippingProvince" validate:"max=100"`
	ShippingDistrict string  `json:"shippingDistrict" validate:"max=100"`
	ShippingWard     string  `json:"shippingWard" validate:"max=100"`
	PaymentMethod    string  `json:"paymentMethod" validate:"omitempty,oneof=cod bank_transfer"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
	limiter  *RateLimiter
}

func NewOrderHandler(service order.Service, limiter *RateLimiter) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
		limiter:  limiter,
	}
}

func (h *OrderHandler) RegisterUserRoutes(router chi.Router) {
	router.With(h.limiter.Middleware).Post("/orders", h.handlePlaceOrder)
	router.Get("/orders", h.handleListMyOrders)
}

func (h *OrderHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Put("/orders/{id}/status", h.handleUpdateOrderStatus)
	router.Get("/admin/orders", h.handleListAllOrders)
	router.Put("/admin/orders/{id}/status", h.handleUpdateOrderStatus)
}

func (h *OrderHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	var requestPayload PlaceOrderRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	in := order.PlaceOrderInput{
		ShippingAddress:  requestPayload.ShippingAddress,
		CustomerPhone:    requestPayload.CustomerPhone,
		ShippingProvince: requestPayload.ShippingProvince,
		ShippingDistrict: requestPayload.ShippingDistrict,
		ShippingWard:     requestPayload.ShippingWard,
		PaymentMethod:    order.PaymentMethod(requestPayload.PaymentMethod),
		Notes:            requestPayload.Notes,
		IdempotencyKey:   strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
	}

	placed, err := h.service.PlaceOrder(r.Context(), caller.UserID, in)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create order")
		return
	}

	respondWithJSON(w, http.StatusCreated, placed)
}

func (h *OrderHandler) handleListMyOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	orders, err := h.service.GetOrdersByUserID(r.Context(), caller.UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	found, err := h.service.GetOrderByID(r.Context(), orderID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch order")
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

func (h *OrderHandler) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateOrderStatusRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	updated, err := h.service.UpdateOrderStatus(r.Context(), orderID, order.Status(requestPayload.Status))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update order status")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}
