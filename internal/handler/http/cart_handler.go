package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/fashion-storefront/internal/cart"
)

type AddToCartRequest struct {
	ProductID string  `json:"productId" validate:"required,uuid"`
	Quantity  int     `json:"quantity" validate:"required,min=1,max=1000"`
	Size      *string `json:"size,omitempty" validate:"omitempty,max=20"`
	Color     *string `json:"color,omitempty" validate:"omitempty,max=50"`
}

// UpdateCartItemRequest accepts zero or negative quantities; those remove the row.
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=1000"`
}

type CartResponse struct {
	Items    []cart.CartLine `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type CartHandler struct {
	service  cart.Service
	validate *validator.Validate
}

func NewCartHandler(service cart.Service) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes mounts the cart under a router that already requires a user.
func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleListCart)
	router.Post("/cart", h.handleAddToCart)
	router.Put("/cart/{id}", h.handleUpdateCartItem)
	router.Delete("/cart/{id}", h.handleRemoveCartItem)
}

func (h *CartHandler) handleListCart(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	lines, err := h.service.List(r.Context(), caller.UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch cart")
		return
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal())
	}

	respondWithJSON(w, http.StatusOK, CartResponse{Items: lines, Subtotal: subtotal})
}

func (h *CartHandler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	var requestPayload AddToCartRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	item, err := h.service.AddToCart(r.Context(), caller.UserID, uuid.FromStringOrNil(requestPayload.ProductID),
		requestPayload.Quantity, requestPayload.Size, requestPayload.Color)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to add to cart")
		return
	}

	respondWithJSON(w, http.StatusOK, item)
}

func (h *CartHandler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	item, err := h.service.UpdateQuantity(r.Context(), itemID, caller.UserID, *requestPayload.Quantity)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update cart item")
		return
	}

	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *CartHandler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), itemID, caller.UserID); err != nil {
		respondWithServiceError(w, r, err, "Failed to remove cart item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
