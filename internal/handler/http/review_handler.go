package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/fashion-storefront/internal/review"
)

// SubmitReviewRequest keeps the 1-5 range check in the review gate.
type SubmitReviewRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

type ReviewHandler struct {
	service  review.Service
	validate *validator.Validate
	limiter  *RateLimiter
}

func NewReviewHandler(service review.Service, limiter *RateLimiter) *ReviewHandler {
	return &ReviewHandler{
		service:  service,
		validate: newValidator(),
		limiter:  limiter,
	}
}

func (h *ReviewHandler) RegisterPublicRoutes(router chi.Router) {
	router.Get("/products/{id}/reviews", h.handleListReviews)
}

func (h *ReviewHandler) RegisterUserRoutes(router chi.Router) {
	router.Get("/products/{id}/can-review", h.handleCanReview)
	router.With(h.limiter.Middleware).Post("/products/{id}/reviews", h.handleSubmitReview)
}

func (h *ReviewHandler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	reviews, err := h.service.ListReviews(r.Context(), productID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch reviews")
		return
	}

	respondWithJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) handleCanReview(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	productID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	eligibility, err := h.service.CanReview(r.Context(), caller.UserID, productID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to check review eligibility")
		return
	}

	respondWithJSON(w, http.StatusOK, eligibility)
}

func (h *ReviewHandler) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	productID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload SubmitReviewRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.SubmitReview(r.Context(), caller.UserID, productID, requestPayload.Rating, requestPayload.Comment)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create review")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}
