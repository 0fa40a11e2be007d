package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/fashion-storefront/internal/auth"
	"github.com/vasiliy-maslov/fashion-storefront/internal/user"
)

type SyncProfileRequest struct {
	FirstName string  `json:"firstName" validate:"max=100"`
	LastName  string  `json:"lastName" validate:"max=100"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=20"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=customer admin"`
}

type UserHandler struct {
	service  user.Service
	validate *validator.Validate
}

func NewUserHandler(service user.Service) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *UserHandler) RegisterUserRoutes(router chi.Router) {
	router.Get("/auth/user", h.handleGetCurrentUser)
	router.Put("/auth/user", h.handleSyncProfile)
}

func (h *UserHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/users", h.handleListUsers)
	router.Put("/users/{id}/role", h.handleUpdateRole)
}

func (h *UserHandler) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	found, err := h.service.GetUserByID(r.Context(), caller.UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch user")
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

func (h *UserHandler) handleSyncProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	var requestPayload SyncProfileRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	synced, err := h.service.SyncProfile(r.Context(), &user.User{
		ID:        caller.UserID,
		FirstName: requestPayload.FirstName,
		LastName:  requestPayload.LastName,
		Email:     requestPayload.Email,
		Phone:     requestPayload.Phone,
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to save user profile")
		return
	}

	respondWithJSON(w, http.StatusOK, synced)
}

func (h *UserHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch users")
		return
	}

	respondWithJSON(w, http.StatusOK, users)
}

func (h *UserHandler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateRoleRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	if err := h.service.UpdateUserRole(r.Context(), userID, auth.Role(requestPayload.Role)); err != nil {
		respondWithServiceError(w, r, err, "Failed to update user role")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
