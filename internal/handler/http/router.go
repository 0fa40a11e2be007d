package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vasiliy-maslov/fashion-storefront/internal/auth"
)

type Handlers struct {
	Cart      *CartHandler
	Orders    *OrderHandler
	Reviews   *ReviewHandler
	Catalog   *CatalogHandler
	Users     *UserHandler
	Shipping  *ShippingHandler
	Dashboard *DashboardHandler
}

// NewRouter mounts every handler under /api behind the identity middleware.
// Public, user and admin routes are separate groups.
func NewRouter(h Handlers, verifier *auth.Verifier) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	router.Route("/api", func(api chi.Router) {
		api.Use(verifier.Middleware(authError))

		api.Group(func(public chi.Router) {
			h.Catalog.RegisterPublicRoutes(public)
			h.Reviews.RegisterPublicRoutes(public)
			h.Shipping.RegisterPublicRoutes(public)
		})

		api.Group(func(user chi.Router) {
			user.Use(auth.RequireUser(authError))
			h.Users.RegisterUserRoutes(user)
			h.Cart.RegisterRoutes(user)
			h.Orders.RegisterUserRoutes(user)
			h.Reviews.RegisterUserRoutes(user)
		})

		api.Group(func(admin chi.Router) {
			admin.Use(auth.RequireAdmin(authError))
			h.Catalog.RegisterAdminRoutes(admin)
			h.Orders.RegisterAdminRoutes(admin)
			h.Users.RegisterAdminRoutes(admin)
			h.Shipping.RegisterAdminRoutes(admin)
			h.Dashboard.RegisterAdminRoutes(admin)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})

	return router
}
