package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/fashion-storefront/internal/catalog"
	"github.com/vasiliy-maslov/fashion-storefront/internal/review"
)

type ProductRequest struct {
	Name          string           `json:"name" validate:"required,max=255"`
	Slug          string           `json:"slug,omitempty" validate:"omitempty,max=255"`
	Description   *string          `json:"description,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	CategoryID    *string          `json:"categoryId,omitempty" validate:"omitempty,uuid"`
	ImageURLs     []string         `json:"imageUrls,omitempty" validate:"omitempty,dive,required"`
	Sizes         []string         `json:"sizes,omitempty" validate:"omitempty,dive,required,max=20"`
	Colors        []string         `json:"colors,omitempty" validate:"omitempty,dive,required,max=50"`
	Stock         int              `json:"stock"`
	IsActive      *bool            `json:"isActive,omitempty"`
	IsFeatured    bool             `json:"isFeatured"`
}

type CategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Slug        string  `json:"slug,omitempty" validate:"omitempty,max=100"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

// ProductResponse adds the star split the storefront renders.
type ProductResponse struct {
	catalog.Product
	FullStars   int  `json:"fullStars"`
	HasHalfStar bool `json:"hasHalfStar"`
}

type ProductDetailResponse struct {
	ProductResponse
	Reviews []review.Review `json:"reviews"`
}

func toProductResponse(p catalog.Product) ProductResponse {
	full, half := catalog.Stars(p.Rating)
	return ProductResponse{Product: p, FullStars: full, HasHalfStar: half}
}

func toProductResponses(products []catalog.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

func (req ProductRequest) toProduct() *catalog.Product {
	p := &catalog.Product{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Price:       req.Price,
		ImageURLs:   nonNil(req.ImageURLs),
		Sizes:       nonNil(req.Sizes),
		Colors:      nonNil(req.Colors),
		Stock:       req.Stock,
		IsActive:    true,
		IsFeatured:  req.IsFeatured,
	}
	if req.OriginalPrice != nil {
		p.OriginalPrice = decimal.NewNullDecimal(*req.OriginalPrice)
	}
	if req.CategoryID != nil {
		id := uuid.FromStringOrNil(*req.CategoryID)
		p.CategoryID = &id
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type CatalogHandler struct {
	service  catalog.Service
	reviews  review.Service
	validate *validator.Validate
}

func NewCatalogHandler(service catalog.Service, reviews review.Service) *CatalogHandler {
	return &CatalogHandler{
		service:  service,
		reviews:  reviews,
		validate: newValidator(),
	}
}

func (h *CatalogHandler) RegisterPublicRoutes(router chi.Router) {
	router.Get("/categories", h.handleListCategories)
	router.Get("/products", h.handleListProducts)
	router.Get("/products/featured", h.handleFeaturedProducts)
	router.Get("/products/{id}", h.handleGetProduct)
}

func (h *CatalogHandler) RegisterAdminRoutes(router chi.Router) {
	router.Post("/categories", h.handleCreateCategory)
	router.Post("/products", h.handleCreateProduct)
	router.Put("/products/{id}", h.handleUpdateProduct)
	router.Delete("/products/{id}", h.handleDeleteProduct)
}

func (h *CatalogHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := catalog.ProductFilter{
		Search:    query.Get("search"),
		SortBy:    catalog.SortField(query.Get("sortBy")),
		SortOrder: query.Get("sortOrder"),
	}
	if raw := query.Get("categoryId"); raw != "" {
		categoryID, err := uuid.FromString(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid categoryId parameter")
			return
		}
		filter.CategoryID = &categoryID
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch products")
		return
	}

	respondWithJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *CatalogHandler) handleFeaturedProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.FeaturedProducts(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch featured products")
		return
	}

	respondWithJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *CatalogHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch product")
		return
	}

	reviews, err := h.reviews.ListReviews(r.Context(), productID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch product")
		return
	}

	respondWithJSON(w, http.StatusOK, ProductDetailResponse{ProductResponse: toProductResponse(*p), Reviews: reviews})
}

func (h *CatalogHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var requestPayload ProductRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.CreateProduct(r.Context(), requestPayload.toProduct())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create product")
		return
	}

	respondWithJSON(w, http.StatusCreated, toProductResponse(*created))
}

func (h *CatalogHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload ProductRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	p := requestPayload.toProduct()
	p.ID = productID
	if err := h.service.UpdateProduct(r.Context(), p); err != nil {
		respondWithServiceError(w, r, err, "Failed to update product")
		return
	}

	updated, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch product")
		return
	}

	respondWithJSON(w, http.StatusOK, toProductResponse(*updated))
}

func (h *CatalogHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), productID); err != nil {
		respondWithServiceError(w, r, err, "Failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch categories")
		return
	}

	respondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var requestPayload CategoryRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.CreateCategory(r.Context(), &catalog.Category{
		Name:        requestPayload.Name,
		Slug:        requestPayload.Slug,
		Description: requestPayload.Description,
		ImageURL:    requestPayload.ImageURL,
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create category")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}
