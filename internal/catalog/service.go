package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
)

type Service interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	FeaturedProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c *Category) (*Category, error)
}

type service struct {
	repo          Repository
	featuredLimit int
}

func NewService(repo Repository, featuredLimit int) Service {
	if featuredLimit <= 0 {
		featuredLimit = 8
	}
	return &service{repo: repo, featuredLimit: featuredLimit}
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var invalid []string
	if filter.SortBy != "" {
		if _, ok := sortColumns[filter.SortBy]; !ok {
			invalid = append(invalid, "sortBy")
		}
	}
	if filter.SortOrder != "" && !strings.EqualFold(filter.SortOrder, "asc") && !strings.EqualFold(filter.SortOrder, "desc") {
		invalid = append(invalid, "sortOrder")
	}
	if len(invalid) > 0 {
		return nil, apperr.NewValidationError("invalid sort parameters", invalid...)
	}

	filter.Search = strings.TrimSpace(filter.Search)

	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}

	return products, nil
}

func (s *service) FeaturedProducts(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListFeatured(ctx, s.featuredLimit)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list featured products")
		return nil, fmt.Errorf("service: failed to list featured products: %w", err)
	}

	return products, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			log.Warn().Stringer("product_id", id).Msg("service: product not found by id")
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to get product by id")
		return nil, fmt.Errorf("service: failed to get product by id: %w", err)
	}

	return p, nil
}

func validateProduct(p *Product) error {
	var fields []string
	if strings.TrimSpace(p.Name) == "" {
		fields = append(fields, "name")
	}
	if !p.Price.IsPositive() {
		fields = append(fields, "price")
	}
	if p.OriginalPrice.Valid && p.OriginalPrice.Decimal.IsNegative() {
		fields = append(fields, "originalPrice")
	}
	if p.Stock < 0 {
		fields = append(fields, "stock")
	}
	if len(fields) > 0 {
		return apperr.NewValidationError("invalid product", fields...)
	}
	return nil
}

func normalizeProduct(p *Product) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	p.Price = p.Price.Round(2)
	if p.OriginalPrice.Valid {
		p.OriginalPrice.Decimal = p.OriginalPrice.Decimal.Round(2)
	}
}

func (s *service) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	normalizeProduct(p)
	p.Rating = decimal.Zero
	p.ReviewCount = 0

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrSlugExists) || errors.Is(err, ErrCategoryNotFound) {
			log.Warn().Err(err).Str("slug", p.Slug).Msg("service: product rejected by catalog constraints")
			return nil, err
		}
		log.Error().Err(err).Msg("service: failed to create product")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Str("slug", p.Slug).Msg("service: product created")
	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, p *Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	normalizeProduct(p)

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, ErrSlugExists) {
			log.Warn().Err(err).Stringer("product_id", p.ID).Msg("service: product update rejected")
			return err
		}
		log.Error().Err(err).Stringer("product_id", p.ID).Msg("service: failed to update product")
		return fmt.Errorf("service: failed to update product: %w", err)
	}

	return nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	deactivated, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			log.Warn().Stringer("product_id", id).Msg("service: product not found, cannot delete")
			return ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to delete product")
		return fmt.Errorf("service: failed to delete product: %w", err)
	}

	log.Info().Stringer("product_id", id).Bool("deactivated", deactivated).Msg("service: product removed from catalog")
	return nil
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories")
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}

	return categories, nil
}

func (s *service) CreateCategory(ctx context.Context, c *Category) (*Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, apperr.NewValidationError("missing required fields", "name")
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}

	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, ErrSlugExists) {
			log.Warn().Str("slug", c.Slug).Msg("service: category slug already exists")
			return nil, err
		}
		log.Error().Err(err).Msg("service: failed to create category")
		return nil, fmt.Errorf("service: failed to create category: %w", err)
	}

	return c, nil
}
