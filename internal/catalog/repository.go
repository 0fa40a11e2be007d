package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
)

var (
	ErrProductNotFound  = fmt.Errorf("product %w", apperr.ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", apperr.ErrNotFound)
	ErrSlugExists       = fmt.Errorf("slug already exists: %w", apperr.ErrConflict)
)

type Repository interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	ListFeatured(ctx context.Context, limit int) ([]Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) (deactivated bool, err error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c *Category) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const productSelect = `
	SELECT p.id, p.name, p.slug, p.description, p.price, p.original_price, p.category_id, c.name,
		p.image_urls, p.sizes, p.colors, p.stock, p.is_active, p.is_featured, p.rating, p.review_count,
		p.created_at, p.updated_at
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.OriginalPrice, &p.CategoryID, &p.CategoryName,
		&p.ImageURLs, &p.Sizes, &p.Colors, &p.Stock, &p.IsActive, &p.IsFeatured, &p.Rating, &p.ReviewCount,
		&p.CreatedAt, &p.UpdatedAt,
	)
}

func (r *postgresRepository) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	return products, nil
}

func (r *postgresRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	conditions := []string{"p.is_active = TRUE"}
	args := make([]any, 0, 2)

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conditions = append(conditions, "p.category_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		conditions = append(conditions, "(p.name ILIKE $"+n+" OR p.description ILIKE $"+n+")")
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = sortColumns[SortByCreatedAt]
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}

	query := productSelect + " WHERE " + strings.Join(conditions, " AND ") +
		" ORDER BY " + column + " " + direction + ", p.id"

	return r.queryProducts(ctx, query, args...)
}

func (r *postgresRepository) ListFeatured(ctx context.Context, limit int) ([]Product, error) {
	query := productSelect + `
		WHERE p.is_active = TRUE AND p.is_featured = TRUE
		ORDER BY p.created_at DESC
		LIMIT $1
	`
	return r.queryProducts(ctx, query, limit)
}

func (r *postgresRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	if err := scanProduct(r.db.QueryRow(ctx, productSelect+" WHERE p.id = $1", id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}

	return &p, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return ErrSlugExists
		case pgerrcode.ForeignKeyViolation:
			return ErrCategoryNotFound
		}
	}
	return nil
}

func (r *postgresRepository) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate product ID: %w", err)
		}
		p.ID = id
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO products (id, name, slug, description, price, original_price, category_id, image_urls,
			sizes, colors, stock, is_active, is_featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Slug, p.Description, p.Price, p.OriginalPrice, p.CategoryID, nonNil(p.ImageURLs),
		nonNil(p.Sizes), nonNil(p.Colors), p.Stock, p.IsActive, p.IsFeatured, now,
	)
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdateProduct rewrites the editable columns. Rating, review count and
// created_at are owned elsewhere and left as is.
func (r *postgresRepository) UpdateProduct(ctx context.Context, p *Product) error {
	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, price = $4, original_price = $5, category_id = $6,
			image_urls = $7, sizes = $8, colors = $9, stock = $10, is_active = $11, is_featured = $12,
			updated_at = $13
		WHERE id = $14
	`
	cmdTag, err := r.db.Exec(ctx, query,
		p.Name, p.Slug, p.Description, p.Price, p.OriginalPrice, p.CategoryID,
		nonNil(p.ImageURLs), nonNil(p.Sizes), nonNil(p.Colors), p.Stock, p.IsActive, p.IsFeatured,
		time.Now().UTC(), p.ID,
	)
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("repository: failed to update product %s: %w", p.ID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

// DeleteProduct removes a product. Products already referenced by an order
// are deactivated instead, so order history keeps its rows.
func (r *postgresRepository) DeleteProduct(ctx context.Context, id uuid.UUID) (bool, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err == nil {
		if cmdTag.RowsAffected() == 0 {
			return false, ErrProductNotFound
		}
		return false, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.ForeignKeyViolation {
		return false, fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}

	log.Info().Stringer("product_id", id).Msg("repository: product has orders, deactivating instead of deleting")

	cmdTag, err = r.db.Exec(ctx, `UPDATE products SET is_active = FALSE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("repository: failed to deactivate product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return false, ErrProductNotFound
	}

	return true, nil
}

func (r *postgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, description, image_url, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating categories: %w", err)
	}

	return categories, nil
}

func (r *postgresRepository) CreateCategory(ctx context.Context, c *Category) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate category ID: %w", err)
		}
		c.ID = id
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO categories (id, name, slug, description, image_url) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		c.ID, c.Name, c.Slug, c.Description, c.ImageURL,
	).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrSlugExists
		}
		return fmt.Errorf("repository: failed to insert category: %w", err)
	}

	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
