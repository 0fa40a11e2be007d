package review

import (
	"context"
	"errors"
	"fmt"
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
	ErrDuplicateReview = fmt.Errorf("review: %w", apperr.ErrDuplicateReview)
	ErrNotEligible     = fmt.Errorf("review requires a delivered order containing the product: %w", apperr.ErrNotEligible)
	ErrProductNotFound = fmt.Errorf("product %w", apperr.ErrNotFound)
)

type Repository interface {
	HasReviewed(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	// FindDeliveredOrder returns the newest delivered order of userID that
	// contains productID, or nil.
	FindDeliveredOrder(ctx context.Context, userID, productID uuid.UUID) (*uuid.UUID, error)
	Create(ctx context.Context, r *Review) error
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]Review, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) HasReviewed(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE product_id = $1 AND user_id = $2)`,
		productID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check existing review: %w", err)
	}

	return exists, nil
}

func (r *postgresRepository) FindDeliveredOrder(ctx context.Context, userID, productID uuid.UUID) (*uuid.UUID, error) {
	query := `
		SELECT o.id
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.user_id = $1 AND oi.product_id = $2 AND o.status = 'delivered'
		ORDER BY o.created_at DESC
		LIMIT 1
	`

	var orderID uuid.UUID
	if err := r.db.QueryRow(ctx, query, userID, productID).Scan(&orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: failed to look up delivered order: %w", err)
	}

	return &orderID, nil
}

// Create inserts the review and recomputes the product aggregate from every
// review row in the same transaction. The product row is locked first so
// concurrent reviews of one product recompute one after another.
func (r *postgresRepository) Create(ctx context.Context, rev *Review) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("product_id", rev.ProductID).Msg("Failed to rollback review transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	var locked uuid.UUID
	if err = tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, rev.ProductID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("repository: failed to lock product %s: %w", rev.ProductID, err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate review ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = tx.Exec(ctx, `
		INSERT INTO reviews (id, product_id, user_id, order_id, rating, comment, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, rev.ProductID, rev.UserID, rev.OrderID, rev.Rating, rev.Comment, rev.IsVerified, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateReview
		}
		return fmt.Errorf("repository: failed to insert review: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT rating FROM reviews WHERE product_id = $1`, rev.ProductID)
	if err != nil {
		return fmt.Errorf("repository: failed to read ratings for product %s: %w", rev.ProductID, err)
	}
	ratings, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return fmt.Errorf("repository: failed to scan ratings for product %s: %w", rev.ProductID, err)
	}

	rating, count := AggregateRating(ratings)
	_, err = tx.Exec(ctx,
		`UPDATE products SET rating = $1, review_count = $2, updated_at = $3 WHERE id = $4`,
		rating, count, now, rev.ProductID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update rating for product %s: %w", rev.ProductID, err)
	}

	rev.ID = id
	rev.CreatedAt = now
	return nil
}

func (r *postgresRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]Review, error) {
	query := `
		SELECT r.id, r.product_id, r.user_id, r.order_id, r.rating, r.comment, r.is_verified, u.first_name, r.created_at
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC
	`

	rows, err := r.db.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query reviews for product %s: %w", productID, err)
	}
	defer rows.Close()

	reviews := make([]Review, 0)
	for rows.Next() {
		var rev Review
		err := rows.Scan(&rev.ID, &rev.ProductID, &rev.UserID, &rev.OrderID, &rev.Rating, &rev.Comment,
			&rev.IsVerified, &rev.UserName, &rev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan review: %w", err)
		}
		reviews = append(reviews, rev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating reviews for product %s: %w", productID, err)
	}

	return reviews, nil
}
