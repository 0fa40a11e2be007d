package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
	"github.com/vasiliy-maslov/fashion-storefront/internal/db"
)

var (
	ErrCartItemNotFound   = fmt.Errorf("cart item %w", apperr.ErrNotFound)
	ErrProductUnavailable = fmt.Errorf("active product %w", apperr.ErrNotFound)
	ErrQuantityOutOfRange = apperr.NewValidationError("quantity must be between 1 and "+strconv.Itoa(MaxQuantity), "quantity")
)

// quantityError reports whether err is the database refusing a quantity,
// either the row cap or an integer overflow.
func quantityError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.NumericValueOutOfRange ||
		(pgErr.Code == pgerrcode.CheckViolation && pgErr.ConstraintName == "chk_cart_items_quantity_max")
}

type Repository interface {
	Add(ctx context.Context, item *CartItem) error
	UpdateQuantity(ctx context.Context, id, userID uuid.UUID, quantity int) (*CartItem, error)
	Remove(ctx context.Context, id, userID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]CartLine, error)
	ListForCheckout(ctx context.Context, userID uuid.UUID) ([]CartLine, error)
	Clear(ctx context.Context, userID uuid.UUID) (int64, error)
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

const itemColumns = `id, user_id, product_id, quantity, size, color, created_at, updated_at`

func scanItem(row pgx.Row, item *CartItem) error {
	var size, color string
	err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &size, &color, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return err
	}
	item.Size = fromKey(size)
	item.Color = fromKey(color)
	return nil
}

// Add inserts the row or, when the (user, product, size, color) key exists,
// adds to its quantity in the same statement. Inactive or unknown products
// produce no row.
func (r *postgresRepository) Add(ctx context.Context, item *CartItem) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate cart item ID: %w", err)
	}

	query := `
		INSERT INTO cart_items (id, user_id, product_id, quantity, size, color, created_at, updated_at)
		SELECT $1::uuid, $2::uuid, p.id, $4::integer, $5::text, $6::text, $7::timestamptz, $7::timestamptz
		FROM products p
		WHERE p.id = $3 AND p.is_active = TRUE
		ON CONFLICT (user_id, product_id, size, color) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + itemColumns

	row := r.db.QueryRow(ctx, query,
		id, item.UserID, item.ProductID, item.Quantity, toKey(item.Size), toKey(item.Color), time.Now().UTC(),
	)
	if err := scanItem(row, item); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductUnavailable
		}
		if quantityError(err) {
			return ErrQuantityOutOfRange
		}
		return fmt.Errorf("repository: failed to upsert cart item: %w", err)
	}

	return nil
}

func (r *postgresRepository) UpdateQuantity(ctx context.Context, id, userID uuid.UUID, quantity int) (*CartItem, error) {
	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
		RETURNING ` + itemColumns

	var item CartItem
	if err := scanItem(r.db.QueryRow(ctx, query, quantity, time.Now().UTC(), id, userID), &item); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		if quantityError(err) {
			return nil, ErrQuantityOutOfRange
		}
		return nil, fmt.Errorf("repository: failed to update cart item %s: %w", id, err)
	}

	return &item, nil
}

func (r *postgresRepository) Remove(ctx context.Context, id, userID uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete cart item %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

const linesQuery = `
	SELECT c.id, c.user_id, c.product_id, c.quantity, c.size, c.color, c.created_at, c.updated_at,
		p.name, p.price, p.image_urls[1], p.stock, p.is_active
	FROM cart_items c
	JOIN products p ON p.id = c.product_id
	WHERE c.user_id = $1
	ORDER BY c.created_at, c.id
`

func (r *postgresRepository) List(ctx context.Context, userID uuid.UUID) ([]CartLine, error) {
	return r.lines(ctx, linesQuery, userID)
}

// ListForCheckout locks the caller's cart rows until the surrounding
// transaction ends. A concurrent checkout of the same cart waits and then
// sees the rows already gone.
func (r *postgresRepository) ListForCheckout(ctx context.Context, userID uuid.UUID) ([]CartLine, error) {
	return r.lines(ctx, linesQuery+" FOR UPDATE OF c", userID)
}

func (r *postgresRepository) lines(ctx context.Context, query string, userID uuid.UUID) ([]CartLine, error) {
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart for user %s: %w", userID, err)
	}
	defer rows.Close()

	lines := make([]CartLine, 0)
	for rows.Next() {
		var (
			line        CartLine
			size, color string
		)
		err := rows.Scan(
			&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &size, &color, &line.CreatedAt, &line.UpdatedAt,
			&line.Product.Name, &line.Product.Price, &line.Product.ImageURL, &line.Product.Stock, &line.Product.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart line for user %s: %w", userID, err)
		}
		line.Size = fromKey(size)
		line.Color = fromKey(color)
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart for user %s: %w", userID, err)
	}

	return lines, nil
}

func (r *postgresRepository) Clear(ctx context.Context, userID uuid.UUID) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to clear cart for user %s: %w", userID, err)
	}

	return cmdTag.RowsAffected(), nil
}
