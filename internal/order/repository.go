package order

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
	"github.com/vasiliy-maslov/fashion-storefront/internal/cart"
	"github.com/vasiliy-maslov/fashion-storefront/internal/db"
)

var (
	ErrOrderNotFound       = fmt.Errorf("order %w", apperr.ErrNotFound)
	ErrEmptyCart           = fmt.Errorf("cannot place order: %w", apperr.ErrEmptyCart)
	ErrInsufficientStock   = fmt.Errorf("cannot place order: %w", apperr.ErrInsufficientStock)
	ErrProductUnavailable  = fmt.Errorf("product is no longer available: %w", apperr.ErrNotFound)
	ErrDuplicateSubmission = fmt.Errorf("order already submitted with this idempotency key: %w", apperr.ErrConflict)
)

// DraftFunc builds the order from the cart lines read inside the placement
// transaction. Returning an error aborts the transaction.
type DraftFunc func(lines []cart.CartLine) (*Order, error)

type Repository interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, draft DraftFunc) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, newStatus Status) (StatusChange, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// inTx runs fn in a transaction, rolling back on error or panic.
func (r *postgresRepository) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Str("op", op).Msg("Panic recovered in transaction, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("op", op).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("op", op).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Str("op", op).Msg("Failed to commit transaction")
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	return fn(tx)
}

// PlaceOrder converts the user's cart into an order in one transaction:
// lock cart rows, build the draft, insert order and items, take stock with a
// conditional decrement, clear the cart. Any failure leaves nothing behind.
func (r *postgresRepository) PlaceOrder(ctx context.Context, userID uuid.UUID, draft DraftFunc) (*Order, error) {
	var placed *Order

	err := r.inTx(ctx, "place_order", func(tx pgx.Tx) error {
		carts := cart.NewRepository(tx)

		lines, err := carts.ListForCheckout(ctx, userID)
		if err != nil {
			return err
		}

		o, err := draft(lines)
		if err != nil {
			return err
		}

		if err := insertOrder(ctx, tx, o); err != nil {
			return err
		}

		for i := range o.Items {
			if err := insertItem(ctx, tx, o.ID, &o.Items[i]); err != nil {
				return err
			}
		}

		// fixed product order keeps concurrent checkouts from deadlocking
		byProduct := slices.Clone(o.Items)
		slices.SortFunc(byProduct, func(a, b OrderItem) int {
			return bytes.Compare(a.ProductID.Bytes(), b.ProductID.Bytes())
		})
		for _, item := range byProduct {
			if err := takeStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if _, err := carts.Clear(ctx, userID); err != nil {
			return err
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return placed, nil
}

func insertOrder(ctx context.Context, q db.Querier, o *Order) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate order ID: %w", err)
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO orders (id, user_id, status, payment_method, payment_status, subtotal, shipping_fee, total,
			customer_name, customer_phone, customer_email, shipping_address, shipping_province,
			shipping_district, shipping_ward, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
	`
	_, err = q.Exec(ctx, query,
		id, o.UserID, string(o.Status), string(o.PaymentMethod), o.PaymentStatus, o.Subtotal, o.ShippingFee, o.Total,
		o.CustomerName, o.CustomerPhone, o.CustomerEmail, o.ShippingAddress, o.ShippingProvince,
		o.ShippingDistrict, o.ShippingWard, o.Notes, now,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	o.ID = id
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

func insertItem(ctx context.Context, q db.Querier, orderID uuid.UUID, item *OrderItem) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate order item ID: %w", err)
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO order_items (id, order_id, product_id, quantity, price, size, color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = q.Exec(ctx, query, id, orderID, item.ProductID, item.Quantity, item.Price, item.Size, item.Color, now)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order item for order %s: %w", orderID, err)
	}

	item.ID = id
	item.OrderID = orderID
	item.CreatedAt = now
	return nil
}

func takeStock(ctx context.Context, q db.Querier, productID uuid.UUID, quantity int) error {
	cmdTag, err := q.Exec(ctx,
		`UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("repository: failed to decrement stock for product %s: %w", productID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %s", ErrInsufficientStock, productID)
	}

	return nil
}

const orderColumns = `
	o.id, o.user_id, o.status, o.payment_method, o.payment_status, o.subtotal, o.shipping_fee, o.total,
	o.customer_name, o.customer_phone, o.customer_email, o.shipping_address, o.shipping_province,
	o.shipping_district, o.shipping_ward, o.notes, o.created_at, o.updated_at
`

func orderFields(o *Order) []any {
	return []any{
		&o.ID, &o.UserID, &o.Status, &o.PaymentMethod, &o.PaymentStatus, &o.Subtotal, &o.ShippingFee, &o.Total,
		&o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.ShippingAddress, &o.ShippingProvince,
		&o.ShippingDistrict, &o.ShippingWard, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	}
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id).Scan(orderFields(&o)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	orders := []*Order{&o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *postgresRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.user_id = $1 ORDER BY o.created_at DESC`
	return r.listOrders(ctx, query, false, userID)
}

// ListOrders returns every order with its customer, newest first.
func (r *postgresRepository) ListOrders(ctx context.Context) ([]Order, error) {
	query := `
		SELECT ` + orderColumns + `, u.id, u.first_name, u.last_name, u.email
		FROM orders o
		JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
	`
	return r.listOrders(ctx, query, true)
}

func (r *postgresRepository) listOrders(ctx context.Context, query string, withCustomer bool, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersList := make([]*Order, 0)
	for rows.Next() {
		var o Order
		fields := orderFields(&o)
		if withCustomer {
			o.Customer = &Customer{}
			fields = append(fields, &o.Customer.ID, &o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Email)
		}
		if err := rows.Scan(fields...); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		ordersList = append(ordersList, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders: %w", err)
	}

	if err := r.attachItems(ctx, ordersList); err != nil {
		return nil, err
	}

	result := make([]Order, 0, len(ordersList))
	for _, o := range ordersList {
		result = append(result, *o)
	}

	return result, nil
}

// attachItems loads the items of all given orders in one query.
func (r *postgresRepository) attachItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		o.Items = make([]OrderItem, 0)
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	query := `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, p.image_urls[1], oi.quantity, oi.price,
			oi.size, oi.color, oi.created_at
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.created_at, oi.id
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ProductImage, &item.Quantity,
			&item.Price, &item.Size, &item.Color, &item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to scan order item: %w", err)
		}

		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: failed iterating order items: %w", err)
	}

	return nil
}

// UpdateOrderStatus sets the status with the order row locked. Entering
// cancelled returns the items to stock once; leaving cancelled takes the
// stock again, failing when it is no longer there.
func (r *postgresRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, newStatus Status) (StatusChange, error) {
	change := StatusChange{OrderID: id, To: newStatus}

	err := r.inTx(ctx, "update_order_status", func(tx pgx.Tx) error {
		var restored bool
		err := tx.QueryRow(ctx, `SELECT status, stock_restored FROM orders WHERE id = $1 FOR UPDATE`, id).
			Scan(&change.From, &restored)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("repository: failed to lock order %s: %w", id, err)
		}

		if !change.Changed() {
			return nil
		}

		switch {
		case newStatus == StatusCancelled && !restored:
			if err := restoreStock(ctx, tx, id); err != nil {
				return err
			}
			restored = true
			change.StockRestored = true
		case change.From == StatusCancelled && restored:
			if err := reserveStock(ctx, tx, id); err != nil {
				return err
			}
			restored = false
			change.StockReserved = true
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $1, stock_restored = $2, updated_at = $3 WHERE id = $4`,
			string(newStatus), restored, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("repository: failed to update order status %s: %w", id, err)
		}

		return nil
	})
	if err != nil {
		return StatusChange{}, err
	}

	return change, nil
}

func restoreStock(ctx context.Context, q db.Querier, orderID uuid.UUID) error {
	query := `
		UPDATE products p
		SET stock = p.stock + s.qty, updated_at = NOW()
		FROM (
			SELECT product_id, SUM(quantity) AS qty
			FROM order_items
			WHERE order_id = $1
			GROUP BY product_id
		) s
		WHERE p.id = s.product_id
	`
	if _, err := q.Exec(ctx, query, orderID); err != nil {
		return fmt.Errorf("repository: failed to restore stock for order %s: %w", orderID, err)
	}
	return nil
}

func reserveStock(ctx context.Context, q db.Querier, orderID uuid.UUID) error {
	rows, err := q.Query(ctx,
		`SELECT product_id, SUM(quantity)::int FROM order_items WHERE order_id = $1 GROUP BY product_id ORDER BY product_id`,
		orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to read items of order %s: %w", orderID, err)
	}

	type need struct {
		productID uuid.UUID
		quantity  int
	}
	var needs []need
	for rows.Next() {
		var n need
		if err := rows.Scan(&n.productID, &n.quantity); err != nil {
			rows.Close()
			return fmt.Errorf("repository: failed to scan item of order %s: %w", orderID, err)
		}
		needs = append(needs, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: failed iterating items of order %s: %w", orderID, err)
	}

	for _, n := range needs {
		if err := takeStock(ctx, q, n.productID, n.quantity); err != nil {
			return err
		}
	}

	return nil
}
