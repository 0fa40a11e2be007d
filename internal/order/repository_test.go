//go:build integration

package order_test

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
	"github.com/vasiliy-maslov/fashion-storefront/internal/cart"
	"github.com/vasiliy-maslov/fashion-storefront/internal/db"
	"github.com/vasiliy-maslov/fashion-storefront/internal/db/dbtest"
	"github.com/vasiliy-maslov/fashion-storefront/internal/order"
	"github.com/vasiliy-maslov/fashion-storefront/internal/user"
)

var pg *db.Postgres

func TestMain(m *testing.M) {
	var err error
	pg, err = dbtest.Open()
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	exitCode := m.Run()

	pg.Close()
	os.Exit(exitCode)
}

type env struct {
	orders order.Repository
	carts  cart.Repository
	users  user.Repository
}

func setup(t *testing.T) env {
	dbtest.Truncate(t, pg.Pool)
	return env{
		orders: order.NewRepository(pg.Pool),
		carts:  cart.NewRepository(pg.Pool),
		users:  user.NewRepository(pg.Pool),
	}
}

func (e env) draftFor(t *testing.T, userID uuid.UUID) order.DraftFunc {
	u, err := e.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return func(lines []cart.CartLine) (*order.Order, error) {
		return order.BuildOrder(u, lines, validInput(), fee)
	}
}

func (e env) addToCart(t *testing.T, userID, productID uuid.UUID, qty int) {
	require.NoError(t, e.carts.Add(context.Background(), &cart.CartItem{UserID: userID, ProductID: productID, Quantity: qty}))
}

func TestOrderRepository_PlaceOrder_MergedCart(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	userID := dbtest.SeedUser(t, pg.Pool, "Lan", "Nguyen")
	productA := dbtest.SeedProduct(t, pg.Pool, dbtest.ProductSeed{Name: "A", Price: decimal.NewFromInt(100000), Stock: 10})

	e.addToCart(t, userID, productA, 2)
	e.addToCart(t, userID, productA, 3)

	placed, err := e.orders.PlaceOrder(ctx, userID, e.draftFor(t, userID))
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(500000).Equal(placed.Subtotal))
	assert.True(t, decimal.NewFromInt(530000).Equal(placed.Total))
	assert.Equal(t, 5, dbtest.ProductStock(t, pg.Pool, productA))

	lines, err := e.carts.List(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	stored, err := e.orders.GetOrderByID(ctx, placed.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 5, stored.Items[0].Quantity)
	assert.Equal(t, "A", stored.Items[0].ProductName)
	assert.Equal(t, "Lan Nguyen", stored.CustomerName)
	assert.Equal(t, order.StatusPending, stored.Status)
}

func TestOrderRepository_PlaceOrder_EmptyCartCreatesNothing(t *testing.T) {
	e := setup(t)
	userID := dbtest.SeedUser(t, pg.Pool, "Empty", "Cart")

	before := dbtest.Count(t, pg.Pool, `SELECT COUNT(*) FROM orders`)

	_, err := e.orders.PlaceOrder(context.Background(), userID, e.draftFor(t, userID))
	require.ErrorIs(t, err, apperr.ErrEmptyCart)

	assert.Equal(t, before, dbtest.Count(t, pg.Pool, `SELECT COUNT(*) FROM orders`))
	assert.Zero(t, dbtest.Count(t, pg.Pool, `SELECT COUNT(*) FROM order_items`))
}

func TestOrderRepository_PlaceOrder_InsufficientStockRollsBack(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	userID := dbtest.SeedUser(t, pg.Pool, "Big", "Spender")
	plenty := dbtest.SeedProduct(t, pg.Pool, dbtest.ProductSeed{Name: "Plenty", Price: decimal.NewFromInt(1000), Stock: 50})
	scarce := dbtest.SeedProduct(t, pg.Pool, dbtest.ProductSeed{Name: "Scarce", Price: decimal.NewFromInt(1000), Stock: 1})

	e.addToCart(t, userID, plenty, 5)
	e.addToCart(t, userID, scarce, 2)

	_, err := e.orders.PlaceOrder(ctx, userID, e.draftFor(t, userID))
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	assert.Equal(t, 50, dbtest.ProductStock(t, pg.Pool, plenty), "partial decrement must roll back")
	assert.Equal(t, 1, dbtest.ProductStock(t, pg.Pool, scarce))
	assert.Zero(t, dbtest.Count(t, pg.Pool, `SELECT COUNT(*) FROM orders`))

	lines, err := e.carts.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, lines, 2, "cart survives a failed placement")
}

func TestOrderRepository_PlaceOrder_ConcurrentNoOversell(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	const buyers = 6
	const stock = 4
	productID := dbtest.SeedProduct(t, pg.Pool, dbtest.ProductSeed{Name: "Limited", Price: decimal.NewFromInt(500000), Stock: stock})

	userIDs := make([]uuid.UUID, buyers)
	drafts := make([]order.DraftFunc, buyers)
	for i := range userIDs {
		userIDs[i] = dbtest.SeedUser(t, pg.Pool, "Buyer", "N")
		e.addToCart(t, userIDs[i], productID, 1)
		drafts[i] = e.draftFor(t, userIDs[i])
	}

	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := range userIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.orders.PlaceOrder(ctx, userIDs[i], drafts[i])
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded, refused := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, apperr.ErrInsufficientStock):
			refused++
		}
	}

	assert.Equal(t, stock, succeeded)
	assert.Equal(t, buyers-stock, refused)
	assert.Zero(t, dbtest.ProductStock(t, pg.Pool, productID))
}

func TestOrderRepository_PriceLock(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	userID := dbtest.SeedUser(t, pg.Pool, "Price", "Lock")
	productID := dbtest.SeedProduct(t, pg.Pool, dbtest.ProductSeed{Name: "Jacket", Price: decimal.NewFromInt(800000), Stock: 3})
	e.addToCart(t, userID, productID, 1)

	placed, err := e.orders.PlaceOrder(ctx, userID, e.draftFor(t, userID))
	require.NoError(t, err)

	_, err = pg.Pool.Exec(ctx, `UPDATE products SET price = 999000 WHERE id = $1`, productID)
	require.NoError(t, err)

	stored, err := e.orders.GetOrderByID(ctx, placed.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(800000).Equal(stored.Items[0].Price))
	assert.True(t, decimal.NewFromInt(830000).Equal(stored.Total))
}

func TestOrderRepository_CancelRestoresStockOnce(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	userID := dbtest.SeedUser(t, pg.Pool, "Cancel", "Me")
	productB := dbtest.SeedProduct(t, pg.Pool, dbtest.ProductSeed{Name: "B", Price: decimal.NewFromInt(200000), Stock: 10})
	e.addToCart(t, userID, productB, 4)

	placed, err := e.orders.PlaceOrder(ctx, userID, e.draftFor(t, userID))
	require.NoError(t, err)
	require.Equal(t, 6, dbtest.ProductStock(t, pg.Pool, productB))

	_, err = e.orders.UpdateOrderStatus(ctx, placed.ID, order.StatusDelivered)
	require.NoError(t, err)

	change, err := e.orders.UpdateOrderStatus(ctx, placed.ID, order.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, change.StockRestored)
	assert.Equal(t, order.StatusDelivered, change.From)
	assert.Equal(t, 10, dbtest.ProductStock(t, pg.Pool, productB))

	change, err = e.orders.UpdateOrderStatus(ctx, placed.ID, order.StatusCancelled)
	require.NoError(t, err)
	assert.False(t, change.Changed())
	assert.Equal(t, 10, dbtest.ProductStock(t, pg.Pool, productB), "second cancel must not restore again")

	change, err = e.orders.UpdateOrderStatus(ctx, placed.ID, order.StatusPending)
	require.NoError(t, err)
	assert.True(t, change.StockReserved)
	assert.Equal(t, 6, dbtest.ProductStock(t, pg.Pool, productB))

	_, err = e.orders.UpdateOrderStatus(ctx, placed.ID, order.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 10, dbtest.ProductStock(t, pg.Pool, productB))
}

func TestOrderRepository_ReopenWithoutStock(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	userID := dbtest.SeedUser(t, pg.Pool, "Reopen", "Late")
	productID := dbtest.SeedProduct(t, pg.Pool, dbtest.ProductSeed{Name: "Last Dress", Price: decimal.NewFromInt(600000), Stock: 2})
	e.addToCart(t, userID, productID, 2)

	placed, err := e.orders.PlaceOrder(ctx, userID, e.draftFor(t, userID))
	require.NoError(t, err)

	_, err = e.orders.UpdateOrderStatus(ctx, placed.ID, order.StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, 2, dbtest.ProductStock(t, pg.Pool, productID))

	// someone else bought one of the returned units
	_, err = pg.Pool.Exec(ctx, `UPDATE products SET stock = 1 WHERE id = $1`, productID)
	require.NoError(t, err)

	_, err = e.orders.UpdateOrderStatus(ctx, placed.ID, order.StatusConfirmed)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	stored, err := e.orders.GetOrderByID(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, stored.Status)
	assert.Equal(t, 1, dbtest.ProductStock(t, pg.Pool, productID))
	assert.Equal(t, 1, dbtest.Count(t, pg.Pool, `SELECT COUNT(*) FROM orders WHERE id = $1 AND stock_restored`, placed.ID))
}

func TestOrderRepository_UpdateOrderStatus_NotFound(t *testing.T) {
	e := setup(t)

	_, err := e.orders.UpdateOrderStatus(context.Background(), uuid.Must(uuid.NewV4()), order.StatusShipped)
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestOrderRepository_Listings(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	alice := dbtest.SeedUser(t, pg.Pool, "Alice", "Pham")
	bob := dbtest.SeedUser(t, pg.Pool, "Bob", "Vo")
	productID := dbtest.SeedProduct(t, pg.Pool, dbtest.ProductSeed{Name: "Scarf", Price: decimal.NewFromInt(90000), Stock: 10})

	for _, userID := range []uuid.UUID{alice, alice, bob} {
		e.addToCart(t, userID, productID, 1)
		_, err := e.orders.PlaceOrder(ctx, userID, e.draftFor(t, userID))
		require.NoError(t, err)
	}

	own, err := e.orders.GetOrdersByUserID(ctx, alice)
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.False(t, own[0].CreatedAt.Before(own[1].CreatedAt), "newest first")
	for _, o := range own {
		assert.Len(t, o.Items, 1)
		assert.Nil(t, o.Customer)
	}

	all, err := e.orders.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, o := range all {
		require.NotNil(t, o.Customer)
		assert.Equal(t, o.UserID, o.Customer.ID)
		assert.Len(t, o.Items, 1)
	}

	none, err := e.orders.GetOrdersByUserID(ctx, uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	assert.Empty(t, none)
}
