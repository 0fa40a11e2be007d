//go:build integration

// Package dbtest connects integration tests to a real PostgreSQL instance
// described by DB_*_TEST variables and seeds fixture rows.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/fashion-storefront/internal/config"
	"github.com/vasiliy-maslov/fashion-storefront/internal/db"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// Open connects to the test database and applies migrations.
func Open() (*db.Postgres, error) {
	cfg := config.PostgresConfig{
		Host:            getEnv("DB_HOST_TEST", "localhost"),
		Port:            getEnv("DB_PORT_TEST", "5432"),
		User:            getEnv("DB_USER_TEST", "postgres"),
		Password:        getEnv("DB_PASSWORD_TEST", "postgres"),
		DBName:          getEnv("DB_NAME_TEST", "storefront_test"),
		SSLMode:         getEnv("DB_SSLMODE_TEST", "disable"),
		MaxConns:        20,
		MinConns:        2,
		MaxConnLifetime: 5 * time.Minute,
		MigrationsPath:  migrationsPath(),
	}

	pg, err := db.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	if err := db.ApplyMigrations(pg.Pool, cfg); err != nil {
		pg.Close()
		return nil, err
	}

	return pg, nil
}

// Truncate clears every table before the test and again on cleanup.
func Truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	truncate := func() {
		_, err := pool.Exec(context.Background(),
			"TRUNCATE TABLE reviews, order_items, orders, cart_items, products, categories, shipping_rates, users CASCADE")
		if err != nil {
			t.Fatalf("Failed to truncate tables: %v", err)
		}
	}

	truncate()
	t.Cleanup(truncate)
}

func SeedUser(t *testing.T, pool *pgxpool.Pool, firstName, lastName string) uuid.UUID {
	t.Helper()

	id := uuid.Must(uuid.NewV4())
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, first_name, last_name, email, role) VALUES ($1, $2, $3, $4, 'customer')`,
		id, firstName, lastName, id.String()+"@example.com")
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}

	return id
}

type ProductSeed struct {
	Name     string
	Price    decimal.Decimal
	Stock    int
	Inactive bool
	Featured bool
}

func SeedProduct(t *testing.T, pool *pgxpool.Pool, p ProductSeed) uuid.UUID {
	t.Helper()

	id := uuid.Must(uuid.NewV4())
	_, err := pool.Exec(context.Background(),
		`INSERT INTO products (id, name, slug, price, stock, is_active, is_featured, image_urls)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, p.Name, id.String(), p.Price, p.Stock, !p.Inactive, p.Featured, []string{"/uploads/" + id.String() + ".jpg"})
	if err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}

	return id
}

func ProductStock(t *testing.T, pool *pgxpool.Pool, productID uuid.UUID) int {
	t.Helper()

	var stock int
	err := pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if err != nil {
		t.Fatalf("Failed to read stock: %v", err)
	}

	return stock
}

func Count(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()

	var n int
	if err := pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count: %v", err)
	}

	return n
}

// SeedOrder inserts an order in the given status holding one line of
// productID. Stock is left untouched.
func SeedOrder(t *testing.T, pool *pgxpool.Pool, userID, productID uuid.UUID, status string) uuid.UUID {
	t.Helper()

	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	_, err := pool.Exec(ctx,
		`INSERT INTO orders (id, user_id, status, subtotal, shipping_fee, total,
		                     customer_name, customer_phone, customer_email, shipping_address)
		 VALUES ($1, $2, $3, 100000, 30000, 130000, 'Seed', '0900000000', 'seed@example.com', '1 Le Loi')`,
		id, userID, status)
	if err != nil {
		t.Fatalf("Failed to seed order: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, price) VALUES ($1, $2, 1, 100000)`,
		id, productID)
	if err != nil {
		t.Fatalf("Failed to seed order item: %v", err)
	}

	return id
}
