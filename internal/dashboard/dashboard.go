// Package dashboard serves the admin overview counters.
package dashboard

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Stats struct {
	TotalOrders    int             `db:"total_orders" json:"totalOrders"`
	TotalRevenue   decimal.Decimal `db:"total_revenue" json:"totalRevenue"`
	TotalCustomers int             `db:"total_customers" json:"totalCustomers"`
	TotalProducts  int             `db:"total_products" json:"totalProducts"`
	PendingOrders  int             `db:"pending_orders" json:"pendingOrders"`
}

type Repository interface {
	GetStats(ctx context.Context) (*Stats, error)
}

type sqlxRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlxRepository{db: db}
}

// Revenue excludes cancelled orders; every other status counts.
const statsQuery = `
	SELECT
		(SELECT COUNT(*) FROM orders) AS total_orders,
		(SELECT COALESCE(SUM(total), 0) FROM orders WHERE status <> 'cancelled') AS total_revenue,
		(SELECT COUNT(*) FROM users WHERE role = 'customer') AS total_customers,
		(SELECT COUNT(*) FROM products) AS total_products,
		(SELECT COUNT(*) FROM orders WHERE status = 'pending') AS pending_orders
`

func (r *sqlxRepository) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := r.db.GetContext(ctx, &stats, statsQuery); err != nil {
		return nil, fmt.Errorf("repository: failed to load dashboard stats: %w", err)
	}

	return &stats, nil
}

type Service interface {
	GetStats(ctx context.Context) (*Stats, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetStats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load dashboard stats")
		return nil, fmt.Errorf("service: failed to load dashboard stats: %w", err)
	}

	return stats, nil
}
