package shipping

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/fashion-storefront/internal/db"
)

type Repository interface {
	ListRates(ctx context.Context) ([]Rate, error)
	// ReplaceRates deletes every stored rate and inserts rates in one transaction.
	ReplaceRates(ctx context.Context, rates []Rate) ([]Rate, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const selectRates = `SELECT id, province, district, ward, rate, created_at, updated_at FROM shipping_rates ORDER BY province, district NULLS FIRST, ward NULLS FIRST`

func (r *postgresRepository) ListRates(ctx context.Context) ([]Rate, error) {
	return queryRates(ctx, r.pool)
}

func (r *postgresRepository) ReplaceRates(ctx context.Context, rates []Rate) (out []Rate, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback shipping rates transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM shipping_rates`); err != nil {
		return nil, fmt.Errorf("repository: failed to clear shipping rates: %w", err)
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, rate := range rates {
		id, genErr := uuid.NewV4()
		if genErr != nil {
			return nil, fmt.Errorf("repository: failed to generate rate ID: %w", genErr)
		}
		batch.Queue(
			`INSERT INTO shipping_rates (id, province, district, ward, rate, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $6)`,
			id, rate.Province, rate.District, rate.Ward, rate.Rate, now,
		)
	}
	if batch.Len() > 0 {
		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("repository: failed to insert shipping rates: %w", err)
		}
	}

	out, err = queryRates(ctx, tx)
	return out, err
}

func queryRates(ctx context.Context, q db.Querier) ([]Rate, error) {
	rows, err := q.Query(ctx, selectRates)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query shipping rates: %w", err)
	}
	defer rows.Close()

	rates := make([]Rate, 0)
	for rows.Next() {
		var rate Rate
		if err := rows.Scan(&rate.ID, &rate.Province, &rate.District, &rate.Ward, &rate.Rate, &rate.CreatedAt, &rate.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan shipping rate: %w", err)
		}
		rates = append(rates, rate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating shipping rates: %w", err)
	}

	return rates, nil
}
