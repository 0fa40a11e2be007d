package shipping

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
)

type Service interface {
	// Fee is the flat shipping fee added to every order.
	Fee() decimal.Decimal
	ListRates(ctx context.Context) ([]Rate, error)
	ReplaceRates(ctx context.Context, rates []Rate) ([]Rate, error)
}

type service struct {
	repo Repository
	fee  decimal.Decimal
}

// NewService builds the shipping service around a flat fee in VND.
func NewService(repo Repository, flatFee int64) Service {
	return &service{repo: repo, fee: decimal.NewFromInt(flatFee)}
}

func (s *service) Fee() decimal.Decimal {
	return s.fee
}

func (s *service) ListRates(ctx context.Context) ([]Rate, error) {
	rates, err := s.repo.ListRates(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list shipping rates")
		return nil, fmt.Errorf("service: failed to list shipping rates: %w", err)
	}

	return rates, nil
}

func (s *service) ReplaceRates(ctx context.Context, rates []Rate) ([]Rate, error) {
	var invalid []string
	for i := range rates {
		rates[i].Province = strings.TrimSpace(rates[i].Province)
		rates[i].District = blankToNil(rates[i].District)
		rates[i].Ward = blankToNil(rates[i].Ward)

		if rates[i].Province == "" {
			invalid = append(invalid, "rates["+strconv.Itoa(i)+"].province")
		}
		if rates[i].Rate.IsNegative() {
			invalid = append(invalid, "rates["+strconv.Itoa(i)+"].rate")
		}
	}
	if len(invalid) > 0 {
		return nil, apperr.NewValidationError("invalid shipping rates", invalid...)
	}

	stored, err := s.repo.ReplaceRates(ctx, rates)
	if err != nil {
		log.Error().Err(err).Int("count", len(rates)).Msg("service: failed to replace shipping rates")
		return nil, fmt.Errorf("service: failed to replace shipping rates: %w", err)
	}

	log.Info().Int("count", len(stored)).Msg("service: shipping rates replaced")
	return stored, nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
