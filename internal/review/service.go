package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
)

type Service interface {
	CanReview(ctx context.Context, userID, productID uuid.UUID) (Eligibility, error)
	SubmitReview(ctx context.Context, userID, productID uuid.UUID, rating int, comment *string) (*Review, error)
	ListReviews(ctx context.Context, productID uuid.UUID) ([]Review, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CanReview(ctx context.Context, userID, productID uuid.UUID) (Eligibility, error) {
	eligibility, _, err := s.check(ctx, userID, productID)
	return eligibility, err
}

// check evaluates both gate conditions and returns the qualifying order
// when the caller may review.
func (s *service) check(ctx context.Context, userID, productID uuid.UUID) (Eligibility, *uuid.UUID, error) {
	reviewed, err := s.repo.HasReviewed(ctx, userID, productID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Stringer("product_id", productID).Msg("service: failed to check existing review")
		return Eligibility{}, nil, fmt.Errorf("service: failed to check review eligibility: %w", err)
	}
	if reviewed {
		return Eligibility{CanReview: false, Reason: ReasonAlreadyReviewed}, nil, nil
	}

	orderID, err := s.repo.FindDeliveredOrder(ctx, userID, productID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Stringer("product_id", productID).Msg("service: failed to look up delivered order")
		return Eligibility{}, nil, fmt.Errorf("service: failed to check review eligibility: %w", err)
	}
	if orderID == nil {
		return Eligibility{CanReview: false, Reason: ReasonNotPurchased}, nil, nil
	}

	return Eligibility{CanReview: true}, orderID, nil
}

func (s *service) SubmitReview(ctx context.Context, userID, productID uuid.UUID, rating int, comment *string) (*Review, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, apperr.NewValidationError("rating must be between 1 and 5", "rating")
	}

	eligibility, orderID, err := s.check(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanReview {
		log.Warn().Stringer("user_id", userID).Stringer("product_id", productID).Str("reason", eligibility.Reason).Msg("service: review rejected")
		if eligibility.Reason == ReasonAlreadyReviewed {
			return nil, ErrDuplicateReview
		}
		return nil, ErrNotEligible
	}

	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		comment = &trimmed
		if trimmed == "" {
			comment = nil
		}
	}

	// isVerified stays false: nothing in the purchase flow marks reviews verified yet.
	rev := &Review{
		ProductID: productID,
		UserID:    userID,
		OrderID:   orderID,
		Rating:    rating,
		Comment:   comment,
	}

	if err := s.repo.Create(ctx, rev); err != nil {
		if errors.Is(err, ErrDuplicateReview) || errors.Is(err, ErrProductNotFound) {
			log.Warn().Err(err).Stringer("user_id", userID).Stringer("product_id", productID).Msg("service: review insert rejected")
			return nil, err
		}
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to create review")
		return nil, fmt.Errorf("service: failed to create review: %w", err)
	}

	log.Info().Stringer("review_id", rev.ID).Stringer("product_id", productID).Int("rating", rating).Msg("service: review created")
	return rev, nil
}

func (s *service) ListReviews(ctx context.Context, productID uuid.UUID) ([]Review, error) {
	reviews, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to list reviews")
		return nil, fmt.Errorf("service: failed to list reviews: %w", err)
	}

	return reviews, nil
}
