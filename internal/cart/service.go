package cart

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
	AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int, size, color *string) (*CartItem, error)
	// UpdateQuantity returns a nil item when quantity <= 0 removed the row.
	UpdateQuantity(ctx context.Context, id, userID uuid.UUID, quantity int) (*CartItem, error)
	Remove(ctx context.Context, id, userID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]CartLine, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func normalizeOption(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *service) AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int, size, color *string) (*CartItem, error) {
	var fields []string
	if productID == uuid.Nil {
		fields = append(fields, "productId")
	}
	if quantity < 1 || quantity > MaxQuantity {
		fields = append(fields, "quantity")
	}
	if len(fields) > 0 {
		return nil, apperr.NewValidationError("invalid cart item", fields...)
	}

	item := &CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		Size:      normalizeOption(size),
		Color:     normalizeOption(color),
	}

	if err := s.repo.Add(ctx, item); err != nil {
		if errors.Is(err, ErrProductUnavailable) {
			log.Warn().Stringer("user_id", userID).Stringer("product_id", productID).Msg("service: add to cart for unavailable product")
			return nil, ErrProductUnavailable
		}
		if errors.Is(err, ErrQuantityOutOfRange) {
			log.Warn().Stringer("user_id", userID).Stringer("product_id", productID).Msg("service: merged cart quantity over the limit")
			return nil, ErrQuantityOutOfRange
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to add item to cart")
		return nil, fmt.Errorf("service: failed to add item to cart: %w", err)
	}

	return item, nil
}

func (s *service) UpdateQuantity(ctx context.Context, id, userID uuid.UUID, quantity int) (*CartItem, error) {
	if quantity <= 0 {
		if err := s.Remove(ctx, id, userID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if quantity > MaxQuantity {
		return nil, ErrQuantityOutOfRange
	}

	item, err := s.repo.UpdateQuantity(ctx, id, userID, quantity)
	if err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			log.Warn().Stringer("cart_item_id", id).Stringer("user_id", userID).Msg("service: cart item not found for caller")
			return nil, ErrCartItemNotFound
		}
		if errors.Is(err, ErrQuantityOutOfRange) {
			return nil, ErrQuantityOutOfRange
		}
		log.Error().Err(err).Stringer("cart_item_id", id).Msg("service: failed to update cart item")
		return nil, fmt.Errorf("service: failed to update cart item: %w", err)
	}

	return item, nil
}

func (s *service) Remove(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.repo.Remove(ctx, id, userID); err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			log.Warn().Stringer("cart_item_id", id).Stringer("user_id", userID).Msg("service: cart item not found for caller")
			return ErrCartItemNotFound
		}
		log.Error().Err(err).Stringer("cart_item_id", id).Msg("service: failed to remove cart item")
		return fmt.Errorf("service: failed to remove cart item: %w", err)
	}

	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]CartLine, error) {
	lines, err := s.repo.List(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to list cart")
		return nil, fmt.Errorf("service: failed to list cart: %w", err)
	}

	return lines, nil
}
