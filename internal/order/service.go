package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
	"github.com/vasiliy-maslov/fashion-storefront/internal/cart"
	"github.com/vasiliy-maslov/fashion-storefront/internal/events"
	"github.com/vasiliy-maslov/fashion-storefront/internal/idempotency"
	"github.com/vasiliy-maslov/fashion-storefront/internal/user"
)

// UserReader is the part of the user store the engine needs for snapshots.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// FeePolicy supplies the shipping fee charged on a new order.
type FeePolicy interface {
	Fee() decimal.Decimal
}

const publishTimeout = 2 * time.Second

type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, in PlaceOrderInput) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) (*Order, error)
}

type service struct {
	orderRepo Repository
	users     UserReader
	fees      FeePolicy
	publisher events.Publisher
	keys      idempotency.Store
}

func NewService(orderRepo Repository, users UserReader, fees FeePolicy, publisher events.Publisher, keys idempotency.Store) Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if keys == nil {
		keys = idempotency.NopStore{}
	}
	return &service{
		orderRepo: orderRepo,
		users:     users,
		fees:      fees,
		publisher: publisher,
		keys:      keys,
	}
}

func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, in PlaceOrderInput) (placed *Order, err error) {
	if in.IdempotencyKey != "" {
		key := "order:" + userID.String() + ":" + in.IdempotencyKey
		claimed, claimErr := s.keys.Claim(ctx, key)
		if claimErr != nil {
			// не блокируем оформление заказа, если Redis недоступен
			log.Error().Err(claimErr).Stringer("user_id", userID).Msg("service: idempotency store unavailable, continuing")
		} else if !claimed {
			log.Warn().Stringer("user_id", userID).Str("idempotency_key", in.IdempotencyKey).Msg("service: duplicate order submission")
			return nil, ErrDuplicateSubmission
		} else {
			defer func() {
				if err == nil {
					return
				}
				if relErr := s.keys.Release(context.WithoutCancel(ctx), key); relErr != nil {
					log.Error().Err(relErr).Stringer("user_id", userID).Msg("service: failed to release idempotency key")
				}
			}()
		}
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			log.Warn().Stringer("user_id", userID).Msg("service: order placement for unknown user")
			return nil, user.ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to load user for order")
		return nil, fmt.Errorf("service: failed to load user for order: %w", err)
	}

	fee := s.fees.Fee()
	placed, err = s.orderRepo.PlaceOrder(ctx, userID, func(lines []cart.CartLine) (*Order, error) {
		return BuildOrder(u, lines, in, fee)
	})
	if err != nil {
		if isBusinessError(err) {
			log.Warn().Err(err).Stringer("user_id", userID).Msg("service: order placement rejected")
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to place order in repository")
		return nil, fmt.Errorf("service: failed to place order: %w", err)
	}

	log.Info().
		Stringer("order_id", placed.ID).
		Stringer("user_id", userID).
		Str("total", placed.Total.String()).
		Int("items", len(placed.Items)).
		Msg("service: order placed")

	s.publish(ctx, events.OrderEvent{
		Type:    events.TypeOrderCreated,
		OrderID: placed.ID,
		UserID:  placed.UserID,
		Status:  placed.Status.String(),
		Total:   placed.Total.String(),
	})

	return placed, nil
}

func isBusinessError(err error) bool {
	for _, kind := range []error{
		apperr.ErrEmptyCart,
		apperr.ErrValidation,
		apperr.ErrInsufficientStock,
		apperr.ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}

		log.Error().Err(err).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return o, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, nil
}

func (s *service) ListOrders(ctx context.Context) ([]Order, error) {
	orders, err := s.orderRepo.ListOrders(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to fetch all orders in repository")
		return nil, fmt.Errorf("service: failed to fetch orders: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus lets an admin move an order to any known status.
// Setting the current status again changes nothing.
func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) (*Order, error) {
	if !newStatus.Valid() {
		log.Warn().Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: unknown order status")
		return nil, apperr.NewValidationError("unknown order status "+newStatus.String(), "status")
	}

	change, err := s.orderRepo.UpdateOrderStatus(ctx, orderID, newStatus)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: order not found, cannot update status")
			return nil, ErrOrderNotFound
		}
		if errors.Is(err, apperr.ErrInsufficientStock) {
			log.Warn().Err(err).Stringer("order_id", orderID).Msg("service: cannot reopen cancelled order, stock is gone")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: failed to update order status in repository")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	if !change.Changed() {
		log.Info().Stringer("order_id", orderID).Stringer("status", newStatus).Msg("service: order status is already the same, no update needed")
	} else {
		log.Info().
			Stringer("order_id", orderID).
			Stringer("old_status", change.From).
			Stringer("new_status", change.To).
			Bool("stock_restored", change.StockRestored).
			Bool("stock_reserved", change.StockReserved).
			Msg("service: order status updated successfully")

		s.publish(ctx, events.OrderEvent{
			Type:           events.TypeOrderStatusChanged,
			OrderID:        orderID,
			Status:         change.To.String(),
			PreviousStatus: change.From.String(),
		})
	}

	return s.GetOrderByID(ctx, orderID)
}

// publish never fails the request; the order is already committed.
// The write outlives a client disconnect but is bounded by publishTimeout.
func (s *service) publish(ctx context.Context, event events.OrderEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Stringer("order_id", event.OrderID).Msg("service: failed to publish order event")
	}
}
