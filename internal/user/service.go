package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
	"github.com/vasiliy-maslov/fashion-storefront/internal/auth"
)

type Service interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SyncProfile(ctx context.Context, u *User) (*User, error)
	UpdateUserRole(ctx context.Context, id uuid.UUID, role auth.Role) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Stringer("user_id", id).Msg("service: user not found by id")
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to get user by id")
		return nil, fmt.Errorf("service: failed to get user by id: %w", err)
	}

	return u, nil
}

func (s *service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list users")
		return nil, fmt.Errorf("service: failed to list users: %w", err)
	}

	return users, nil
}

func (s *service) SyncProfile(ctx context.Context, u *User) (*User, error) {
	if u.ID == uuid.Nil {
		return nil, apperr.NewValidationError("user id is required", "id")
	}
	if u.Email == "" {
		return nil, apperr.NewValidationError("missing required fields", "email")
	}

	if err := s.repo.Upsert(ctx, u); err != nil {
		if errors.Is(err, ErrEmailExists) {
			log.Warn().Stringer("user_id", u.ID).Msg("service: email belongs to another user")
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("service: failed to sync user profile")
		return nil, fmt.Errorf("service: failed to sync user profile: %w", err)
	}

	return u, nil
}

func (s *service) UpdateUserRole(ctx context.Context, id uuid.UUID, role auth.Role) error {
	if !role.Valid() {
		return apperr.NewValidationError("role must be customer or admin", "role")
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Stringer("user_id", id).Msg("service: user not found, cannot update role")
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to update user role")
		return fmt.Errorf("service: failed to update user role: %w", err)
	}

	log.Info().Stringer("user_id", id).Str("role", string(role)).Msg("service: user role updated")
	return nil
}
