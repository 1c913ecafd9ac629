package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/examhall-backend/internal/model"
)

// UserService handles admin-side user management.
type UserService struct {
	users UserStore
	log   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, log zerolog.Logger) *UserService {
	return &UserService{users: users, log: log.With().Str("component", "user_service").Logger()}
}

// List returns every account.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// GetByID looks up a user, mapping a missing row to ErrUserNotFound.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Promote changes a user's role.
func (s *UserService) Promote(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	u, err := s.users.UpdateRole(ctx, id, role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", id.String()).Str("role", string(role)).Msg("User role changed")
	return u, nil
}

// UpdatePlan changes a user's subscription plan.
func (s *UserService) UpdatePlan(ctx context.Context, id uuid.UUID, plan model.Plan) (*model.User, error) {
	u, err := s.users.UpdatePlan(ctx, id, plan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}
