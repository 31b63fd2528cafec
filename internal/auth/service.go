package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/tradyx/backoffice/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	cost int
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost used for new hashes.
func (s *Service) WithHashCost(cost int) {
	s.cost = cost
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the actor's password once the current one is
// confirmed.
func (s *Service) ChangePassword(ctx context.Context, actor shared.Actor, in PasswordChange) error {
	if actor.ID == 0 {
		return shared.Forbidden("An authenticated user is required")
	}
	if in.Current == "" || in.New == "" || in.Confirm == "" {
		return shared.Validation("All password fields are required")
	}
	user, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("User %d not found", actor.ID)
		}
		return shared.Classify(err, "Could not change the password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Current)); err != nil {
		return shared.Validation("Current password is incorrect")
	}
	if in.New != in.Confirm {
		return shared.Validation("New passwords do not match")
	}
	if len(in.New) < MinPasswordLength {
		return shared.Validation("Password must be at least %d characters", MinPasswordLength)
	}
	if len(in.New) > 72 {
		return shared.Validation("Password must be at most 72 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.New), s.cost)
	if err != nil {
		return shared.Storage("Could not change the password", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, actor.ID, string(hash)); err != nil {
		return shared.Classify(err, "Could not change the password")
	}
	return nil
}
