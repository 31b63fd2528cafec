package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradyx/backoffice/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, username, passwordHash, role string) (User, error)
	CountAdmins(ctx context.Context) (int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	validate *validator.Validate
	cost     int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, validate: validator.New(), cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost, mainly to keep tests fast.
func (s *Service) WithHashCost(cost int) {
	s.cost = cost
}

// ListUsers returns all users ordered by role then username.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, shared.Classify(err, "Could not load users")
	}
	return users, nil
}

// Lookup resolves an account into the actor used by core operations.
func (s *Service) Lookup(ctx context.Context, id int64) (shared.Actor, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return shared.Actor{}, shared.NotFound("User %d not found", id)
		}
		return shared.Actor{}, err
	}
	return shared.Actor{ID: u.ID, Username: u.Username, Role: u.Role}, nil
}

// CreateUser registers a new account with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, actor shared.Actor, in CreateInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Role = strings.TrimSpace(strings.ToLower(in.Role))
	if err := s.validate.Struct(in); err != nil {
		return User{}, validationError(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, shared.Storage("Could not create the user", err)
	}
	u, err := s.repo.CreateUser(ctx, in.Username, string(hash), in.Role)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return User{}, shared.Validation("Username %s already exists", in.Username)
		}
		return User{}, shared.Classify(err, "Could not create the user")
	}
	s.record(ctx, actor, "users:create", u.ID, map[string]any{"username": u.Username, "role": u.Role})
	return u, nil
}

// DeleteUser removes an account together with every sale it recorded. An
// actor can never delete their own account.
func (s *Service) DeleteUser(ctx context.Context, actor shared.Actor, id int64) (DeleteSummary, error) {
	if actor.ID != 0 && actor.ID == id {
		return DeleteSummary{}, shared.ForbiddenSelf("You cannot delete your own account")
	}
	if id <= 0 {
		return DeleteSummary{}, shared.Validation("User id is required")
	}
	var summary DeleteSummary
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		u, err := tx.LockUser(ctx, id)
		if err != nil {
			return err
		}
		removed, err := tx.DeleteSalesByUser(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteUser(ctx, id); err != nil {
			return err
		}
		summary = DeleteSummary{User: u, SalesRemoved: removed}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return DeleteSummary{}, shared.NotFound("User %d not found", id)
		}
		return DeleteSummary{}, shared.Classify(err, "Could not delete the user")
	}
	s.record(ctx, actor, "users:delete", id, map[string]any{"username": summary.User.Username, "sales_removed": summary.SalesRemoved})
	return summary, nil
}

// EnsureAdmin creates the bootstrap admin account when no admin exists yet.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return false, nil
	}
	n, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return false, fmt.Errorf("users: count admins: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateUser(ctx, shared.Actor{}, CreateInput{Username: username, Password: password, Role: shared.RoleAdmin}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       time.Now(),
	})
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return shared.Validation("Invalid user")
	}
	switch verrs[0].Field() {
	case "Username":
		return shared.Validation("Username must be between 3 and 64 characters")
	case "Password":
		return shared.Validation("Password must be at least %d characters", MinPasswordLength)
	case "Role":
		return shared.Validation("Role must be admin or user")
	default:
		return shared.Validation("Invalid user")
	}
}
