package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tradyx/backoffice/internal/shared"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	customer := Customer{Name: req.Name, Email: req.Email, Phone: req.Phone}
	id, err := s.repo.Create(ctx, customer)
	if err != nil {
		return nil, shared.Classify(err, "Could not add the customer")
	}
	return s.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	updates := make(map[string]any)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, shared.Validation("Customer name is required")
		}
		req.Name = &name
		updates["name"] = name
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" {
			if err := s.validate.Var(email, "email"); err != nil {
				return nil, shared.Validation("Email address is not valid")
			}
		}
		updates["email"] = email
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	if len(updates) == 0 {
		return s.Get(ctx, id)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, id, updates)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, shared.NotFound("Customer %d not found", id)
		}
		return nil, shared.Classify(err, "Could not update the customer")
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return shared.NotFound("Customer %d not found", id)
		}
		return shared.Classify(err, "Could not delete the customer")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, shared.NotFound("Customer %d not found", id)
		}
		return nil, shared.Classify(err, "Could not load the customer")
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	if req.Limit <= 0 || req.Limit > 1000 {
		req.Limit = 200
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	req.Search = strings.TrimSpace(req.Search)
	customers, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, 0, shared.Classify(err, "Could not load customers")
	}
	return customers, total, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Name":
			return shared.Validation("Customer name is required")
		case "Email":
			return shared.Validation("Email address is not valid")
		case "Phone":
			return shared.Validation("Phone number is too long")
		}
	}
	return shared.Validation("Invalid customer data")
}
