package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tradyx/backoffice/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Create(ctx context.Context, in ProductInput) (Product, error)
	Update(ctx context.Context, id int64, in ProductInput) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, query string) ([]Product, error)
	LowStock(ctx context.Context, threshold int) ([]Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	LowStockThreshold int
}

// Service coordinates product ledger maintenance.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	validate  *validator.Validate
	threshold int
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	threshold := cfg.LowStockThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return &Service{repo: repo, audit: audit, validate: validator.New(), threshold: threshold, now: time.Now}
}

// LowStockThreshold exposes the configured threshold.
func (s *Service) LowStockThreshold() int {
	return s.threshold
}

// Create adds a product to the ledger.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in ProductInput) (Product, error) {
	in = normalise(in)
	if err := s.check(in); err != nil {
		return Product{}, err
	}
	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return Product{}, shared.Classify(err, "Could not add the product")
	}
	s.record(ctx, actor, "inventory:create", p.ID, map[string]any{"name": p.Name, "quantity": p.Quantity})
	return p, nil
}

// Update edits name, price, unit measure and stock of a product.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, in ProductInput) (Product, error) {
	if id <= 0 {
		return Product{}, shared.Validation("Product id is required")
	}
	in = normalise(in)
	if err := s.check(in); err != nil {
		return Product{}, err
	}
	p, err := s.repo.Update(ctx, id, in)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, shared.NotFound("Product %d not found", id)
		}
		return Product{}, shared.Classify(err, "Could not update the product")
	}
	s.record(ctx, actor, "inventory:update", p.ID, map[string]any{"name": p.Name, "quantity": p.Quantity, "price": p.Price})
	return p, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, shared.NotFound("Product %d not found", id)
		}
		return Product{}, shared.Classify(err, "Could not load the product")
	}
	return p, nil
}

// List returns products ordered by name.
func (s *Service) List(ctx context.Context, query string) ([]Product, error) {
	products, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, shared.Classify(err, "Could not load products")
	}
	return products, nil
}

// LowStock lists products at or below threshold; a non-positive threshold
// uses the configured one.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]Product, error) {
	if threshold <= 0 {
		threshold = s.threshold
	}
	products, err := s.repo.LowStock(ctx, threshold)
	if err != nil {
		return nil, shared.Classify(err, "Could not load low stock products")
	}
	return products, nil
}

// Delete removes a product together with every sale that references it.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) (DeleteSummary, error) {
	if id <= 0 {
		return DeleteSummary{}, shared.Validation("Product id is required")
	}
	var summary DeleteSummary
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockProduct(ctx, id)
		if err != nil {
			return err
		}
		removed, err := tx.DeleteSalesForProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteProduct(ctx, id); err != nil {
			return err
		}
		summary = DeleteSummary{Product: p, SalesRemoved: removed}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return DeleteSummary{}, shared.NotFound("Product %d not found", id)
		}
		return DeleteSummary{}, shared.Classify(err, "Could not delete the product")
	}
	s.record(ctx, actor, "inventory:delete", id, map[string]any{"name": summary.Product.Name, "sales_removed": summary.SalesRemoved})
	return summary, nil
}

// Report summarises units and stock value across the ledger.
func (s *Service) Report(ctx context.Context) (Report, error) {
	products, err := s.repo.List(ctx, "")
	if err != nil {
		return Report{}, shared.Classify(err, "Could not build the inventory report")
	}
	report := Report{Date: s.now().Format("2006-01-02"), Products: products, ProductCount: len(products)}
	for _, p := range products {
		report.TotalUnits += p.Quantity
		report.TotalValue += p.Price * float64(p.Quantity)
		if p.Quantity <= s.threshold {
			report.LowStockCount++
		}
	}
	report.TotalValue = shared.RoundMoney(report.TotalValue)
	return report, nil
}

func (s *Service) check(in ProductInput) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return shared.Validation("%s", fieldMessage(verrs[0]))
		}
		return shared.Validation("Invalid product")
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

func normalise(in ProductInput) ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.UnitMeasure = strings.TrimSpace(in.UnitMeasure)
	in.Price = shared.RoundMoney(in.Price)
	return in
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Tag() == "max" {
		return fe.Field() + " is too long"
	}
	switch fe.Field() {
	case "Name":
		return "Product name is required"
	case "UnitMeasure":
		return "Unit of measure is required"
	case "Price":
		return "Price must be zero or greater"
	case "Quantity":
		return "Quantity must be zero or greater"
	default:
		return "Invalid product"
	}
}
