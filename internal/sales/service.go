package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tradyx/backoffice/internal/shared"
)

const idempotencyModule = "sales"

// RepositoryPort abstracts the sale journal storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListSales(ctx context.Context, filter ListFilter) ([]SaleView, error)
	SumSales(ctx context.Context, from, to time.Time) (float64, error)
	DailyReport(ctx context.Context) ([]DailyReportLine, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]Product, error)
	LowStock(ctx context.Context, threshold, limit int) ([]Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort claims request keys for batch submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Release(ctx context.Context, key, module string) error
}

// Recorder receives domain counters.
type Recorder interface {
	SalesRecorded(lines int)
	SaleReversed()
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Location          *time.Location
	LowStockThreshold int
}

// Service records and reverses sales against the product ledger.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	idem     IdempotencyPort
	metrics  Recorder
	validate *validator.Validate
	loc      *time.Location
	lowStock int
	now      func() time.Time
}

// NewService builds Service. audit and idem may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cfg ServiceConfig) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	threshold := cfg.LowStockThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		idem:     idem,
		validate: validator.New(),
		loc:      loc,
		lowStock: threshold,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithRecorder attaches domain metrics.
func (s *Service) WithRecorder(r Recorder) {
	s.metrics = r
}

// RecordSale records a single-product sale for actor.
func (s *Service) RecordSale(ctx context.Context, actor shared.Actor, in SingleInput) (Sale, error) {
	if actor.ID == 0 {
		return Sale{}, shared.Forbidden("An authenticated user is required")
	}
	if err := s.validate.Struct(in); err != nil {
		return Sale{}, shared.Validation("Quantity must be a positive whole number and a product must be selected")
	}
	outcomes, err := s.record(ctx, actor, in.Customer, []LineInput{{ProductID: in.ProductID, Quantity: in.Quantity}}, false)
	if err != nil {
		return Sale{}, err
	}
	o := outcomes[0]
	return Sale{
		ID:        o.SaleID,
		Customer:  customerLabel(in.Customer),
		Total:     o.Total,
		Quantity:  o.Quantity,
		SoldAt:    o.soldAt,
		UserID:    actor.ID,
		ProductID: o.ProductID,
	}, nil
}

// RecordBatch records every line of in as one atomic unit. When a line fails
// nothing is committed and the returned error carries the line number.
func (s *Service) RecordBatch(ctx context.Context, actor shared.Actor, in BatchInput, idempotencyKey string) ([]LineOutcome, error) {
	if actor.ID == 0 {
		return nil, shared.Forbidden("An authenticated user is required")
	}
	if len(in.Items) == 0 {
		return nil, shared.Validation("At least one item is required")
	}
	for i, item := range in.Items {
		if item.ProductID <= 0 {
			return nil, shared.Validation("Product is required").AtLine(i+1, 0)
		}
		if item.Quantity <= 0 {
			return nil, shared.Validation("Quantity must be greater than zero").AtLine(i+1, item.ProductID)
		}
	}

	key := strings.TrimSpace(idempotencyKey)
	if key != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, shared.Validation("This sale was already submitted")
			}
			return nil, shared.Classify(err, "Could not record the sale")
		}
	}

	outcomes, err := s.record(ctx, actor, in.Customer, in.Items, true)
	if err != nil {
		if key != "" && s.idem != nil {
			// The request may already be cancelled; the key must still be freed for a retry.
			_ = s.idem.Release(context.WithoutCancel(ctx), key, idempotencyModule)
		}
		return nil, err
	}

	public := make([]LineOutcome, len(outcomes))
	for i, o := range outcomes {
		public[i] = o.LineOutcome
	}
	return public, nil
}

type recordedLine struct {
	LineOutcome
	soldAt time.Time
}

func (s *Service) record(ctx context.Context, actor shared.Actor, customer string, items []LineInput, batch bool) ([]recordedLine, error) {
	label := customerLabel(customer)
	var soldAt time.Time
	outcomes := make([]recordedLine, 0, len(items))

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids := make([]int64, len(items))
		for i, item := range items {
			ids[i] = item.ProductID
		}
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}
		// Stamped after the locks so a sale that waited behind a close lands in the next day.
		soldAt = s.now()

		for i, item := range items {
			product, ok := products[item.ProductID]
			if !ok {
				return lineErr(shared.Validation("Product %d does not exist", item.ProductID), batch, i, item.ProductID)
			}
			if item.Quantity > product.Quantity {
				return lineErr(shared.InsufficientStock(product.ID, product.Name, product.Quantity), batch, i, item.ProductID)
			}

			sale, err := tx.InsertSale(ctx, Sale{
				Customer:  label,
				Total:     shared.RoundMoney(product.Price * float64(item.Quantity)),
				Quantity:  item.Quantity,
				SoldAt:    soldAt,
				UserID:    actor.ID,
				ProductID: product.ID,
			})
			if err != nil {
				return err
			}
			updated, err := tx.AdjustProduct(ctx, product.ID, -item.Quantity, item.Quantity)
			if err != nil {
				return err
			}
			products[product.ID] = updated

			outcomes = append(outcomes, recordedLine{
				LineOutcome: LineOutcome{
					SaleID:      sale.ID,
					ProductID:   product.ID,
					ProductName: product.Name,
					Quantity:    item.Quantity,
					Total:       sale.Total,
					NewStock:    updated.Quantity,
				},
				soldAt: sale.SoldAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, shared.Classify(err, "Could not record the sale")
	}

	if s.metrics != nil {
		s.metrics.SalesRecorded(len(outcomes))
	}
	if batch && s.audit != nil {
		saleIDs := make([]int64, len(outcomes))
		for i, o := range outcomes {
			saleIDs[i] = o.SaleID
		}
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "sales:batch",
			Entity:   "sale_batch",
			EntityID: uuid.NewString(),
			Meta: map[string]any{
				"customer": label,
				"sale_ids": saleIDs,
			},
			At: soldAt,
		})
	}
	return outcomes, nil
}

func lineErr(err *shared.Error, batch bool, index int, productID int64) *shared.Error {
	if !batch {
		return err
	}
	return err.AtLine(index+1, productID)
}

// ReverseSale deletes a sale and restores the stock and daily counter it
// consumed. A sale whose product has been deleted is still removed.
func (s *Service) ReverseSale(ctx context.Context, actor shared.Actor, saleID int64) (Sale, error) {
	if actor.ID == 0 {
		return Sale{}, shared.Forbidden("An authenticated user is required")
	}
	if saleID <= 0 {
		return Sale{}, shared.Validation("Sale id is required")
	}

	var (
		sale     Sale
		restored bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Product rows are locked before sale rows everywhere, so the sale is
		// read unlocked to learn its product and locked only afterwards.
		found, err := tx.FindSale(ctx, saleID)
		if err != nil {
			if errors.Is(err, ErrSaleNotFound) {
				return shared.NotFound("Sale %d not found", saleID)
			}
			return err
		}
		products, err := tx.LockProducts(ctx, []int64{found.ProductID})
		if err != nil {
			return err
		}
		sale, err = tx.LockSale(ctx, saleID)
		if err != nil {
			if errors.Is(err, ErrSaleNotFound) {
				return shared.NotFound("Sale %d not found", saleID)
			}
			return err
		}
		if _, ok := products[sale.ProductID]; ok {
			if _, err := tx.AdjustProduct(ctx, sale.ProductID, sale.Quantity, -sale.Quantity); err != nil {
				return err
			}
			restored = true
		}
		if err := tx.DeleteSale(ctx, sale.ID); err != nil {
			if errors.Is(err, ErrSaleNotFound) {
				return shared.NotFound("Sale %d not found", saleID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return Sale{}, shared.Classify(err, "Could not delete the sale")
	}

	if s.metrics != nil {
		s.metrics.SaleReversed()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "sales:reverse",
			Entity:   "sale",
			EntityID: fmt.Sprintf("%d", sale.ID),
			Meta: map[string]any{
				"product_id":     sale.ProductID,
				"quantity":       sale.Quantity,
				"total":          sale.Total,
				"stock_restored": restored,
			},
			At: s.now(),
		})
	}
	return sale, nil
}

// ListSales returns journal rows newest first.
func (s *Service) ListSales(ctx context.Context, filter ListFilter) ([]SaleView, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 200
	}
	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, shared.Classify(err, "Could not load sales")
	}
	return sales, nil
}

// RecentFeed returns the latest sales with product and user names.
func (s *Service) RecentFeed(ctx context.Context, limit int) ([]SaleView, error) {
	if limit <= 0 || limit > DefaultFeedLimit {
		limit = DefaultFeedLimit
	}
	return s.ListSales(ctx, ListFilter{Limit: limit})
}

// TodayTotal sums the journal for the current calendar day.
func (s *Service) TodayTotal(ctx context.Context) (float64, error) {
	from, to := DayBounds(s.now(), s.loc)
	total, err := s.repo.SumSales(ctx, from, to)
	if err != nil {
		return 0, shared.Classify(err, "Could not compute today's total")
	}
	return shared.RoundMoney(total), nil
}

// DailyReport reports units sold per product since the last close.
func (s *Service) DailyReport(ctx context.Context) (DailyReport, error) {
	lines, err := s.repo.DailyReport(ctx)
	if err != nil {
		return DailyReport{}, shared.Classify(err, "Could not build the daily report")
	}
	report := DailyReport{Date: s.now().In(s.loc).Format(DateLayout), Lines: lines}
	for i := range report.Lines {
		line := &report.Lines[i]
		line.Total = shared.RoundMoney(line.Price * float64(line.DailySales))
		report.Total += line.Total
	}
	report.Total = shared.RoundMoney(report.Total)
	return report, nil
}

// SearchProducts looks products up by name for the POS screen.
func (s *Service) SearchProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	products, err := s.repo.SearchProducts(ctx, query, limit)
	if err != nil {
		return nil, shared.Classify(err, "Could not search products")
	}
	return products, nil
}

// Overview loads the POS landing data concurrently.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.TodayTotal(gctx)
		out.TodayTotal = total
		return err
	})
	g.Go(func() error {
		feed, err := s.RecentFeed(gctx, DefaultFeedLimit)
		out.Feed = feed
		return err
	})
	g.Go(func() error {
		low, err := s.repo.LowStock(gctx, s.lowStock, 20)
		if err != nil {
			return shared.Classify(err, "Could not load low stock products")
		}
		out.LowStock = low
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}
