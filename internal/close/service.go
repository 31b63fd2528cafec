package close

import (
	"context"
	"fmt"
	"time"

	"github.com/tradyx/backoffice/internal/shared"
)

// RepositoryPort abstracts close storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListRecords(ctx context.Context, limit int) ([]DailySalesRecord, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Recorder receives close metrics.
type Recorder interface {
	DailyCloseCompleted(total float64)
}

// Service runs the end-of-day close.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics Recorder
	money   shared.MoneyFormatter
	loc     *time.Location
	now     func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo RepositoryPort, audit AuditPort, money shared.MoneyFormatter, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, audit: audit, money: money, loc: loc, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithRecorder attaches close metrics.
func (s *Service) WithRecorder(r Recorder) {
	s.metrics = r
}

// Close archives today's journal total, clears today's sales and resets
// every product's daily counter in one transaction. A day without sales
// archives nothing and still resets the counters.
func (s *Service) Close(ctx context.Context, actor shared.Actor) (Summary, error) {
	if actor.ID == 0 {
		return Summary{}, shared.Forbidden("An authenticated user is required")
	}
	var (
		out Summary
		now time.Time
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockProducts(ctx); err != nil {
			return err
		}
		// The business day is fixed once the locks are held; waiting on a
		// sale across midnight closes the new day.
		now = s.now().In(s.loc)
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
		dayEnd := dayStart.AddDate(0, 0, 1)
		out = Summary{Date: dayStart.Format(DateLayout)}

		totals, err := tx.DeleteSales(ctx, dayStart, dayEnd)
		if err != nil {
			return err
		}
		var sum float64
		for _, t := range totals {
			sum += t
		}
		out.Total = shared.RoundMoney(sum)
		out.SalesPurged = len(totals)

		if out.Total > 0 {
			rec, err := tx.InsertRecord(ctx, DailySalesRecord{
				Date:         out.Date,
				Total:        out.Total,
				ClosedBy:     actor.ID,
				ClosedByName: actor.Username,
				CreatedAt:    now,
			})
			if err != nil {
				return err
			}
			out.Record = &rec
			out.Recorded = true
		}

		reset, err := tx.ResetDailyCounters(ctx)
		if err != nil {
			return err
		}
		out.ProductsReset = reset
		return nil
	})
	if err != nil {
		return Summary{}, shared.Classify(err, "Could not complete the daily close")
	}

	if out.Recorded {
		out.Message = fmt.Sprintf("Daily close completed. Total recorded: %s", s.money.Format(out.Total))
	} else {
		out.Message = "Daily close completed. No sales recorded today"
	}

	if s.metrics != nil {
		s.metrics.DailyCloseCompleted(out.Total)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "sales:close",
			Entity:   "daily_close",
			EntityID: out.Date,
			Meta: map[string]any{
				"total":          out.Total,
				"sales_purged":   out.SalesPurged,
				"products_reset": out.ProductsReset,
			},
			At: now,
		})
	}
	return out, nil
}

// ListRecords returns archived close records newest first.
func (s *Service) ListRecords(ctx context.Context, limit int) ([]DailySalesRecord, error) {
	if limit <= 0 || limit > 365 {
		limit = 90
	}
	records, err := s.repo.ListRecords(ctx, limit)
	if err != nil {
		return nil, shared.Classify(err, "Could not load close records")
	}
	return records, nil
}
