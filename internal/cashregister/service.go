package cashregister

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tradyx/backoffice/internal/shared"
)

// RepositoryPort abstracts entry storage.
type RepositoryPort interface {
	Create(ctx context.Context, userID int64, in EntryInput) (Entry, error)
	Update(ctx context.Context, id int64, in EntryInput) (Entry, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
}

// Service manages the drawer ledger.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// Create records a drawer count for actor.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in EntryInput) (Entry, error) {
	if actor.ID == 0 {
		return Entry{}, shared.Forbidden("An authenticated user is required")
	}
	in, err := s.normalise(in)
	if err != nil {
		return Entry{}, err
	}
	e, err := s.repo.Create(ctx, actor.ID, in)
	if err != nil {
		return Entry{}, shared.Classify(err, "Could not save the cash register entry")
	}
	return e, nil
}

// Update replaces the amounts of an entry; the total is recomputed.
func (s *Service) Update(ctx context.Context, id int64, in EntryInput) (Entry, error) {
	in, err := s.normalise(in)
	if err != nil {
		return Entry{}, err
	}
	e, err := s.repo.Update(ctx, id, in)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return Entry{}, shared.NotFound("Cash register entry %d not found", id)
		}
		return Entry{}, shared.Classify(err, "Could not update the cash register entry")
	}
	return e, nil
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return shared.NotFound("Cash register entry %d not found", id)
		}
		return shared.Classify(err, "Could not delete the cash register entry")
	}
	return nil
}

// List returns the full history newest first.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, shared.Classify(err, "Could not load cash register entries")
	}
	return entries, nil
}

// Report totals transfers, cash and the grand total across the ledger.
func (s *Service) Report(ctx context.Context) (Report, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return Report{}, err
	}
	r := Report{Entries: entries, Count: len(entries)}
	for _, e := range entries {
		r.TotalTransfer += e.Transfer
		r.TotalCash += e.Cash
	}
	r.TotalTransfer = shared.RoundMoney(r.TotalTransfer)
	r.TotalCash = shared.RoundMoney(r.TotalCash)
	r.GrandTotal = shared.RoundMoney(r.TotalTransfer + r.TotalCash)
	return r, nil
}

func (s *Service) normalise(in EntryInput) (EntryInput, error) {
	in.Notes = strings.TrimSpace(in.Notes)
	if err := s.validate.Struct(in); err != nil {
		return EntryInput{}, shared.Validation("Amounts must be zero or greater")
	}
	in.Transfer = shared.RoundMoney(in.Transfer)
	in.Cash = shared.RoundMoney(in.Cash)
	return in, nil
}
