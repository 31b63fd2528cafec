package settings

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tradyx/backoffice/internal/shared"
)

const cacheKey = "company"

// RepositoryPort abstracts settings storage.
type RepositoryPort interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, s Settings) error
	SetDarkMode(ctx context.Context, enabled bool) error
	Info(ctx context.Context) (SystemInfo, error)
}

// Cache is the read-through cache in front of the repository.
type Cache interface {
	Fetch(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Invalidate(ctx context.Context, key string) error
}

// Service serves cached company settings.
type Service struct {
	repo     RepositoryPort
	cache    Cache
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, validate: validator.New()}
}

// Get returns the current settings.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	if s.cache == nil {
		return s.load(ctx)
	}
	var out Settings
	err := s.cache.Fetch(ctx, cacheKey, &out, func(ctx context.Context) (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		var loadErr *shared.Error
		if errors.As(err, &loadErr) {
			return Settings{}, err
		}
		s.logger.Warn("settings cache unavailable", slog.Any("error", err))
		return s.load(ctx)
	}
	return out, nil
}

// Update validates and stores the general settings.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Settings, error) {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Currency = strings.TrimSpace(in.Currency)
	in.DateFormat = strings.TrimSpace(in.DateFormat)
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	if err := s.validate.Struct(in); err != nil {
		return Settings{}, shared.Validation("Invalid settings")
	}

	current, err := s.load(ctx)
	if err != nil {
		return Settings{}, err
	}
	def := Defaults()
	current.CompanyName = orDefault(in.CompanyName, def.CompanyName)
	current.Currency = orDefault(in.Currency, def.Currency)
	current.DateFormat = orDefault(in.DateFormat, def.DateFormat)
	current.Language = orDefault(in.Language, def.Language)

	if err := s.repo.Update(ctx, current); err != nil {
		return Settings{}, shared.Classify(err, "Could not save settings")
	}
	s.invalidate(ctx)
	return s.load(ctx)
}

// ToggleDarkMode records the global dark mode preference.
func (s *Service) ToggleDarkMode(ctx context.Context, enabled bool) error {
	if err := s.repo.SetDarkMode(ctx, enabled); err != nil {
		return shared.Classify(err, "Could not save dark mode")
	}
	s.invalidate(ctx)
	return nil
}

// Info returns installation counters.
func (s *Service) Info(ctx context.Context) (SystemInfo, error) {
	info, err := s.repo.Info(ctx)
	if err != nil {
		return SystemInfo{}, shared.Classify(err, "Could not load system information")
	}
	return info, nil
}

func (s *Service) load(ctx context.Context) (Settings, error) {
	out, err := s.repo.Get(ctx)
	if err != nil {
		return Settings{}, shared.Classify(err, "Could not load settings")
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cacheKey); err != nil {
		s.logger.Warn("settings cache invalidate failed", slog.Any("error", err))
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
