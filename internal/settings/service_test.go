package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tradyx/backoffice/internal/platform/cache"
	"github.com/tradyx/backoffice/internal/shared"
)

type memoryRepo struct {
	current Settings
	gets    int
	failGet bool
}

func (m *memoryRepo) Get(context.Context) (Settings, error) {
	m.gets++
	if m.failGet {
		return Settings{}, errors.New("db down")
	}
	return m.current, nil
}

func (m *memoryRepo) Update(_ context.Context, s Settings) error {
	m.current.CompanyName, m.current.Currency = s.CompanyName, s.Currency
	m.current.DateFormat, m.current.Language = s.DateFormat, s.Language
	return nil
}

func (m *memoryRepo) SetDarkMode(_ context.Context, enabled bool) error {
	m.current.DarkMode = enabled
	return nil
}

func (m *memoryRepo) Info(context.Context) (SystemInfo, error) {
	return SystemInfo{Users: 2, Products: 9}, nil
}

func newCache(t *testing.T) *cache.JSONCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewJSONCache(client, "test:settings:", time.Minute)
}

func TestGetIsCached(t *testing.T) {
	repo := &memoryRepo{current: Defaults()}
	svc := NewService(repo, newCache(t), nil)
	ctx := context.Background()

	first, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Tradyx", first.CompanyName)

	_, err = svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.gets)
}

func TestUpdateInvalidatesCacheAndFillsDefaults(t *testing.T) {
	repo := &memoryRepo{current: Defaults()}
	svc := NewService(repo, newCache(t), nil)
	ctx := context.Background()
	_, err := svc.Get(ctx)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, UpdateInput{CompanyName: " Acme ", Currency: "", Language: "EN"})
	require.NoError(t, err)
	require.Equal(t, "Acme", updated.CompanyName)
	require.Equal(t, "$", updated.Currency)
	require.Equal(t, "en", updated.Language)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Acme", got.CompanyName)
}

func TestUpdateRejectsUnknownLanguage(t *testing.T) {
	svc := NewService(&memoryRepo{current: Defaults()}, nil, nil)
	_, err := svc.Update(context.Background(), UpdateInput{Language: "fr"})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestToggleDarkMode(t *testing.T) {
	repo := &memoryRepo{current: Defaults()}
	svc := NewService(repo, newCache(t), nil)
	ctx := context.Background()
	_, err := svc.Get(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.ToggleDarkMode(ctx, true))
	got, err := svc.Get(ctx)
	require.NoError(t, err)
	require.True(t, got.DarkMode)
}

func TestGetStorageFailure(t *testing.T) {
	svc := NewService(&memoryRepo{failGet: true}, newCache(t), nil)
	_, err := svc.Get(context.Background())
	require.Equal(t, shared.KindStorage, shared.KindOf(err))
	require.Equal(t, "Could not load settings", shared.UserSafeMessage(err))
}
