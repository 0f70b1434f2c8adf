package favorites

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/domain"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/storage"
)

func newTestStore(t *testing.T) *storage.MetaStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "favorites.db")
	store, err := storage.NewMetaStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestToggle_AddThenRemoveIsInvolution(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	l := Load(ctx, store, nil)

	if added := l.Toggle(ctx, domain.FavoriteCity, "Tokyo"); !added {
		t.Fatal("first toggle should add")
	}
	if !l.IsFavorite(domain.FavoriteCity, "Tokyo") {
		t.Fatal("Tokyo should be favorited")
	}

	if added := l.Toggle(ctx, domain.FavoriteCity, "Tokyo"); added {
		t.Fatal("second toggle should remove")
	}
	if l.IsFavorite(domain.FavoriteCity, "Tokyo") {
		t.Fatal("Tokyo should no longer be favorited")
	}

	// Persisted content is back to empty too.
	reloaded := Load(ctx, store, nil)
	if got := reloaded.Cities(); len(got) != 0 {
		t.Fatalf("reloaded cities = %v, want empty", got)
	}
}

func TestToggle_SetsAreIndependent(t *testing.T) {
	ctx := context.Background()
	l := Load(ctx, newTestStore(t), nil)

	l.Toggle(ctx, domain.FavoriteCity, "London")
	l.Toggle(ctx, domain.FavoriteCrypto, "bitcoin")

	if got := l.Cities(); len(got) != 1 || got[0] != "London" {
		t.Errorf("cities = %v", got)
	}
	if got := l.Cryptos(); len(got) != 1 || got[0] != "bitcoin" {
		t.Errorf("cryptos = %v", got)
	}
	if l.IsFavorite(domain.FavoriteCrypto, "London") {
		t.Error("London must not appear in the crypto set")
	}
}

func TestLoad_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	l := Load(ctx, store, nil)
	l.Toggle(ctx, domain.FavoriteCity, "New York")
	l.Toggle(ctx, domain.FavoriteCrypto, "ethereum")
	l.Toggle(ctx, domain.FavoriteCrypto, "dogecoin")

	reloaded := Load(ctx, store, nil)
	if got := reloaded.Cities(); len(got) != 1 || got[0] != "New York" {
		t.Errorf("cities = %v", got)
	}
	if got := reloaded.Cryptos(); len(got) != 2 {
		t.Errorf("cryptos = %v", got)
	}
}

func TestLoad_CorruptPayloadFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if err := store.Put(ctx, "favorites", "{not json", 1); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	l := Load(ctx, store, nil)
	if len(l.Cities()) != 0 || len(l.Cryptos()) != 0 {
		t.Fatal("corrupt payload must yield empty sets")
	}
}

// failingStorage always errors, to prove Load never surfaces failures.
type failingStorage struct{}

func (failingStorage) Put(ctx context.Context, key, value string, ts int64) error {
	return errors.New("disk on fire")
}
func (failingStorage) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("disk on fire")
}

func TestLoad_StorageFailureFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	l := Load(ctx, failingStorage{}, nil)

	if len(l.Cities()) != 0 {
		t.Fatal("storage failure must yield empty sets")
	}

	// Toggling still works in memory even when persistence fails.
	if added := l.Toggle(ctx, domain.FavoriteCrypto, "bitcoin"); !added {
		t.Fatal("toggle should still mutate in-memory state")
	}
}

func TestMetaStoreFilesOnDisk(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nexus.db")
	store, err := storage.NewMetaStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	l := Load(ctx, store, nil)
	l.Toggle(ctx, domain.FavoriteCity, "Tokyo")

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db file on disk: %v", err)
	}
}
