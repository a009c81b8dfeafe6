package cloud

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/vantrack/vantrack-core/internal/infrastructure/database"
	_ "github.com/vantrack/vantrack-core/migrations"
)

func testStore(t *testing.T) *SessionStore {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "vantrack.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSessionStore(db)
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "fleet@example.com", []byte(`[{"Name":"session","Value":"abc"}]`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "fleet@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != `[{"Name":"session","Value":"abc"}]` {
		t.Errorf("Load() = %q", got)
	}

	// Save for an existing username replaces the blob.
	if err := store.Save(ctx, "fleet@example.com", []byte(`[]`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err = store.Load(ctx, "fleet@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != `[]` {
		t.Errorf("Load() after replace = %q", got)
	}
}

func TestSessionStoreMissing(t *testing.T) {
	store := testStore(t)
	if _, err := store.Load(context.Background(), "nobody"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() error = %v, want ErrNoSession", err)
	}
}

func TestSessionStoreDelete(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "fleet@example.com", []byte(`[]`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "fleet@example.com"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, "fleet@example.com"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() after delete error = %v, want ErrNoSession", err)
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, "fleet@example.com"); err != nil {
		t.Errorf("Delete() of absent row error = %v", err)
	}
}
