package testutil

import (
	"path/filepath"
	"testing"

	"github.com/nhle/craftnotify/internal/store"
)

// NewTestStore creates an in-memory journal with all migrations applied.
// It is closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return openStore(t, ":memory:")
}

// NewFileStore creates a journal backed by a file in the test's temp dir,
// for tests that reopen the same database.
func NewFileStore(t *testing.T) (*store.SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	return openStore(t, path), path
}

func openStore(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
