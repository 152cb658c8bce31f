package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cesargomez89/artshelf/internal/domain"
)

func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	db, err := NewSQLiteDB(tmpFile)
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	cleanup := func() {
		if cErr := db.Close(); cErr != nil {
			t.Logf("db.Close error: %v", cErr)
		}
	}
	return db, cleanup
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("/tmp/a.db")
	for _, want := range []string{"busy_timeout(30000)", "journal_mode(WAL)", "foreign_keys(1)", "_txlock=immediate"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("Expected DSN to contain %s, got %s", want, dsn)
		}
	}
	if !strings.HasPrefix(dsn, "/tmp/a.db?") {
		t.Errorf("Expected DSN to start with path and ?, got %s", dsn)
	}

	dsn = buildDSN("file:a.db?mode=rwc")
	if !strings.HasPrefix(dsn, "file:a.db?mode=rwc&") {
		t.Errorf("Expected existing query to be extended, got %s", dsn)
	}
}

func TestNewSQLiteDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	db, err := NewSQLiteDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Enqueue(context.Background(), domain.MetadataPayload{FilePath: "/a.procreate"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Schema application is idempotent and data survives.
	db, err = NewSQLiteDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	count, err := db.PendingCount(context.Background(), domain.QueueTypeMetadata)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 pending item after reopen, got %d", count)
	}
	if db.Path() != path {
		t.Errorf("Expected path %s, got %s", path, db.Path())
	}
}

func TestRunInTx_Rollback(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.RunInTx(ctx, func(tx *DB) error {
		if _, err := tx.Enqueue(ctx, domain.MetadataPayload{FilePath: "/a.procreate"}); err != nil {
			return err
		}
		// nested call joins the outer transaction
		return tx.RunInTx(ctx, func(inner *DB) error {
			if _, err := inner.Enqueue(ctx, domain.MetadataPayload{FilePath: "/b.procreate"}); err != nil {
				return err
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	count, _ := db.PendingCount(ctx, domain.QueueTypeMetadata)
	if count != 0 {
		t.Errorf("Expected rollback to leave 0 items, got %d", count)
	}
}

func TestRunInTx_Commit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Enqueue(ctx, domain.MetadataPayload{FilePath: "/a.procreate"})
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}
	count, _ := db.PendingCount(ctx, domain.QueueTypeMetadata)
	if count != 1 {
		t.Errorf("Expected 1 item, got %d", count)
	}
}
