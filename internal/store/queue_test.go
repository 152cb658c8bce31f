package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cesargomez89/artshelf/internal/domain"
)

func TestQueue_EnqueueDeduplicatesActive(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := domain.MetadataPayload{FilePath: "/art/a.procreate"}
	added, err := db.Enqueue(ctx, p)
	if err != nil || !added {
		t.Fatalf("Expected first enqueue to add, got added=%v err=%v", added, err)
	}
	added, err = db.Enqueue(ctx, p)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if added {
		t.Error("Expected duplicate pending enqueue to be ignored")
	}

	// Same payload in a different queue is a different item.
	added, _ = db.Enqueue(ctx, domain.ColorTagPayload{FileHash: "/art/a.procreate"})
	if !added {
		t.Error("Expected different queue type to be accepted")
	}

	item, err := db.ClaimNext(ctx, domain.QueueTypeMetadata, "w1")
	if err != nil || item == nil {
		t.Fatalf("ClaimNext failed: item=%v err=%v", item, err)
	}
	added, _ = db.Enqueue(ctx, p)
	if added {
		t.Error("Expected duplicate of processing item to be ignored")
	}

	if err := db.Complete(ctx, item.ID, "w1"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	added, _ = db.Enqueue(ctx, p)
	if !added {
		t.Error("Expected enqueue to succeed once the previous item completed")
	}
}

func TestQueue_EnqueueRejectsInvalidPayload(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := db.Enqueue(context.Background(), domain.VectorPayload{})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Errorf("Expected ErrInvalidPayload, got %v", err)
	}
}

func TestQueue_ClaimOrderAndLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for _, path := range []string{"/a", "/b", "/c"} {
		if _, err := db.Enqueue(ctx, domain.MetadataPayload{FilePath: path}); err != nil {
			t.Fatalf("Enqueue %s failed: %v", path, err)
		}
	}

	item, err := db.ClaimNext(ctx, domain.QueueTypeMetadata, "worker-1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if item.Payload != `{"file_path":"/a"}` {
		t.Errorf("Expected oldest item first, got %s", item.Payload)
	}
	if item.Status != domain.QueueStatusProcessing {
		t.Errorf("Expected status processing, got %s", item.Status)
	}
	if item.LockedAt == nil || item.LockedBy.String != "worker-1" {
		t.Errorf("Expected lock fields set, got %v %v", item.LockedAt, item.LockedBy)
	}

	if err := db.Fail(ctx, item.ID, "worker-1", "extractor exploded"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	failed, err := db.GetQueueItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetQueueItem failed: %v", err)
	}
	if failed.Status != domain.QueueStatusFailed {
		t.Errorf("Expected failed, got %s", failed.Status)
	}
	if failed.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", failed.RetryCount)
	}
	if failed.ErrorMessage.String != "extractor exploded" {
		t.Errorf("Expected error message recorded, got %q", failed.ErrorMessage.String)
	}
	if failed.LockedAt != nil || failed.LockedBy.Valid {
		t.Error("Expected lock cleared on failure")
	}

	next, _ := db.ClaimNext(ctx, domain.QueueTypeMetadata, "worker-1")
	if next == nil || next.Payload != `{"file_path":"/b"}` {
		t.Fatalf("Expected /b next, got %+v", next)
	}
	if err := db.Complete(ctx, next.ID, "worker-1"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	done, _ := db.GetQueueItem(ctx, next.ID)
	if done.Status != domain.QueueStatusCompleted || done.CompletedAt == nil {
		t.Errorf("Expected completed with completed_at, got %s %v", done.Status, done.CompletedAt)
	}

	count, _ := db.PendingCount(ctx, domain.QueueTypeMetadata)
	if count != 1 {
		t.Errorf("Expected 1 pending, got %d", count)
	}
}

func TestQueue_ClaimEmpty(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	item, err := db.ClaimNext(context.Background(), domain.QueueTypeVector, "w")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if item != nil {
		t.Errorf("Expected nil item on empty queue, got %+v", item)
	}
}

func TestQueue_MissingItem(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := db.GetQueueItem(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := db.Complete(ctx, 42, "w"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from Complete, got %v", err)
	}
	if err := db.Fail(ctx, 42, "w", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from Fail, got %v", err)
	}
}

func TestQueue_ConcurrentClaimAtMostOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	const items = 40
	for i := 0; i < items; i++ {
		if _, err := db.Enqueue(ctx, domain.MetadataPayload{FilePath: fmt.Sprintf("/art/%d.procreate", i)}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	// Separate pools behave like separate processes sharing the file.
	const workers = 4
	conns := make([]*DB, workers)
	for i := range conns {
		c, err := NewSQLiteDB(db.Path())
		if err != nil {
			t.Fatalf("open worker db: %v", err)
		}
		defer c.Close()
		conns[i] = c
	}

	var (
		mu      sync.Mutex
		claimed = make(map[int64]string)
		wg      sync.WaitGroup
	)
	for i, c := range conns {
		wg.Add(1)
		go func(worker string, c *DB) {
			defer wg.Done()
			for {
				item, err := c.ClaimNext(ctx, domain.QueueTypeMetadata, worker)
				if err != nil {
					t.Errorf("ClaimNext failed: %v", err)
					return
				}
				if item == nil {
					return
				}
				mu.Lock()
				if prev, dup := claimed[item.ID]; dup {
					t.Errorf("item %d claimed by %s and %s", item.ID, prev, worker)
				}
				claimed[item.ID] = worker
				mu.Unlock()
			}
		}(fmt.Sprintf("w%d", i), c)
	}
	wg.Wait()

	if len(claimed) != items {
		t.Errorf("Expected %d claimed items, got %d", items, len(claimed))
	}
}

func TestQueue_RecoverStale(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, _ = db.Enqueue(ctx, domain.MetadataPayload{FilePath: "/old"})
	_, _ = db.Enqueue(ctx, domain.MetadataPayload{FilePath: "/fresh"})

	old, _ := db.ClaimNext(ctx, domain.QueueTypeMetadata, "crashed")
	fresh, _ := db.ClaimNext(ctx, domain.QueueTypeMetadata, "alive")
	if old == nil || fresh == nil {
		t.Fatal("Expected both items claimed")
	}

	_, err := db.ExecContext(ctx, `UPDATE processing_queue SET locked_at = ? WHERE id = ?`,
		ts(time.Now().Add(-10*time.Minute)), old.ID)
	if err != nil {
		t.Fatalf("backdate lock: %v", err)
	}

	recovered, err := db.RecoverStale(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("RecoverStale failed: %v", err)
	}
	if recovered != 1 {
		t.Errorf("Expected 1 recovered item, got %d", recovered)
	}

	got, _ := db.GetQueueItem(ctx, old.ID)
	if got.Status != domain.QueueStatusPending || got.LockedAt != nil || got.LockedBy.Valid {
		t.Errorf("Expected stale item reset to pending without lock, got %+v", got)
	}
	got, _ = db.GetQueueItem(ctx, fresh.ID)
	if got.Status != domain.QueueStatusProcessing {
		t.Errorf("Expected fresh item to stay processing, got %s", got.Status)
	}

	// Recovery only moves items, it never touches retry counts.
	if got.RetryCount != 0 {
		t.Errorf("Expected retry count 0, got %d", got.RetryCount)
	}
}

func TestQueue_LateOutcomeFromReclaimedItem(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, _ = db.Enqueue(ctx, domain.MetadataPayload{FilePath: "/slow"})
	first, _ := db.ClaimNext(ctx, domain.QueueTypeMetadata, "slow-worker")
	if first == nil {
		t.Fatal("Expected item claimed")
	}

	_, err := db.ExecContext(ctx, `UPDATE processing_queue SET locked_at = ? WHERE id = ?`,
		ts(time.Now().Add(-10*time.Minute)), first.ID)
	if err != nil {
		t.Fatalf("backdate lock: %v", err)
	}
	if _, err := db.RecoverStale(ctx, 5*time.Minute); err != nil {
		t.Fatalf("RecoverStale failed: %v", err)
	}
	second, _ := db.ClaimNext(ctx, domain.QueueTypeMetadata, "new-owner")
	if second == nil || second.ID != first.ID {
		t.Fatalf("Expected the recovered item to be reclaimed, got %+v", second)
	}

	if err := db.Complete(ctx, first.ID, "slow-worker"); !errors.Is(err, ErrLockLost) {
		t.Errorf("Expected ErrLockLost from Complete, got %v", err)
	}
	if err := db.Fail(ctx, first.ID, "slow-worker", "late"); !errors.Is(err, ErrLockLost) {
		t.Errorf("Expected ErrLockLost from Fail, got %v", err)
	}
	got, _ := db.GetQueueItem(ctx, first.ID)
	if got.Status != domain.QueueStatusProcessing || got.LockedBy.String != "new-owner" || got.RetryCount != 0 {
		t.Errorf("Expected item still held by new-owner, got %+v", got)
	}

	if err := db.Complete(ctx, first.ID, "new-owner"); err != nil {
		t.Fatalf("Complete by owner failed: %v", err)
	}
	// A second outcome for a finished item is rejected too.
	if err := db.Fail(ctx, first.ID, "new-owner", "again"); !errors.Is(err, ErrLockLost) {
		t.Errorf("Expected ErrLockLost for finished item, got %v", err)
	}
	got, _ = db.GetQueueItem(ctx, first.ID)
	if got.Status != domain.QueueStatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
}

func TestQueue_RetryFailed(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := domain.MetadataPayload{FilePath: "/a"}
	_, _ = db.Enqueue(ctx, p)
	item, _ := db.ClaimNext(ctx, domain.QueueTypeMetadata, "w")
	_ = db.Fail(ctx, item.ID, "w", "bad")

	ok, err := db.RetryFailed(ctx, item.ID)
	if err != nil || !ok {
		t.Fatalf("Expected retry to succeed, got ok=%v err=%v", ok, err)
	}
	got, _ := db.GetQueueItem(ctx, item.ID)
	if got.Status != domain.QueueStatusPending || got.ErrorMessage.Valid {
		t.Errorf("Expected pending with cleared error, got %+v", got)
	}
	if got.RetryCount != 1 {
		t.Errorf("Expected retry count preserved at 1, got %d", got.RetryCount)
	}

	ok, _ = db.RetryFailed(ctx, item.ID)
	if ok {
		t.Error("Expected retry of a pending item to be a no-op")
	}

	// A failed item whose payload is already active again stays failed.
	claimed, _ := db.ClaimNext(ctx, domain.QueueTypeMetadata, "w")
	_ = db.Fail(ctx, claimed.ID, "w", "bad again")
	_, _ = db.Enqueue(ctx, p)
	ok, err = db.RetryFailed(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if ok {
		t.Error("Expected retry to be ignored while an equivalent item is active")
	}
}

func TestQueue_StatsListAndClear(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, _ = db.Enqueue(ctx, domain.MetadataPayload{FilePath: "/a"})
	_, _ = db.Enqueue(ctx, domain.MetadataPayload{FilePath: "/b"})
	_, _ = db.Enqueue(ctx, domain.VectorPayload{FileID: 1, ThumbnailPath: "/t.png"})
	item, _ := db.ClaimNext(ctx, domain.QueueTypeMetadata, "w")
	_ = db.Complete(ctx, item.ID, "w")

	stats, err := db.GetQueueStats(ctx)
	if err != nil {
		t.Fatalf("GetQueueStats failed: %v", err)
	}
	tests := []struct {
		qt     domain.QueueType
		status domain.QueueStatus
		want   int
	}{
		{domain.QueueTypeMetadata, domain.QueueStatusPending, 1},
		{domain.QueueTypeMetadata, domain.QueueStatusCompleted, 1},
		{domain.QueueTypeVector, domain.QueueStatusPending, 1},
		{domain.QueueTypeColorTag, domain.QueueStatusPending, 0},
	}
	for _, tt := range tests {
		if got := stats.Count(tt.qt, tt.status); got != tt.want {
			t.Errorf("stats[%s][%s] = %d, want %d", tt.qt, tt.status, got, tt.want)
		}
	}

	list, err := db.ListQueueItems(ctx, QueueFilter{Type: domain.QueueTypeMetadata})
	if err != nil {
		t.Fatalf("ListQueueItems failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("Expected 2 metadata items, got %d", len(list))
	}
	list, _ = db.ListQueueItems(ctx, QueueFilter{Status: domain.QueueStatusPending, Limit: 1})
	if len(list) != 1 {
		t.Errorf("Expected limit to cap results at 1, got %d", len(list))
	}

	removed, err := db.ClearFinished(ctx, 0)
	if err != nil {
		t.Fatalf("ClearFinished failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 finished item removed, got %d", removed)
	}
	removed, _ = db.ClearFinished(ctx, time.Hour)
	if removed != 0 {
		t.Errorf("Expected nothing older than an hour, got %d", removed)
	}
}
