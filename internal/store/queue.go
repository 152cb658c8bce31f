package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cesargomez89/artshelf/internal/domain"
)

const queueColumns = `id, queue_type, payload, status, locked_at, locked_by, error_message,
	retry_count, created_at, updated_at, completed_at`

// Enqueue inserts a pending item. It returns false when an equivalent item is
// already pending or processing; the partial unique index makes that check
// part of the insert itself.
func (db *DB) Enqueue(ctx context.Context, p domain.Payload) (bool, error) {
	payload, err := domain.EncodePayload(p)
	if err != nil {
		return false, err
	}

	stamp := now()
	res, err := db.ExecContext(ctx, `INSERT INTO processing_queue (queue_type, payload, status, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT DO NOTHING`,
		p.QueueType(), payload, domain.QueueStatusPending, stamp, stamp)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", p.QueueType(), err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ClaimNext moves the oldest pending item of queueType to processing and
// returns it, or nil when nothing is claimable. Selection and locking happen
// in one UPDATE so concurrent claimers, in this process or another, can never
// both win the same row.
func (db *DB) ClaimNext(ctx context.Context, queueType domain.QueueType, workerID string) (*domain.QueueItem, error) {
	stamp := now()

	var id int64
	err := db.QueryRowxContext(ctx, `UPDATE processing_queue
		SET status = ?, locked_at = ?, locked_by = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM processing_queue
			WHERE queue_type = ? AND status = ?
			ORDER BY created_at, id
			LIMIT 1
		) AND status = ?
		RETURNING id`,
		domain.QueueStatusProcessing, stamp, workerID, stamp,
		queueType, domain.QueueStatusPending,
		domain.QueueStatusPending,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", queueType, err)
	}

	return db.GetQueueItem(ctx, id)
}

func (db *DB) GetQueueItem(ctx context.Context, id int64) (*domain.QueueItem, error) {
	item := &domain.QueueItem{}
	err := db.GetContext(ctx, item, `SELECT `+queueColumns+` FROM processing_queue WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("queue item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item %d: %w", id, err)
	}
	return item, nil
}

// ErrLockLost means the item is no longer processing under the caller's
// lock, typically because stale recovery handed it to another worker.
var ErrLockLost = errors.New("queue item lock lost")

// Complete marks an item the caller still holds as completed and clears its
// lock.
func (db *DB) Complete(ctx context.Context, id int64, workerID string) error {
	stamp := now()
	res, err := db.ExecContext(ctx, `UPDATE processing_queue
		SET status = ?, completed_at = ?, locked_at = NULL, locked_by = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND locked_by = ?`,
		domain.QueueStatusCompleted, stamp, stamp, id, domain.QueueStatusProcessing, workerID)
	if err != nil {
		return fmt.Errorf("complete queue item %d: %w", id, err)
	}
	return db.requireOwnedRow(ctx, res, id)
}

// Fail records the error and leaves the item in the terminal failed state.
// Nothing re-queues it automatically. Like Complete, it only applies while
// the caller still holds the item.
func (db *DB) Fail(ctx context.Context, id int64, workerID, message string) error {
	res, err := db.ExecContext(ctx, `UPDATE processing_queue
		SET status = ?, error_message = ?, retry_count = retry_count + 1,
			locked_at = NULL, locked_by = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND locked_by = ?`,
		domain.QueueStatusFailed, message, now(), id, domain.QueueStatusProcessing, workerID)
	if err != nil {
		return fmt.Errorf("fail queue item %d: %w", id, err)
	}
	return db.requireOwnedRow(ctx, res, id)
}

func (db *DB) requireOwnedRow(ctx context.Context, res sql.Result, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	if _, err := db.GetQueueItem(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("queue item %d: %w", id, ErrLockLost)
}

func (db *DB) PendingCount(ctx context.Context, queueType domain.QueueType) (int, error) {
	var count int
	err := db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM processing_queue WHERE queue_type = ? AND status = ?`,
		queueType, domain.QueueStatusPending)
	if err != nil {
		return 0, fmt.Errorf("pending count %s: %w", queueType, err)
	}
	return count, nil
}

// RecoverStale returns processing items locked for longer than window to
// pending and clears their locks.
func (db *DB) RecoverStale(ctx context.Context, window time.Duration) (int64, error) {
	current := time.Now()
	res, err := db.ExecContext(ctx, `UPDATE processing_queue
		SET status = ?, locked_at = NULL, locked_by = NULL, updated_at = ?
		WHERE status = ? AND (locked_at IS NULL OR locked_at < ?)`,
		domain.QueueStatusPending, ts(current),
		domain.QueueStatusProcessing, ts(current.Add(-window)))
	if err != nil {
		return 0, fmt.Errorf("recover stale items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves a failed item back to pending. It reports false when the
// item is not failed or an equivalent item is already active.
func (db *DB) RetryFailed(ctx context.Context, id int64) (bool, error) {
	stamp := now()
	res, err := db.ExecContext(ctx, `UPDATE OR IGNORE processing_queue
		SET status = ?, error_message = NULL, locked_at = NULL, locked_by = NULL,
			completed_at = NULL, created_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		domain.QueueStatusPending, stamp, stamp, id, domain.QueueStatusFailed)
	if err != nil {
		return false, fmt.Errorf("retry queue item %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

type QueueFilter struct {
	Type   domain.QueueType
	Status domain.QueueStatus
	Limit  int
}

func (db *DB) ListQueueItems(ctx context.Context, filter QueueFilter) ([]*domain.QueueItem, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Type != "" {
		where = append(where, "queue_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + queueColumns + ` FROM processing_queue`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var items []*domain.QueueItem
	if err := db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	return items, nil
}

// QueueStats holds item counts per queue type and status.
type QueueStats map[domain.QueueType]map[domain.QueueStatus]int

func (s QueueStats) Count(queueType domain.QueueType, status domain.QueueStatus) int {
	if byStatus, ok := s[queueType]; ok {
		return byStatus[status]
	}
	return 0
}

func (db *DB) GetQueueStats(ctx context.Context) (QueueStats, error) {
	type statRow struct {
		QueueType domain.QueueType   `db:"queue_type"`
		Status    domain.QueueStatus `db:"status"`
		Count     int                `db:"count"`
	}

	var rows []statRow
	err := db.SelectContext(ctx, &rows,
		`SELECT queue_type, status, COUNT(*) AS count FROM processing_queue GROUP BY queue_type, status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	stats := make(QueueStats, len(domain.QueueTypes))
	for _, qt := range domain.QueueTypes {
		stats[qt] = make(map[domain.QueueStatus]int)
	}
	for _, r := range rows {
		if stats[r.QueueType] == nil {
			stats[r.QueueType] = make(map[domain.QueueStatus]int)
		}
		stats[r.QueueType][r.Status] = r.Count
	}
	return stats, nil
}

// ClearFinished deletes completed and failed items last touched before the
// cutoff. A zero olderThan clears all of them.
func (db *DB) ClearFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM processing_queue
		WHERE status IN (?, ?) AND updated_at <= ?`,
		domain.QueueStatusCompleted, domain.QueueStatusFailed, ts(time.Now().Add(-olderThan)))
	if err != nil {
		return 0, fmt.Errorf("clear finished items: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, kind string, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}
