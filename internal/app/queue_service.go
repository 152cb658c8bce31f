package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/logger"
	"github.com/cesargomez89/artshelf/internal/store"
)

// ErrNotRetryable is returned when a retry is requested for an item that is
// not failed, or whose payload already has an active item.
var ErrNotRetryable = errors.New("queue item is not retryable")

type QueueService struct {
	Repo   *store.DB
	Logger *logger.Logger
}

func NewQueueService(repo *store.DB, log *logger.Logger) *QueueService {
	return &QueueService{Repo: repo, Logger: log.WithComponent("queue")}
}

// Enqueue adds a pending item. A duplicate of an active item is not an error;
// it reports added=false.
func (s *QueueService) Enqueue(ctx context.Context, p domain.Payload) (bool, error) {
	added, err := s.Repo.Enqueue(ctx, p)
	if err != nil {
		return false, err
	}
	if added {
		s.Logger.Info("Item enqueued", "queue_type", p.QueueType())
	} else {
		s.Logger.Debug("Item already active, skipping", "queue_type", p.QueueType())
	}
	return added, nil
}

func (s *QueueService) ListItems(ctx context.Context, filter store.QueueFilter) ([]*domain.QueueItem, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownQueueType, filter.Type)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown queue status %q", filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = constants.DefaultQueueList
	}
	if filter.Limit > constants.MaxQueueListItems {
		filter.Limit = constants.MaxQueueListItems
	}
	return s.Repo.ListQueueItems(ctx, filter)
}

func (s *QueueService) GetItem(ctx context.Context, id int64) (*domain.QueueItem, error) {
	return s.Repo.GetQueueItem(ctx, id)
}

// RetryItem moves a failed item back to pending.
func (s *QueueService) RetryItem(ctx context.Context, id int64) (*domain.QueueItem, error) {
	item, err := s.Repo.GetQueueItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != domain.QueueStatusFailed {
		return nil, fmt.Errorf("%w: item %d is %s", ErrNotRetryable, id, item.Status)
	}

	ok, err := s.Repo.RetryFailed(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: item %d already has an active duplicate", ErrNotRetryable, id)
	}

	s.Logger.Info("Item retried", "queue_item_id", id, "queue_type", item.QueueType, "retry_count", item.RetryCount)
	return s.Repo.GetQueueItem(ctx, id)
}

func (s *QueueService) Stats(ctx context.Context) (store.QueueStats, error) {
	return s.Repo.GetQueueStats(ctx)
}

func (s *QueueService) ClearFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	removed, err := s.Repo.ClearFinished(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	s.Logger.Info("Cleared finished items", "removed", removed)
	return removed, nil
}
