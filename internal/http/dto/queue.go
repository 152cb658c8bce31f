package dto

import (
	"encoding/json"
	"time"

	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/store"
)

type EnqueueRequest struct {
	Path string `json:"path"`
}

func (r *EnqueueRequest) Validate() []ValidationError {
	return validatePath(r.Path)
}

type EnqueueResponse struct {
	Path  string `json:"path"`
	Added bool   `json:"added"`
}

// QueueListQuery holds the raw filters of GET /api/queue/items.
type QueueListQuery struct {
	Type   string
	Status string
}

func (q *QueueListQuery) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateQueueType(q.Type)...)
	errs = append(errs, validateQueueStatus(q.Status)...)
	return errs
}

type QueueItemResponse struct {
	Payload     json.RawMessage `json:"payload"`
	LockedAt    *string         `json:"locked_at,omitempty"`
	CompletedAt *string         `json:"completed_at,omitempty"`
	LockedBy    string          `json:"locked_by,omitempty"`
	Error       string          `json:"error,omitempty"`
	QueueType   string          `json:"queue_type"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	ID          int64           `json:"id"`
	RetryCount  int             `json:"retry_count"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func NewQueueItemResponse(item *domain.QueueItem) QueueItemResponse {
	resp := QueueItemResponse{
		ID:          item.ID,
		QueueType:   string(item.QueueType),
		Status:      string(item.Status),
		Payload:     json.RawMessage(item.Payload),
		RetryCount:  item.RetryCount,
		CreatedAt:   formatTime(item.CreatedAt),
		UpdatedAt:   formatTime(item.UpdatedAt),
		LockedAt:    formatTimePtr(item.LockedAt),
		CompletedAt: formatTimePtr(item.CompletedAt),
	}
	if item.LockedBy.Valid {
		resp.LockedBy = item.LockedBy.String
	}
	if item.ErrorMessage.Valid {
		resp.Error = item.ErrorMessage.String
	}
	if !json.Valid(resp.Payload) {
		raw, _ := json.Marshal(item.Payload)
		resp.Payload = raw
	}
	return resp
}

type QueueListResponse struct {
	Items      []QueueItemResponse `json:"items"`
	Pagination Pagination          `json:"pagination"`
}

func NewQueueListResponse(items []*domain.QueueItem, limit int) QueueListResponse {
	resp := QueueListResponse{
		Items:      make([]QueueItemResponse, 0, len(items)),
		Pagination: NewPagination(limit, len(items)),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, NewQueueItemResponse(it))
	}
	return resp
}

// StatsResponse reports every queue type and status, zero-filled.
type StatsResponse struct {
	Queues map[string]map[string]int `json:"queues"`
	Totals map[string]int            `json:"totals"`
}

var allStatuses = []domain.QueueStatus{
	domain.QueueStatusPending,
	domain.QueueStatusProcessing,
	domain.QueueStatusCompleted,
	domain.QueueStatusFailed,
}

func NewStatsResponse(stats store.QueueStats) StatsResponse {
	resp := StatsResponse{
		Queues: make(map[string]map[string]int, len(domain.QueueTypes)),
		Totals: make(map[string]int, len(allStatuses)),
	}
	for _, qt := range domain.QueueTypes {
		byStatus := make(map[string]int, len(allStatuses))
		for _, st := range allStatuses {
			n := stats.Count(qt, st)
			byStatus[string(st)] = n
			resp.Totals[string(st)] += n
		}
		resp.Queues[string(qt)] = byStatus
	}
	return resp
}

type ClearFinishedResponse struct {
	Removed int64 `json:"removed"`
}
