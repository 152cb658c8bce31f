package domain

import (
	"database/sql"
	"time"
)

type QueueType string

const (
	QueueTypeMetadata QueueType = "metadata"
	QueueTypeVector   QueueType = "vector"
	QueueTypeColorTag QueueType = "color_tag"
)

// QueueTypes lists every queue in pipeline order.
var QueueTypes = []QueueType{QueueTypeMetadata, QueueTypeVector, QueueTypeColorTag}

func (t QueueType) Valid() bool {
	switch t {
	case QueueTypeMetadata, QueueTypeVector, QueueTypeColorTag:
		return true
	}
	return false
}

type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

func (s QueueStatus) Valid() bool {
	switch s {
	case QueueStatusPending, QueueStatusProcessing, QueueStatusCompleted, QueueStatusFailed:
		return true
	}
	return false
}

// IsActive reports whether the status participates in payload de-duplication.
func (s QueueStatus) IsActive() bool {
	return s == QueueStatusPending || s == QueueStatusProcessing
}

// QueueItem represents a unit of work in the durable queue
type QueueItem struct {
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
	LockedAt     *time.Time     `json:"locked_at,omitempty" db:"locked_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	LockedBy     sql.NullString `json:"-" db:"locked_by"`
	ErrorMessage sql.NullString `json:"-" db:"error_message"`
	QueueType    QueueType      `json:"queue_type" db:"queue_type"`
	Status       QueueStatus    `json:"status" db:"status"`
	Payload      string         `json:"payload" db:"payload"`
	ID           int64          `json:"id" db:"id"`
	RetryCount   int            `json:"retry_count" db:"retry_count"`
}

// ArtworkFile is an ingested artwork, keyed by path. Files sharing a hash are
// duplicates of the same content.
type ArtworkFile struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID               int64          `json:"id" db:"id"`
	FilePath         string         `json:"file_path" db:"file_path"`
	FileName         string         `json:"file_name" db:"file_name"`
	FileHash         string         `json:"file_hash" db:"file_hash"`
	CanvasWidth      int            `json:"canvas_width" db:"canvas_width"`
	CanvasHeight     int            `json:"canvas_height" db:"canvas_height"`
	DPI              int            `json:"dpi" db:"dpi"`
	Orientation      string         `json:"orientation" db:"orientation"`
	LayerCount       int            `json:"layer_count" db:"layer_count"`
	TimeSpent        int64          `json:"time_spent" db:"time_spent"`
	ColorProfile     sql.NullString `json:"-" db:"color_profile"`
	AppVersion       sql.NullString `json:"-" db:"app_version"`
	SourceCreatedAt  sql.NullInt64  `json:"-" db:"source_created_at"`
	SourceModifiedAt sql.NullInt64  `json:"-" db:"source_modified_at"`
	ThumbnailPath    sql.NullString `json:"-" db:"thumbnail_path"`
	Vector           sql.NullString `json:"-" db:"vector"`
	VectorUpdatedAt  *time.Time     `json:"vector_updated_at,omitempty" db:"vector_updated_at"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// HasVector reports whether the vector stage has stored an embedding.
func (f *ArtworkFile) HasVector() bool {
	return f.Vector.Valid && f.Vector.String != ""
}

// FileVector pairs a file id with its decoded embedding.
type FileVector struct {
	Vector Vector
	ID     int64
}

// SimilarityEdge is an undirected pair stored with IDLow < IDHigh.
type SimilarityEdge struct {
	IDLow  int64   `json:"file_id_low" db:"file_id_low"`
	IDHigh int64   `json:"file_id_high" db:"file_id_high"`
	Score  float64 `json:"score" db:"score"`
}

// CanonicalPair orders two ids so the smaller one comes first.
func CanonicalPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

type Tag struct {
	Name     string `json:"name" db:"name"`
	Category string `json:"category" db:"category"`
	ID       int64  `json:"id" db:"id"`
}

// HashTag associates a tag with a content hash rather than a file row.
type HashTag struct {
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	Confidence sql.NullFloat64 `json:"-" db:"confidence"`
	FileHash   string          `json:"file_hash" db:"file_hash"`
	Source     string          `json:"source" db:"source"`
	TagName    string          `json:"tag_name" db:"tag_name"`
	TagID      int64           `json:"tag_id" db:"tag_id"`
}
