// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort                   = "8080"
	DefaultDBPath                 = "artshelf.db"
	DefaultThumbnailsDir          = "thumbnails"
	DefaultExtractorPython        = "python3"
	DefaultExtractorScript        = "ingest/python/procreate_meta.py"
	DefaultMetadataTimeout        = 60 * time.Second
	DefaultVectorTimeout          = 3 * time.Minute
	DefaultSimilarityThreshold    = 0.85
	DefaultColorTaggingEnabled    = true
	DefaultColorTagMinConfidence  = 0.15
	DefaultColorTagLimit          = 3
	DefaultMaintenanceConcurrency = 2
	DefaultClearTempDays          = 7
	DefaultVectorCacheTTL         = 30 * 24 * time.Hour
)

// Queue timing
const (
	// StaleLockWindow is how long a processing row may stay locked before it is
	// presumed orphaned by a crashed worker.
	StaleLockWindow    = 5 * time.Minute
	DefaultRepollDelay = 2 * time.Second
	IdlePollInterval   = 250 * time.Millisecond
)

// Color classification
const (
	ColorSampleGrid       = 64
	ColorAlphaCutoff      = 128
	ColorQuantizeStep     = 32
	ColorTransparentRatio = 0.3
	MaxColorTagLimit      = 12
	TagCategoryColor      = "color"
	TagNameTransparent    = "transparent"
	HashTagSourceColor    = "color"
	HashTagSourceManual   = "manual"
)

// Misc
const (
	VectorCacheKeyPrefix   = "vector:"
	MaintenanceLockSuffix  = ".maintenance.lock"
	ExtractorStderrMaxSize = 2048
)

// Database
const (
	QueueTable        = "processing_queue"
	FilesTable        = "artwork_files"
	SimilaritiesTable = "similarities"
	TagsTable         = "tags"
	HashTagsTable     = "hash_tags"
	CacheTable        = "cache"
	SettingsTable     = "settings"
)

// TimeLayout is the fixed-width UTC layout used for every timestamp the queue
// compares, so string order matches time order.
const TimeLayout = "2006-01-02 15:04:05.000000"

// File Extensions
const (
	ExtProcreate = ".procreate"
	ExtPNG       = ".png"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// UI/UX
const (
	MaxQueueListItems  = 200
	DefaultQueueList   = 50
	MaxSimilarList     = 200
	DefaultSimilarList = 20
)
