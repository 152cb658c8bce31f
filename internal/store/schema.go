package store

// Schema is applied on every open. The processing_queue definition and its
// partial unique index are part of the on-disk contract shared by every
// process that opens the database.
const Schema = `
CREATE TABLE IF NOT EXISTS processing_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	queue_type TEXT NOT NULL CHECK (queue_type IN ('metadata', 'vector', 'color_tag')),
	payload TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	locked_at DATETIME,
	locked_by TEXT,
	error_message TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);

-- At most one active row per (queue_type, payload)
CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_active_payload ON processing_queue(queue_type, payload)
WHERE status IN ('pending', 'processing');

CREATE INDEX IF NOT EXISTS idx_queue_claim ON processing_queue(queue_type, status, created_at);

CREATE TABLE IF NOT EXISTS artwork_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path TEXT UNIQUE NOT NULL,
	file_name TEXT NOT NULL,
	file_hash TEXT NOT NULL,

	-- Canvas metadata
	canvas_width INTEGER NOT NULL DEFAULT 0,
	canvas_height INTEGER NOT NULL DEFAULT 0,
	dpi INTEGER NOT NULL DEFAULT 0,
	orientation TEXT NOT NULL DEFAULT 'unknown',
	layer_count INTEGER NOT NULL DEFAULT 0,
	time_spent INTEGER NOT NULL DEFAULT 0,
	color_profile TEXT,
	app_version TEXT,
	source_created_at INTEGER,
	source_modified_at INTEGER,

	-- Derived
	thumbnail_path TEXT,
	vector TEXT,  -- JSON array
	vector_updated_at DATETIME,

	-- Timestamps
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_artwork_files_hash ON artwork_files(file_hash);

CREATE TABLE IF NOT EXISTS similarities (
	file_id_low INTEGER NOT NULL,
	file_id_high INTEGER NOT NULL,
	score REAL NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (file_id_low, file_id_high),
	CHECK (file_id_low < file_id_high),
	FOREIGN KEY (file_id_low) REFERENCES artwork_files(id) ON DELETE CASCADE,
	FOREIGN KEY (file_id_high) REFERENCES artwork_files(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_similarities_high ON similarities(file_id_high);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	category TEXT NOT NULL DEFAULT ''
);

-- Keyed by content hash, not file id: duplicates share tags and tags survive
-- delete and re-ingest of the same content.
CREATE TABLE IF NOT EXISTS hash_tags (
	file_hash TEXT NOT NULL,
	tag_id INTEGER NOT NULL,
	source TEXT NOT NULL DEFAULT 'manual',
	confidence REAL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (file_hash, tag_id),
	FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_hash_tags_source ON hash_tags(source);

INSERT OR IGNORE INTO tags (name, category) VALUES
	('red', 'color'), ('orange', 'color'), ('yellow', 'color'), ('green', 'color'),
	('teal', 'color'), ('blue', 'color'), ('purple', 'color'), ('pink', 'color'),
	('brown', 'color'), ('black', 'color'), ('white', 'color'), ('gray', 'color'),
	('transparent', 'color');

CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data BLOB,
	expires_at DATETIME
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
