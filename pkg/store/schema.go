package store

const rootSchema = `
CREATE TABLE IF NOT EXISTS files (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	current_path  TEXT NOT NULL UNIQUE,
	original_path TEXT NOT NULL,
	filename      TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	embedding     BLOB,
	model_tag     TEXT NOT NULL DEFAULT '',
	cluster_id    INTEGER NOT NULL DEFAULT -1,
	x             REAL NOT NULL DEFAULT 0,
	y             REAL NOT NULL DEFAULT 0,
	summary       TEXT NOT NULL DEFAULT '',
	file_type     TEXT NOT NULL DEFAULT '',
	size_bytes    INTEGER NOT NULL DEFAULT 0,
	word_count    INTEGER NOT NULL DEFAULT 0,
	page_count    INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	modified_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_content_hash ON files(content_hash);
CREATE INDEX IF NOT EXISTS idx_files_cluster_id ON files(cluster_id);

CREATE TABLE IF NOT EXISTS clusters (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	folder_path TEXT NOT NULL DEFAULT '',
	centroid    BLOB,
	file_count  INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id   INTEGER NOT NULL DEFAULT 0,
	type      TEXT NOT NULL,
	detail    TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
`
