package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	source_id  TEXT NOT NULL,
	kind       TEXT NOT NULL,
	title      TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	timestamp  INTEGER NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	tags       TEXT NOT NULL DEFAULT '[]',
	is_read    INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(source, source_id)
);

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	item_id      TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	reasons      TEXT NOT NULL,
	urgency      TEXT NOT NULL,
	is_dismissed INTEGER NOT NULL DEFAULT 0 CHECK(is_dismissed IN (0, 1)),
	created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS plugin_lifecycle (
	source_id          TEXT PRIMARY KEY,
	enabled            INTEGER NOT NULL DEFAULT 1 CHECK(enabled IN (0, 1)),
	status             TEXT NOT NULL DEFAULT 'configured',
	poll_interval_sec  INTEGER NOT NULL DEFAULT 600,
	last_poll_at       INTEGER NOT NULL DEFAULT 0,
	last_error         TEXT NOT NULL DEFAULT '',
	consecutive_errors INTEGER NOT NULL DEFAULT 0,
	next_eligible_at   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS heuristic_weights (
	id     TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	signal TEXT NOT NULL,
	weight INTEGER NOT NULL,
	UNIQUE(source, signal)
);

CREATE TABLE IF NOT EXISTS app_settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_source ON items(source);
CREATE INDEX IF NOT EXISTS idx_items_timestamp ON items(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_items_is_read ON items(is_read);
CREATE INDEX IF NOT EXISTS idx_notifications_item_id ON notifications(item_id);
CREATE INDEX IF NOT EXISTS idx_notifications_dismissed ON notifications(is_dismissed);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
