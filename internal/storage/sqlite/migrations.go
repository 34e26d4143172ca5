package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS announcements (
	item_id   TEXT PRIMARY KEY,
	posted_at TIMESTAMP NOT NULL,
	post_ref  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_state (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id       TEXT NOT NULL UNIQUE,
	last_run_at     TIMESTAMP NOT NULL,
	total_published INTEGER NOT NULL DEFAULT 0
);
`
