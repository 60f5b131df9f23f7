package db

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	id          TEXT PRIMARY KEY,
	owner       TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_collections_owner ON collections(owner);

CREATE TABLE IF NOT EXISTS requests (
	id            TEXT PRIMARY KEY,
	owner         TEXT NOT NULL,
	collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	description   TEXT,
	method        TEXT NOT NULL,
	url           TEXT NOT NULL,
	headers       TEXT NOT NULL DEFAULT '[]',
	body          TEXT,
	body_type     TEXT NOT NULL DEFAULT '',
	response      TEXT,
	version       INTEGER NOT NULL DEFAULT 1,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_owner ON requests(owner);
CREATE INDEX IF NOT EXISTS idx_requests_collection ON requests(collection_id);

CREATE TABLE IF NOT EXISTS environments (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	name       TEXT NOT NULL,
	variables  TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_environments_owner ON environments(owner, name);

CREATE TABLE IF NOT EXISTS attempts (
	id          TEXT PRIMARY KEY,
	request_id  TEXT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
	owner       TEXT NOT NULL,
	state       TEXT NOT NULL,
	kind        TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	status      INTEGER NOT NULL DEFAULT 0,
	duration_ns INTEGER NOT NULL DEFAULT 0,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_request ON attempts(request_id, started_at);
`
