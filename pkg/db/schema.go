package db

const (
	// SchemaV1 defines version 1 of the semantic index schema: a version
	// registry plus the embedded-document table.
	SchemaV1 = `
CREATE TABLE IF NOT EXISTS zotkit_versions (
    component TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    created_at REAL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS documents (
    item_key TEXT PRIMARY KEY,
    item_version INTEGER NOT NULL DEFAULT 0,
    item_type TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    embedding BLOB NOT NULL,
    indexed_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
)
