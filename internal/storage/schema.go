package storage

// SchemaVersion is recorded in the meta table of every store.
const SchemaVersion = "1"

// Schema is the SQL schema of a workspace store.
const Schema = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Per-kind id counters. Ids are taken from here, never from MAX(id), so a
-- deleted id is not handed out again.
CREATE TABLE IF NOT EXISTS sequences (
    kind    TEXT PRIMARY KEY,
    last_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contexts (
    kind       TEXT PRIMARY KEY
               CHECK(kind IN ('product_context', 'active_context')),
    content    TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Every id-bearing entity. seq is the row key the search index points at;
-- id is the per-kind id callers see.
CREATE TABLE IF NOT EXISTS items (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    kind       TEXT NOT NULL,
    id         INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    tags       TEXT NOT NULL DEFAULT '[]',
    body       TEXT NOT NULL,
    UNIQUE (kind, id)
);

-- rowid = items.seq
CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
    title,
    content,
    tags,
    tokenize='unicode61'
);

CREATE TABLE IF NOT EXISTS links (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    source_type       TEXT NOT NULL,
    source_id         INTEGER NOT NULL,
    target_type       TEXT NOT NULL,
    target_id         INTEGER NOT NULL,
    relationship_type TEXT NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    created_at        TEXT NOT NULL,
    UNIQUE (source_type, source_id, target_type, target_id, relationship_type)
);

CREATE INDEX IF NOT EXISTS idx_items_created ON items(kind, created_at);
CREATE INDEX IF NOT EXISTS idx_items_updated ON items(updated_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_items_keyed
    ON items(kind, json_extract(body, '$.category'), json_extract(body, '$.key'))
    WHERE kind IN ('custom_data', 'glossary_term');
CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_type, source_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_type, target_id);
`

// dsnPragmas configures every connection of the pool.
const dsnPragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)"
