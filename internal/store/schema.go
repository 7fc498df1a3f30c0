package store

// schemaVersion is stored in PRAGMA user_version. A cache written with a
// different version is dropped and rebuilt; it only holds derived data.
const schemaVersion = 2

const dropSQL = `
DROP TABLE IF EXISTS records;
DROP TABLE IF EXISTS files;
`

const schemaSQL = `
CREATE TABLE IF NOT EXISTS files (
    file_path            TEXT PRIMARY KEY,
    provider             TEXT NOT NULL,
    mtime_ns             INTEGER NOT NULL,
    size_bytes           INTEGER NOT NULL,
    parse_errors         INTEGER NOT NULL DEFAULT 0,
    parsed_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
    file_path            TEXT NOT NULL REFERENCES files(file_path) ON DELETE CASCADE,
    seq                  INTEGER NOT NULL,
    session_id           TEXT NOT NULL,
    session_file         TEXT,
    directory            TEXT,
    timestamp_ns         INTEGER NOT NULL,
    model                TEXT NOT NULL,
    is_fallback          INTEGER NOT NULL DEFAULT 0,
    input_tokens         INTEGER NOT NULL,
    cached_input_tokens  INTEGER NOT NULL,
    cache_write_5m       INTEGER NOT NULL,
    cache_write_1h       INTEGER NOT NULL,
    output_tokens        INTEGER NOT NULL,
    reasoning_tokens     INTEGER NOT NULL,
    total_tokens         INTEGER NOT NULL,
    PRIMARY KEY (file_path, seq)
);

CREATE INDEX IF NOT EXISTS idx_files_provider ON files(provider);
`
