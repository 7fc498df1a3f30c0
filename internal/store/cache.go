// Package store provides a SQLite-backed cache of parsed session records,
// keyed by source file mtime and size.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Cache provides SQLite-backed record caching.
type Cache struct {
	db *sql.DB
}

// DefaultPath returns the cache database path under dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, "records.db")
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version != schemaVersion {
		if _, err := db.Exec(dropSQL); err != nil {
			return fmt.Errorf("dropping stale schema: %w", err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("writing schema version: %w", err)
	}
	return nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// FileInfo holds the tracked mtime and size for a file.
type FileInfo struct {
	MtimeNs   int64
	SizeBytes int64
}

// TrackedFiles returns file_path -> FileInfo for a provider's cached files.
func (c *Cache) TrackedFiles(id provider.ID) (map[string]FileInfo, error) {
	rows, err := c.db.Query("SELECT file_path, mtime_ns, size_bytes FROM files WHERE provider = ?", string(id))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]FileInfo)
	for rows.Next() {
		var path string
		var fi FileInfo
		if err := rows.Scan(&path, &fi.MtimeNs, &fi.SizeBytes); err != nil {
			return nil, err
		}
		result[path] = fi
	}
	return result, rows.Err()
}

// SaveFile replaces the cached records of one file.
func (c *Cache) SaveFile(id provider.ID, path string, info FileInfo, records []model.SessionRecord, parseErrors int) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM files WHERE file_path = ?", path); err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO files (file_path, provider, mtime_ns, size_bytes, parse_errors, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		path, string(id), info.MtimeNs, info.SizeBytes, parseErrors, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO records
		(file_path, seq, session_id, session_file, directory, timestamp_ns, model, is_fallback,
		 input_tokens, cached_input_tokens, cache_write_5m, cache_write_1h,
		 output_tokens, reasoning_tokens, total_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		isFallback := 0
		if r.IsFallbackModel {
			isFallback = 1
		}
		_, err := stmt.Exec(path, i, r.SessionID, r.SessionFile, r.Directory, r.Timestamp.UnixNano(), r.Model, isFallback,
			r.InputTokens, r.CachedInputTokens, r.CacheWrite5mTokens, r.CacheWrite1hTokens,
			r.OutputTokens, r.ReasoningOutputTokens, r.TotalTokens)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadRecords returns a provider's cached records grouped by file path, each
// group in its original order.
func (c *Cache) LoadRecords(id provider.ID) (map[string][]model.SessionRecord, error) {
	rows, err := c.db.Query(`SELECT
		r.file_path, r.session_id, r.session_file, r.directory, r.timestamp_ns, r.model, r.is_fallback,
		r.input_tokens, r.cached_input_tokens, r.cache_write_5m, r.cache_write_1h,
		r.output_tokens, r.reasoning_tokens, r.total_tokens
		FROM records r JOIN files f ON f.file_path = r.file_path
		WHERE f.provider = ?
		ORDER BY r.file_path, r.seq`, string(id))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]model.SessionRecord)
	for rows.Next() {
		var (
			path                   string
			r                      model.SessionRecord
			sessionFile, directory sql.NullString
			tsNs                   int64
			isFallback             int
		)
		err := rows.Scan(&path, &r.SessionID, &sessionFile, &directory, &tsNs, &r.Model, &isFallback,
			&r.InputTokens, &r.CachedInputTokens, &r.CacheWrite5mTokens, &r.CacheWrite1hTokens,
			&r.OutputTokens, &r.ReasoningOutputTokens, &r.TotalTokens)
		if err != nil {
			return nil, err
		}
		r.SessionFile = sessionFile.String
		r.Directory = directory.String
		r.Timestamp = time.Unix(0, tsNs).UTC()
		r.IsFallbackModel = isFallback != 0
		out[path] = append(out[path], r)
	}
	return out, rows.Err()
}

// DeleteFile removes a file and its records.
func (c *Cache) DeleteFile(path string) error {
	_, err := c.db.Exec("DELETE FROM files WHERE file_path = ?", path)
	return err
}

// RecordCount returns the number of cached records for a provider.
func (c *Cache) RecordCount(id provider.ID) (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM records r JOIN files f ON f.file_path = r.file_path
		WHERE f.provider = ?`, string(id)).Scan(&count)
	return count, err
}
