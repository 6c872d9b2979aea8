// Package store persists retrieval units in SQLite. WAL mode and a single
// writer connection give concurrent indexing workers and searches a
// consistent view without lock contention.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const schemaVersion = 1

// UnitStore is the durable home of retrieval units. Empty path opens an
// in-memory store for testing.
type UnitStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens or creates the unit store at path. An existing database is
// validated first; a store that fails validation is reported, never silently
// cleared, because the registry still references its contents.
func Open(path string) (*UnitStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		if err := validateStore(path); err != nil {
			return nil, fmt.Errorf("unit store at %s failed validation: %w", path, err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer prevents lock contention under the worker pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite may ignore DSN params; pragmas must be executed.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &UnitStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// validateStore checks an existing database before it is opened for writing.
func validateStore(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var units, total int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='units'`).Scan(&units)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table'`).Scan(&total)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	// An empty file is fine, the schema gets created. A populated database
	// without the units table is some other application's file.
	if total > 0 && units == 0 {
		return fmt.Errorf("existing database has no units table")
	}
	return nil
}

func (s *UnitStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS units (
		id           TEXT PRIMARY KEY,
		fingerprint  TEXT NOT NULL,
		path         TEXT NOT NULL,
		page         INTEGER NOT NULL,
		position     INTEGER NOT NULL,
		text         TEXT NOT NULL,
		raw_text     TEXT NOT NULL,
		context      TEXT NOT NULL DEFAULT '',
		section_path TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT 'text',
		domain       TEXT NOT NULL DEFAULT 'general',
		topics       TEXT NOT NULL DEFAULT '[]',
		char_count   INTEGER NOT NULL,
		size_class   INTEGER NOT NULL,
		created_at   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_units_fingerprint ON units(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_units_domain ON units(domain);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion)
	return err
}

const unitColumns = `id, fingerprint, path, page, position, text, raw_text,
	context, section_path, content_type, domain, topics, char_count,
	size_class, created_at`

// PutUnits writes units in one transaction. Existing IDs are replaced.
func (s *UnitStore) PutUnits(ctx context.Context, units []Unit) error {
	if len(units) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO units (`+unitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range units {
		topics, err := json.Marshal(u.Topics)
		if err != nil {
			return fmt.Errorf("failed to encode topics for %s: %w", u.ID, err)
		}
		createdAt := u.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err = stmt.ExecContext(ctx,
			u.ID, u.Fingerprint, u.Path, u.Page, u.Position,
			u.Text, u.RawText, u.Context, u.SectionPath, u.ContentType,
			u.Domain, string(topics), u.CharCount, u.SizeClass,
			createdAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to store unit %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteUnits removes units by ID. Unknown IDs are ignored.
func (s *UnitStore) DeleteUnits(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM units WHERE id IN (%s)", strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete units: %w", err)
	}
	return nil
}

// DeleteDocument removes every unit of a document and reports how many went.
func (s *UnitStore) DeleteDocument(ctx context.Context, fingerprint string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM units WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return 0, fmt.Errorf("failed to delete document units: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted units: %w", err)
	}
	return int(n), nil
}

// GetUnits returns the named units in the order requested. IDs missing from
// the store are skipped, not errors, so search enrichment degrades quietly
// when an index and the store disagree.
func (s *UnitStore) GetUnits(ctx context.Context, ids []string) ([]Unit, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s FROM units WHERE id IN (%s)",
		unitColumns, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Unit, len(ids))
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read units: %w", err)
	}

	units := make([]Unit, 0, len(byID))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			units = append(units, u)
		}
	}
	return units, nil
}

// UnitsForDocument returns a document's units in page and position order.
func (s *UnitStore) UnitsForDocument(ctx context.Context, fingerprint string) ([]Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	query := fmt.Sprintf(`SELECT %s FROM units WHERE fingerprint = ?
		ORDER BY page, position`, unitColumns)
	rows, err := s.db.QueryContext(ctx, query, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to query document units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// ForEachUnit streams every unit to fn in path, page, position order. A fn
// error stops the scan and is returned. Backs index rebuilds that do not
// need to reparse source files.
func (s *UnitStore) ForEachUnit(ctx context.Context, fn func(Unit) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	query := fmt.Sprintf(`SELECT %s FROM units ORDER BY path, page, position`, unitColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to scan units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		u, err := scanUnit(rows)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of stored units.
func (s *UnitStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM units`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count units: %w", err)
	}
	return n, nil
}

// Stats aggregates unit counts by document, domain, and content type.
func (s *UnitStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	stats := &Stats{
		Domains:      make(map[string]int),
		ContentTypes: make(map[string]int),
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT fingerprint) FROM units`)
	if err := row.Scan(&stats.Units, &stats.Documents); err != nil {
		return nil, fmt.Errorf("failed to aggregate units: %w", err)
	}

	if err := s.groupCount(ctx, "domain", stats.Domains); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "content_type", stats.ContentTypes); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *UnitStore) groupCount(ctx context.Context, column string, into map[string]int) error {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM units GROUP BY %s`, column, column)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to group by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to scan %s group: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}

// SetMeta stores one piece of index metadata, like the active embedding
// provider or the last rebuild time.
func (s *UnitStore) SetMeta(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta reads one piece of index metadata. The second return reports
// whether the key exists.
func (s *UnitStore) GetMeta(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, fmt.Errorf("store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, true, nil
}

// Checkpoint forces a WAL checkpoint so all changes reach the main database
// file.
func (s *UnitStore) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Close checkpoints and closes the store. Safe to call twice.
func (s *UnitStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (Unit, error) {
	var u Unit
	var topics, createdAt string
	err := row.Scan(&u.ID, &u.Fingerprint, &u.Path, &u.Page, &u.Position,
		&u.Text, &u.RawText, &u.Context, &u.SectionPath, &u.ContentType,
		&u.Domain, &topics, &u.CharCount, &u.SizeClass, &createdAt)
	if err != nil {
		return Unit{}, fmt.Errorf("failed to scan unit: %w", err)
	}
	if err := json.Unmarshal([]byte(topics), &u.Topics); err != nil {
		return Unit{}, fmt.Errorf("failed to decode topics for %s: %w", u.ID, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		u.CreatedAt = t
	}
	return u, nil
}
