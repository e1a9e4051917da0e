package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pmll/casefile/internal/model"
)

// SQLiteStore is a durable Archive and KeyStore backed by SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS archived_events (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		ts          TEXT NOT NULL,
		content     TEXT NOT NULL,
		source      TEXT NOT NULL,
		confidence  REAL NOT NULL,
		kind        TEXT NOT NULL DEFAULT 'observation',
		archived_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_archived_source ON archived_events(source);
	CREATE INDEX IF NOT EXISTS idx_archived_kind ON archived_events(kind);

	CREATE TABLE IF NOT EXISTS report_keys (
		report_id  TEXT PRIMARY KEY,
		key        BLOB NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append archives events in a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, events []model.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range events {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO archived_events (id, ts, content, source, confidence, kind, archived_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.Content, e.Source, e.Confidence, e.Kind, now)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archived_events`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) All(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, content, source, confidence, kind FROM archived_events ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) PutKey(ctx context.Context, reportID string, key []byte) error {
	if reportID == "" {
		return fmt.Errorf("report id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO report_keys (report_id, key, created_at) VALUES (?, ?, ?)`,
		reportID, key, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetKey(ctx context.Context, reportID string) ([]byte, error) {
	var key []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT key FROM report_keys WHERE report_id = ?`, reportID).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s: %w", reportID, ErrKeyNotFound)
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (s *SQLiteStore) DeleteKey(ctx context.Context, reportID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM report_keys WHERE report_id = ?`, reportID)
	return err
}

func (s *SQLiteStore) PendingKeys(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM report_keys`).Scan(&n)
	return n, err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row scanner) (model.Event, error) {
	var e model.Event
	var ts string

	err := row.Scan(&e.ID, &ts, &e.Content, &e.Source, &e.Confidence, &e.Kind)
	if err != nil {
		return e, err
	}

	e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return e, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	return e, nil
}
