package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/xssautomation/xssbot/internal/model"
)

// sqlitePoolSize is the number of pooled connections next to the pinned one.
const sqlitePoolSize = 4

// SQLiteStore is a Store backed by an in-memory SQLite database. Each report
// is kept as a JSON document next to its summary columns.
//
// Connections share one cache in read-uncommitted mode, so reads take no
// table locks and never wait for a write. Writers would conflict on the
// table lock and are serialized.
type SQLiteStore struct {
	db      *sql.DB
	pinned  *sql.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

// OpenSQLite creates a private in-memory database. The database is never
// written to disk and lives until Close.
func OpenSQLite() (*SQLiteStore, error) {
	dsn := "file:xssbot-" + uuid.NewString() +
		"?mode=memory&cache=shared&_pragma=read_uncommitted(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(sqlitePoolSize + 1)
	db.SetMaxIdleConns(sqlitePoolSize)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	// An in-memory database disappears with its last connection. The pinned
	// connection keeps it alive however the pool shrinks.
	ctx := context.Background()
	pinned, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, pinned: pinned}
	if err := s.createTables(ctx); err != nil {
		_ = pinned.Close() //nolint:errcheck // already failing
		_ = db.Close()     //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		identity TEXT NOT NULL,
		domain TEXT NOT NULL,
		scanned_at TEXT NOT NULL,
		vulnerable INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL,
		PRIMARY KEY (identity, domain)
	);
	`
	_, err := s.pinned.ExecContext(ctx, schema)
	return err
}

// Put implements Store. A report for an existing key replaces it.
func (s *SQLiteStore) Put(ctx context.Context, identity model.Identity, domain model.Domain, report *model.Report) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := checkPut(identity, domain, report); err != nil {
		return err
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO reports (identity, domain, scanned_at, vulnerable, report_json)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(identity, domain) DO UPDATE SET
		scanned_at = excluded.scanned_at,
		vulnerable = excluded.vulnerable,
		report_json = excluded.report_json
	`
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.db.ExecContext(ctx, query,
		string(identity),
		string(domain),
		report.ScannedAt.UTC().Format(time.RFC3339Nano),
		report.Vulnerable(),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save report for %s: %w", domain, err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, identity model.Identity, domain model.Domain) (*model.Report, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}

	query := `SELECT report_json FROM reports WHERE identity = ? AND domain = ?`

	var reportJSON string
	err := s.db.QueryRowContext(ctx, query, string(identity), string(domain)).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get report for %s: %w", domain, err)
	}

	report, err := decodeReport(reportJSON)
	if err != nil {
		return nil, false, fmt.Errorf("report for %s: %w", domain, err)
	}
	return report, true, nil
}

// DrillDown implements Store. Only the requested artifact is read back.
func (s *SQLiteStore) DrillDown(ctx context.Context, identity model.Identity, domain model.Domain, kind model.ArtifactKind) ([]string, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}

	query := `
	SELECT json_extract(report_json, ?) FROM reports
	WHERE identity = ? AND domain = ?
	`
	path := "$.artifacts." + string(kind)

	var linesJSON sql.NullString
	err := s.db.QueryRowContext(ctx, query, path, string(identity), string(domain)).Scan(&linesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s for %s: %w", kind, domain, err)
	}
	if !linesJSON.Valid {
		return nil, false, nil
	}

	lines := []string{}
	if err := json.Unmarshal([]byte(linesJSON.String), &lines); err != nil {
		return nil, false, fmt.Errorf("failed to parse %s for %s: %w", kind, domain, err)
	}
	return lines, true, nil
}

// Close closes the database, discarding every report.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return errors.Join(s.pinned.Close(), s.db.Close())
}

func decodeReport(reportJSON string) (*model.Report, error) {
	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if report.Counts == nil {
		report.Counts = make(map[model.ArtifactKind]int)
	}
	if report.Artifacts == nil {
		report.Artifacts = make(map[model.ArtifactKind][]string)
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}
	return &report, nil
}
