package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage is the SQLite output sink. Every appended record becomes one row
// tagged with the run that produced it; rows are never updated except the
// run row itself, which is closed by the final summary.
type Storage struct {
	db    *sql.DB
	runID int64
	mu    sync.Mutex
}

// NewStorage creates a new Storage instance, opening/creating the DB, initializing schema and opening a run
func NewStorage(dbPath string) (*Storage, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	res, err := db.Exec("INSERT INTO runs (started_at) VALUES (?)", time.Now().UTC())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open run: %w", err)
	}
	if storage.runID, err = res.LastInsertId(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read run id: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		total_urls INTEGER,
		total_emails INTEGER,
		duration_ms INTEGER
	);

	CREATE TABLE IF NOT EXISTS emails (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		target_url TEXT NOT NULL,
		email TEXT NOT NULL,
		found_on TEXT NOT NULL,
		first_seen_at TIMESTAMP NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE TABLE IF NOT EXISTS targets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		pages_scraped INTEGER DEFAULT 0,
		pages_failed INTEGER DEFAULT 0,
		emails TEXT,
		social_profiles TEXT,
		error TEXT,
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_emails_run ON emails(run_id);
	CREATE INDEX IF NOT EXISTS idx_emails_email ON emails(email);
	CREATE INDEX IF NOT EXISTS idx_targets_run ON targets(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RunID returns the id of the run this Storage writes to
func (s *Storage) RunID() int64 {
	return s.runID
}

// Append persists one record
func (s *Storage) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case rec.Email != nil:
		return s.insertEmail(ctx, rec.Email)
	case rec.Target != nil:
		return s.insertTarget(ctx, rec.Target)
	case rec.Final != nil:
		return s.closeRun(ctx, rec.Final)
	default:
		return fmt.Errorf("empty %s record", rec.Kind)
	}
}

func (s *Storage) insertEmail(ctx context.Context, e *EmailRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emails (run_id, target_url, email, found_on, first_seen_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.runID, e.URL, e.Email, e.FoundOn, e.FirstSeenAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert email: %w", err)
	}
	return nil
}

func (s *Storage) insertTarget(ctx context.Context, t *RunSummary) error {
	emails, err := json.Marshal(t.Emails)
	if err != nil {
		return fmt.Errorf("failed to marshal emails: %w", err)
	}
	social, err := json.Marshal(t.SocialProfiles)
	if err != nil {
		return fmt.Errorf("failed to marshal social profiles: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO targets (run_id, url, status, pages_scraped, pages_failed, emails, social_profiles, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.runID, t.URL, string(t.Status), t.PagesScraped, t.PagesFailed, string(emails), string(social), t.Error,
		t.StartedAt.UTC(), t.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert target summary: %w", err)
	}
	return nil
}

func (s *Storage) closeRun(ctx context.Context, f *FinalSummary) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, total_urls = ?, total_emails = ?, duration_ms = ?
		WHERE run_id = ?
	`, time.Now().UTC(), f.TotalURLs, f.TotalEmails, f.DurationMs, s.runID)
	if err != nil {
		return fmt.Errorf("failed to close run: %w", err)
	}
	return nil
}

// ListEmails returns the email records of the current run in insertion order
func (s *Storage) ListEmails(ctx context.Context) ([]EmailRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target_url, email, found_on, first_seen_at
		FROM emails
		WHERE run_id = ?
		ORDER BY id ASC
	`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	var records []EmailRecord
	for rows.Next() {
		var rec EmailRecord
		if err := rows.Scan(&rec.URL, &rec.Email, &rec.FoundOn, &rec.FirstSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emails: %w", err)
	}

	return records, nil
}

// ListTargets returns the target summaries of the current run in insertion order
func (s *Storage) ListTargets(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, status, pages_scraped, pages_failed, emails, error
		FROM targets
		WHERE run_id = ?
		ORDER BY id ASC
	`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			sum    RunSummary
			status string
			emails string
			errStr sql.NullString
		)
		if err := rows.Scan(&sum.URL, &status, &sum.PagesScraped, &sum.PagesFailed, &emails, &errStr); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		sum.Status = RunStatus(status)
		sum.Error = errStr.String
		if err := json.Unmarshal([]byte(emails), &sum.Emails); err != nil {
			return nil, fmt.Errorf("failed to decode emails for %s: %w", sum.URL, err)
		}
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating targets: %w", err)
	}

	return summaries, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
