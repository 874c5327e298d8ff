package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Custom errors for catalog operations
var (
	ErrRunNotFound = errors.New("run not found")
	ErrInvalidKind = errors.New("kind must be crawl or pdfs")
)

// Run kinds
const (
	KindCrawl = "crawl"
	KindPDFs  = "pdfs"
)

// Run statuses
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Store records harvest runs in SQLite. Entries are written as the run
// progresses, so the catalog still shows what was fetched when a run dies
// before its output is written.
type Store struct {
	db *sql.DB
}

// Run is one invocation of the crawl or PDF pipeline.
type Run struct {
	RunID      uuid.UUID  `json:"run_id"`
	Kind       string     `json:"kind"`
	SeedURL    string     `json:"seed_url"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Pages      int        `json:"pages"`
	PDFs       int        `json:"pdfs"`
	Failures   int        `json:"failures"`
	LastError  *string    `json:"last_error,omitempty"`
}

// Page is one fetched page of a crawl run.
type Page struct {
	RunID     uuid.UUID `json:"run_id"`
	URL       string    `json:"url"`
	Chars     int       `json:"chars"`
	Error     *string   `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// PDF is one download attempt of a PDF run.
type PDF struct {
	RunID     uuid.UUID `json:"run_id"`
	URL       string    `json:"url"`
	FileName  string    `json:"file_name"`
	Section   string    `json:"section"`
	Title     string    `json:"meeting_title"`
	Date      string    `json:"meeting_date"`
	Bytes     int64     `json:"bytes"`
	PageCount int       `json:"page_count"`
	Error     *string   `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewStore opens (creating if needed) the catalog database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers from a worker pool.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the catalog tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		seed_url TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		last_error TEXT
	);

	CREATE TABLE IF NOT EXISTS pages (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		url TEXT NOT NULL,
		chars INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		fetched_at TEXT NOT NULL,
		PRIMARY KEY (run_id, url)
	);

	CREATE TABLE IF NOT EXISTS pdfs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		url TEXT NOT NULL,
		file_name TEXT NOT NULL,
		section TEXT NOT NULL,
		title TEXT NOT NULL,
		meeting_date TEXT NOT NULL,
		bytes INTEGER NOT NULL DEFAULT 0,
		page_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		fetched_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records the start of a new run.
func (s *Store) StartRun(kind, seedURL string) (*Run, error) {
	if kind != KindCrawl && kind != KindPDFs {
		return nil, ErrInvalidKind
	}

	run := &Run{
		RunID:     uuid.New(),
		Kind:      kind,
		SeedURL:   seedURL,
		Status:    StatusRunning,
		StartedAt: time.Now().Truncate(0),
	}

	query := `
		INSERT INTO runs (run_id, kind, seed_url, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		run.RunID.String(),
		run.Kind,
		run.SeedURL,
		run.Status,
		formatTime(&run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return run, nil
}

// FinishRun marks a run finished, or failed when runErr is non-nil.
func (s *Store) FinishRun(runID uuid.UUID, runErr error) error {
	now := time.Now()
	status := StatusFinished
	var lastError *string
	if runErr != nil {
		status = StatusFailed
		msg := runErr.Error()
		lastError = &msg
	}

	result, err := s.db.Exec(
		"UPDATE runs SET status = ?, finished_at = ?, last_error = ? WHERE run_id = ?",
		status, formatTime(&now), lastError, runID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRunNotFound
	}

	return nil
}

// RecordPage records a fetched page. fetchErr is stored when the page could
// not be fetched or parsed.
func (s *Store) RecordPage(runID uuid.UUID, url string, chars int, fetchErr error) error {
	now := time.Now()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO pages (run_id, url, chars, error, fetched_at) VALUES (?, ?, ?, ?, ?)",
		runID.String(), url, chars, errorString(fetchErr), formatTime(&now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}

	return nil
}

// RecordPDF records a download attempt.
func (s *Store) RecordPDF(pdf PDF) error {
	if pdf.FetchedAt.IsZero() {
		pdf.FetchedAt = time.Now()
	}

	query := `
		INSERT INTO pdfs (
			run_id, url, file_name, section, title, meeting_date,
			bytes, page_count, error, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		pdf.RunID.String(),
		pdf.URL,
		pdf.FileName,
		pdf.Section,
		pdf.Title,
		pdf.Date,
		pdf.Bytes,
		pdf.PageCount,
		pdf.Error,
		formatTime(&pdf.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pdf: %w", err)
	}

	return nil
}

const runColumns = `
	r.run_id, r.kind, r.seed_url, r.status, r.started_at, r.finished_at, r.last_error,
	(SELECT COUNT(*) FROM pages p WHERE p.run_id = r.run_id AND p.error IS NULL),
	(SELECT COUNT(*) FROM pdfs d WHERE d.run_id = r.run_id AND d.error IS NULL),
	(SELECT COUNT(*) FROM pages p WHERE p.run_id = r.run_id AND p.error IS NOT NULL) +
	(SELECT COUNT(*) FROM pdfs d WHERE d.run_id = r.run_id AND d.error IS NOT NULL)
`

// GetRun retrieves a run with its page, PDF and failure counts.
func (s *Store) GetRun(runID uuid.UUID) (*Run, error) {
	query := "SELECT " + runColumns + " FROM runs r WHERE r.run_id = ?"

	run, err := scanRun(s.db.QueryRow(query, runID.String()))
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	return run, nil
}

// ListRuns lists runs, newest first. A limit of zero lists every run.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs r ORDER BY r.rowid DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// ListPages lists the pages of a run in the order they were recorded.
func (s *Store) ListPages(runID uuid.UUID) ([]Page, error) {
	rows, err := s.db.Query(
		"SELECT url, chars, error, fetched_at FROM pages WHERE run_id = ? ORDER BY rowid",
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var url, fetchedAtStr string
		var chars int
		var pageErr sql.NullString

		if err := rows.Scan(&url, &chars, &pageErr, &fetchedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}

		pages = append(pages, Page{
			RunID:     runID,
			URL:       url,
			Chars:     chars,
			Error:     nullString(pageErr),
			FetchedAt: parseTime(fetchedAtStr),
		})
	}

	return pages, rows.Err()
}

// ListPDFs lists the download attempts of a run in discovery order.
func (s *Store) ListPDFs(runID uuid.UUID) ([]PDF, error) {
	query := `
		SELECT url, file_name, section, title, meeting_date,
		       bytes, page_count, error, fetched_at
		FROM pdfs
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := s.db.Query(query, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query pdfs: %w", err)
	}
	defer rows.Close()

	var pdfs []PDF
	for rows.Next() {
		pdf := PDF{RunID: runID}
		var pdfErr sql.NullString
		var fetchedAtStr string

		err := rows.Scan(
			&pdf.URL, &pdf.FileName, &pdf.Section, &pdf.Title, &pdf.Date,
			&pdf.Bytes, &pdf.PageCount, &pdfErr, &fetchedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pdf: %w", err)
		}

		pdf.Error = nullString(pdfErr)
		pdf.FetchedAt = parseTime(fetchedAtStr)
		pdfs = append(pdfs, pdf)
	}

	return pdfs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var runIDStr, kind, seedURL, status, startedAtStr string
	var finishedAtStr, lastError sql.NullString
	var pages, pdfs, failures int

	err := row.Scan(
		&runIDStr, &kind, &seedURL, &status, &startedAtStr,
		&finishedAtStr, &lastError, &pages, &pdfs, &failures,
	)
	if err != nil {
		return nil, err
	}

	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid run_id: %w", err)
	}

	run := &Run{
		RunID:     runID,
		Kind:      kind,
		SeedURL:   seedURL,
		Status:    status,
		StartedAt: parseTime(startedAtStr),
		Pages:     pages,
		PDFs:      pdfs,
		Failures:  failures,
		LastError: nullString(lastError),
	}
	if finishedAtStr.Valid {
		t := parseTime(finishedAtStr.String)
		run.FinishedAt = &t
	}

	return run, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func errorString(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	// Strip monotonic clock for consistent comparisons
	return t.Truncate(0)
}
