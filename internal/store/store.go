// Package store persists crawl jobs and their documents in Postgres.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"scorch/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("store: not found")

// Job kinds and statuses.
const (
	KindCrawl = "crawl"

	StatusPending   = "pending"
	StatusScraping  = "scraping"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Job is one row of the jobs table.
type Job struct {
	ID          uuid.UUID
	Kind        string
	Status      string
	URL         string
	Input       json.RawMessage
	Error       sql.NullString
	Total       int
	Completed   int
	CreditsUsed int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// Store wraps a shared *sql.DB with pooling.
type Store struct {
	DB *sql.DB
}

// Open connects to Postgres through the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func New(database *sql.DB) *Store {
	return &Store{DB: database}
}

// Migrate applies all pending migrations from the embedded directory.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

const jobColumns = `id, kind, status, url, input, error, total, completed, credits_used, created_at, updated_at, expires_at`

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Kind, &j.Status, &j.URL, &j.Input, &j.Error,
		&j.Total, &j.Completed, &j.CreditsUsed, &j.CreatedAt, &j.UpdatedAt, &j.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return j, err
}

// CreateJob inserts a pending job. retention controls expires_at.
func (s *Store) CreateJob(ctx context.Context, id uuid.UUID, kind, url string, input any, retention time.Duration) (Job, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return Job{}, err
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO jobs (id, kind, status, url, input, expires_at)
		VALUES ($1, $2, $3, $4, $5, now() + $6::interval)
		RETURNING `+jobColumns,
		id, kind, StatusPending, url, payload, fmt.Sprintf("%d seconds", int(retention.Seconds())))
	return scanJob(row)
}

// GetJob fetches one job by id.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (Job, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ClaimPendingJob atomically moves the oldest pending job of the given
// kind to scraping and returns it. ErrNotFound means nothing to do.
func (s *Store) ClaimPendingJob(ctx context.Context, kind string) (Job, error) {
	row := s.DB.QueryRowContext(ctx, `
		UPDATE jobs SET status = $1, updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE kind = $2 AND status = $3
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+jobColumns, StatusScraping, kind, StatusPending)
	return scanJob(row)
}

// UpdateJobStatus moves a job to a new status. Terminal states are
// absorbing, and cancelled wins over any late completion.
func (s *Store) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, errMsg string) error {
	var e sql.NullString
	if errMsg != "" {
		e = sql.NullString{String: errMsg, Valid: true}
	}
	_, err := s.DB.ExecContext(ctx, `
		UPDATE jobs SET status = $2, error = COALESCE($3, error), updated_at = now()
		WHERE id = $1 AND status NOT IN ($4, $5, $6)`,
		id, status, e, StatusCompleted, StatusCancelled, StatusFailed)
	return err
}

// CancelJob marks a job cancelled unless it already failed or was
// cancelled. A cancel that races a completion still wins.
func (s *Store) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE jobs SET status = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ($2, $3)`,
		id, StatusCancelled, StatusFailed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateJobProgress records crawl counters.
func (s *Store) UpdateJobProgress(ctx context.Context, id uuid.UUID, completed, total, creditsUsed int) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE jobs SET completed = $2, total = $3, credits_used = $4, updated_at = now()
		WHERE id = $1`,
		id, completed, total, creditsUsed)
	return err
}

// AddDocument stores one scraped document as JSON.
func (s *Store) AddDocument(ctx context.Context, jobID uuid.UUID, url string, doc *model.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO documents (job_id, url, document) VALUES ($1, $2, $3)`,
		jobID, url, payload)
	return err
}

// ListDocuments returns up to limit documents after the given cursor,
// plus the cursor for the next page (0 when exhausted).
func (s *Store) ListDocuments(ctx context.Context, jobID uuid.UUID, after int64, limit int) ([]model.Document, int64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, document FROM documents
		WHERE job_id = $1 AND id > $2
		ORDER BY id
		LIMIT $3`,
		jobID, after, limit+1)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []model.Document
	var lastID int64
	for rows.Next() {
		var id int64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, 0, err
		}
		if len(docs) == limit {
			// One extra row fetched just to detect another page.
			return docs, lastID, rows.Err()
		}
		var doc model.Document
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
		lastID = id
	}
	return docs, 0, rows.Err()
}

// AddCrawlError records a per-URL failure.
func (s *Store) AddCrawlError(ctx context.Context, jobID uuid.UUID, entry model.CrawlErrorEntry) error {
	id, err := uuid.Parse(entry.ID)
	if err != nil {
		id = uuid.New()
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO crawl_errors (id, job_id, url, error) VALUES ($1, $2, $3, $4)`,
		id, jobID, entry.URL, entry.Error)
	return err
}

// AddRobotsBlocked records a URL the crawl skipped for robots.txt.
func (s *Store) AddRobotsBlocked(ctx context.Context, jobID uuid.UUID, url string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO robots_blocked (job_id, url) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		jobID, url)
	return err
}

// GetCrawlErrors returns the error entries and robots-blocked URLs for
// a job.
func (s *Store) GetCrawlErrors(ctx context.Context, jobID uuid.UUID) ([]model.CrawlErrorEntry, []string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, url, error, occurred_at FROM crawl_errors
		WHERE job_id = $1 ORDER BY occurred_at`, jobID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var entries []model.CrawlErrorEntry
	for rows.Next() {
		var id uuid.UUID
		var e model.CrawlErrorEntry
		var ts time.Time
		if err := rows.Scan(&id, &e.URL, &e.Error, &ts); err != nil {
			return nil, nil, err
		}
		e.ID = id.String()
		e.Timestamp = ts.UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	blockedRows, err := s.DB.QueryContext(ctx, `
		SELECT url FROM robots_blocked WHERE job_id = $1 ORDER BY url`, jobID)
	if err != nil {
		return nil, nil, err
	}
	defer blockedRows.Close()

	var blocked []string
	for blockedRows.Next() {
		var u string
		if err := blockedRows.Scan(&u); err != nil {
			return nil, nil, err
		}
		blocked = append(blocked, u)
	}
	return entries, blocked, blockedRows.Err()
}

// DeleteExpired removes jobs past their retention window. Documents
// and errors follow via ON DELETE CASCADE.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM jobs WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
