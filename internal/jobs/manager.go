// Package jobs queues crawl jobs in Postgres and runs them in the
// background. One job covers one site.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lmichel/beautytrack/internal/crawl"
	"github.com/lmichel/beautytrack/internal/database"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrJobNotFound = errors.New("job not found")

// Job represents one queued crawl of a single site.
type Job struct {
	ID              string     `json:"id"`
	Site            string     `json:"site"`
	Category        string     `json:"category,omitempty"`
	MaxPages        int        `json:"max_pages"`
	Status          string     `json:"status"`
	PagesDone       int        `json:"pages_done"`
	RecordsUpserted int        `json:"records_upserted"`
	RecordsSkipped  int        `json:"records_skipped"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Stats summarizes the job queue.
type Stats struct {
	TotalJobs     int     `json:"total_jobs"`
	PendingJobs   int     `json:"pending_jobs"`
	RunningJobs   int     `json:"running_jobs"`
	CompletedJobs int     `json:"completed_jobs"`
	FailedJobs    int     `json:"failed_jobs"`
	SuccessRate   float64 `json:"success_rate"`
}

type Manager struct {
	db     *database.DB
	runner *crawl.Runner
	logger *slog.Logger
}

func NewManager(db *database.DB, runner *crawl.Runner, logger *slog.Logger) *Manager {
	return &Manager{
		db:     db,
		runner: runner,
		logger: logger.With("component", "job_manager"),
	}
}

// CreateJob queues a crawl of one site.
func (m *Manager) CreateJob(ctx context.Context, site, category string, maxPages int) (*Job, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Site:      site,
		Category:  category,
		MaxPages:  maxPages,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO crawl_jobs (id, site, category, max_pages, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := m.db.Exec(ctx, query,
		job.ID, job.Site, job.Category, job.MaxPages, job.Status, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "site", site, "max_pages", maxPages)
	return job, nil
}

// GetJob retrieves a job by ID.
func (m *Manager) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `
		SELECT id, site, category, max_pages, status,
		       pages_done, records_upserted, records_skipped,
		       COALESCE(error_message, ''), created_at, started_at, finished_at
		FROM crawl_jobs
		WHERE id = $1
	`

	job := &Job{}
	err := m.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID, &job.Site, &job.Category, &job.MaxPages, &job.Status,
		&job.PagesDone, &job.RecordsUpserted, &job.RecordsSkipped,
		&job.Error, &job.CreatedAt, &job.StartedAt, &job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// ListJobs lists the most recent jobs.
func (m *Manager) ListJobs(ctx context.Context) ([]*Job, error) {
	query := `
		SELECT id, site, category, max_pages, status,
		       pages_done, records_upserted, records_skipped,
		       COALESCE(error_message, ''), created_at, started_at, finished_at
		FROM crawl_jobs
		ORDER BY created_at DESC
		LIMIT 100
	`

	rows, err := m.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{}
		err := rows.Scan(
			&job.ID, &job.Site, &job.Category, &job.MaxPages, &job.Status,
			&job.PagesDone, &job.RecordsUpserted, &job.RecordsSkipped,
			&job.Error, &job.CreatedAt, &job.StartedAt, &job.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// GetStats summarizes the queue.
func (m *Manager) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM crawl_jobs
	`
	err := m.db.QueryRow(ctx, query).Scan(
		&stats.TotalJobs, &stats.PendingJobs, &stats.RunningJobs,
		&stats.CompletedJobs, &stats.FailedJobs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}

	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(stats.TotalJobs) * 100
	}

	return stats, nil
}

func (m *Manager) markFinished(ctx context.Context, jobID string, result crawl.SiteResult) error {
	status := StatusCompleted
	var errMsg *string
	if result.Err != nil {
		status = StatusFailed
		msg := result.Err.Error()
		errMsg = &msg
	}

	_, err := m.db.Exec(ctx, `
		UPDATE crawl_jobs
		SET status = $1, pages_done = $2, records_upserted = $3,
		    records_skipped = $4, error_message = $5, finished_at = NOW()
		WHERE id = $6`,
		status, result.Pages, result.Upserted, result.Skipped, errMsg, jobID)
	return err
}
