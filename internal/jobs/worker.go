package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const pollInterval = 10 * time.Second

// StartWorker polls for pending jobs and runs them one at a time until
// the context is cancelled.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("job worker stopping")
			return
		case <-ticker.C:
			m.processNextJob(ctx)
		}
	}
}

// processNextJob claims and runs the oldest pending job.
func (m *Manager) processNextJob(ctx context.Context) {
	jobID, site, category, maxPages, err := m.claimNextJob(ctx)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			m.logger.Error("failed to claim job", "error", err)
		}
		return
	}

	m.logger.Info("processing job", "id", jobID, "site", site)

	result := m.runner.RunSiteLimited(ctx, site, category, maxPages)

	if err := m.markFinished(ctx, jobID, result); err != nil {
		m.logger.Error("failed to record job outcome", "id", jobID, "error", err)
		return
	}

	if result.Err != nil {
		m.logger.Error("job failed", "id", jobID, "site", site, "error", result.Err)
		return
	}

	m.logger.Info("job completed",
		"id", jobID,
		"site", site,
		"pages", result.Pages,
		"upserted", result.Upserted,
		"created", result.Created,
	)
}

// claimNextJob selects the oldest pending job and marks it running in one
// transaction, so the SKIP LOCKED row lock covers the status change and
// concurrent workers never claim the same job twice.
func (m *Manager) claimNextJob(ctx context.Context) (jobID, site, category string, maxPages int, err error) {
	err = m.db.Transaction(ctx, func(tx pgx.Tx) error {
		query := `
			SELECT id, site, category, max_pages
			FROM crawl_jobs
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`
		if err := tx.QueryRow(ctx, query).Scan(&jobID, &site, &category, &maxPages); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`UPDATE crawl_jobs SET status = $1, started_at = NOW() WHERE id = $2`,
			StatusRunning, jobID)
		return err
	})
	return jobID, site, category, maxPages, err
}
