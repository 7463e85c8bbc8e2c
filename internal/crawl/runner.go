// Package crawl drives multi-site crawl runs: one goroutine per site,
// pages strictly sequential within a site.
package crawl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lmichel/beautytrack/internal/config"
	"github.com/lmichel/beautytrack/internal/fetch"
	"github.com/lmichel/beautytrack/internal/ingest"
	"github.com/lmichel/beautytrack/internal/models"
	"github.com/lmichel/beautytrack/internal/ratelimit"
	"github.com/lmichel/beautytrack/internal/sites"
)

// requestJitter is the upper bound of the random slack added to every
// inter-request delay.
const requestJitter = 500 * time.Millisecond

// SiteResult is the outcome of one site's crawl.
type SiteResult struct {
	Site     string
	Pages    int
	Records  int
	Upserted int
	Created  int
	Skipped  int
	Failures []*fetch.PageError

	// Err is set when the site's job failed as a whole: unknown site,
	// cancellation, or a storage failure. Page-level fetch failures land
	// in Failures instead.
	Err error
}

// Summary aggregates a whole run across sites.
type Summary struct {
	Sites    []SiteResult
	Started  time.Time
	Finished time.Time
}

// TotalCreated sums first sightings across all sites.
func (s *Summary) TotalCreated() int {
	total := 0
	for _, site := range s.Sites {
		total += site.Created
	}
	return total
}

// TotalUpserted sums stored records across all sites.
func (s *Summary) TotalUpserted() int {
	total := 0
	for _, site := range s.Sites {
		total += site.Upserted
	}
	return total
}

// Runner wires adapters, the fetch executor and the ingester into crawl
// runs. Each site gets its own rate limiter so one slow site never
// starves another.
type Runner struct {
	client   *sites.Client
	ingester *ingest.Ingester
	cfg      config.CrawlerConfig
	logger   *slog.Logger

	// newAdapter resolves a site name to its adapter, replaced in tests.
	newAdapter func(site string, client *sites.Client) (fetch.Adapter, error)
}

func NewRunner(client *sites.Client, ingester *ingest.Ingester, cfg config.CrawlerConfig, logger *slog.Logger) *Runner {
	return &Runner{
		client:     client,
		ingester:   ingester,
		cfg:        cfg,
		logger:     logger.With("component", "crawl_runner"),
		newAdapter: sites.New,
	}
}

// RunAll crawls every named site concurrently and waits for all of them.
// A failing site job never takes its siblings down; its error is carried
// in the per-site result.
func (r *Runner) RunAll(ctx context.Context, siteNames []string, category string) *Summary {
	summary := &Summary{
		Sites:   make([]SiteResult, len(siteNames)),
		Started: time.Now(),
	}

	var wg sync.WaitGroup
	for i, name := range siteNames {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			summary.Sites[i] = r.RunSite(ctx, name, category)
		}(i, name)
	}
	wg.Wait()

	summary.Finished = time.Now()
	return summary
}

// RunSite crawls one site to completion with the configured page budget.
func (r *Runner) RunSite(ctx context.Context, site, category string) SiteResult {
	return r.RunSiteLimited(ctx, site, category, 0)
}

// RunSiteLimited crawls one site with an explicit page budget. A
// non-positive maxPages falls back to the configured default.
func (r *Runner) RunSiteLimited(ctx context.Context, site, category string, maxPages int) SiteResult {
	if maxPages <= 0 {
		maxPages = r.cfg.MaxPages
	}
	result := SiteResult{Site: site}

	adapter, err := r.newAdapter(site, r.client)
	if err != nil {
		r.logger.Error("site job failed", "site", site, "error", err)
		result.Err = err
		return result
	}

	limiter := ratelimit.NewDelayLimiter(r.cfg.RequestDelay, requestJitter)
	executor := fetch.NewExecutor(limiter, r.logger)

	fetchCfg := fetch.Config{
		Category:       category,
		MaxPages:       maxPages,
		MaxRetries:     r.cfg.MaxRetries,
		RetryBaseDelay: r.cfg.RetryBaseDelay,
		Timeout:        r.cfg.RequestTimeout,
	}

	crawlResult, err := executor.Crawl(ctx, adapter, fetchCfg, func(page int, records []models.RawRecord) error {
		batch, err := r.ingester.IngestBatch(ctx, site, records)
		if batch != nil {
			result.Upserted += batch.Upserted
			result.Created += batch.Created
			result.Skipped += batch.SkippedTotal()
		}
		return err
	})
	if crawlResult != nil {
		result.Pages = crawlResult.Pages
		result.Records = crawlResult.Records
		result.Failures = crawlResult.Failures
	}
	if err != nil {
		r.logger.Error("site job aborted", "site", site, "error", err)
		result.Err = err
		return result
	}

	r.logger.Info("site crawl finished",
		"site", site,
		"pages", result.Pages,
		"records", result.Records,
		"upserted", result.Upserted,
		"created", result.Created,
		"skipped", result.Skipped,
		"failed_pages", len(result.Failures),
	)

	return result
}
