package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lmichel/beautytrack/internal/models"
	"github.com/lmichel/beautytrack/internal/ratelimit"
)

// Adapter extracts raw product records from one site, one listing page at
// a time. Adapters are retry-naive: pacing, retries and timeouts all live
// in the Executor. An empty page signals the end of pagination.
type Adapter interface {
	Site() string
	FetchPage(ctx context.Context, page int, category string) ([]models.RawRecord, error)
}

// Config bounds one crawl pass over a single site.
type Config struct {
	Category       string
	MaxPages       int
	MaxRetries     int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// PageError reports that one page could not be fetched after all retries.
// It never aborts the surrounding crawl.
type PageError struct {
	Site string
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("fetch failed: site=%s page=%d: %v", e.Site, e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Result summarizes one crawl pass.
type Result struct {
	Site     string
	Pages    int
	Records  int
	Failures []*PageError
}

// PageHandler consumes the records of one successfully fetched page.
type PageHandler func(page int, records []models.RawRecord) error

// Executor is the single place where rate limiting, retries and timeouts
// are applied around adapter calls.
type Executor struct {
	limiter ratelimit.Limiter
	logger  *slog.Logger

	// sleep is the backoff clock, replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(limiter ratelimit.Limiter, logger *slog.Logger) *Executor {
	if limiter == nil {
		limiter = ratelimit.NopLimiter{}
	}
	return &Executor{
		limiter: limiter,
		logger:  logger.With("component", "fetch_executor"),
		sleep:   sleepContext,
	}
}

// Crawl walks the adapter's pages sequentially until MaxPages, the first
// empty page, or context cancellation. A page whose retries are exhausted
// is recorded as a failure and the crawl moves on; only cancellation or a
// handler error stops it.
func (e *Executor) Crawl(ctx context.Context, adapter Adapter, cfg Config, handle PageHandler) (*Result, error) {
	cfg = cfg.withDefaults()
	result := &Result{Site: adapter.Site()}

	for page := 1; page <= cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		records, err := e.FetchPage(ctx, adapter, page, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			pageErr := &PageError{Site: adapter.Site(), Page: page, Err: err}
			e.logger.Warn("page failed, continuing crawl",
				"site", adapter.Site(), "page", page, "error", err)
			result.Failures = append(result.Failures, pageErr)
			continue
		}

		if len(records) == 0 {
			e.logger.Info("adapter exhausted", "site", adapter.Site(), "last_page", page)
			break
		}

		result.Pages++
		result.Records += len(records)

		if err := handle(page, records); err != nil {
			return result, fmt.Errorf("page handler failed on page %d: %w", page, err)
		}
	}

	return result, nil
}

// FetchPage fetches one page with the full retry discipline: rate-limit
// wait before every attempt, per-attempt timeout, doubling backoff
// between attempts.
func (e *Executor) FetchPage(ctx context.Context, adapter Adapter, page int, cfg Config) ([]models.RawRecord, error) {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		records, err := e.fetchOnce(ctx, adapter, page, cfg)
		if err == nil {
			return records, nil
		}
		lastErr = err

		e.logger.Warn("fetch attempt failed",
			"site", adapter.Site(),
			"page", page,
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"error", err)

		if attempt < cfg.MaxRetries-1 {
			backoff := cfg.RetryBaseDelay << attempt
			if err := e.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("exhausted %d attempts: %w", cfg.MaxRetries, lastErr)
}

func (e *Executor) fetchOnce(ctx context.Context, adapter Adapter, page int, cfg Config) ([]models.RawRecord, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	return adapter.FetchPage(attemptCtx, page, cfg.Category)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
