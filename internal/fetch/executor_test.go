package fetch

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmichel/beautytrack/internal/models"
)

// flakyAdapter fails a configurable number of times per page before
// succeeding, and reports an empty page after lastPage.
type flakyAdapter struct {
	failuresPerPage map[int]int
	pages           map[int][]models.RawRecord
	calls           map[int]int
}

func newFlakyAdapter() *flakyAdapter {
	return &flakyAdapter{
		failuresPerPage: make(map[int]int),
		pages:           make(map[int][]models.RawRecord),
		calls:           make(map[int]int),
	}
}

func (a *flakyAdapter) Site() string { return "sephora" }

func (a *flakyAdapter) FetchPage(ctx context.Context, page int, category string) ([]models.RawRecord, error) {
	a.calls[page]++
	if a.calls[page] <= a.failuresPerPage[page] {
		return nil, errors.New("connection reset")
	}
	return a.pages[page], nil
}

func record(id string) models.RawRecord {
	return models.RawRecord{ProductID: id, Name: "Product " + id, Price: 10}
}

func testExecutor() (*Executor, *[]time.Duration) {
	var slept []time.Duration
	e := NewExecutor(nil, slog.Default())
	e.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return e, &slept
}

func TestFetchPageRetriesWithDoublingBackoff(t *testing.T) {
	adapter := newFlakyAdapter()
	adapter.failuresPerPage[1] = 2
	adapter.pages[1] = []models.RawRecord{record("P1")}

	e, slept := testExecutor()
	cfg := Config{MaxRetries: 3, RetryBaseDelay: 5 * time.Second}

	records, err := e.FetchPage(context.Background(), adapter, 1, cfg)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, 3, adapter.calls[1])
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, *slept)
}

func TestFetchPageExhaustsRetries(t *testing.T) {
	adapter := newFlakyAdapter()
	adapter.failuresPerPage[1] = 10

	e, slept := testExecutor()
	cfg := Config{MaxRetries: 3, RetryBaseDelay: time.Second}

	_, err := e.FetchPage(context.Background(), adapter, 1, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted 3 attempts")
	assert.Equal(t, 3, adapter.calls[1])
	// No backoff after the final attempt.
	assert.Len(t, *slept, 2)
}

func TestCrawlContinuesPastFailedPage(t *testing.T) {
	adapter := newFlakyAdapter()
	adapter.failuresPerPage[1] = 10
	adapter.pages[2] = []models.RawRecord{record("P2"), record("P3")}

	e, _ := testExecutor()
	cfg := Config{MaxPages: 3, MaxRetries: 2, RetryBaseDelay: time.Millisecond}

	var handled []models.RawRecord
	result, err := e.Crawl(context.Background(), adapter, cfg, func(page int, records []models.RawRecord) error {
		handled = append(handled, records...)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, 1, result.Failures[0].Page)
	assert.Equal(t, "sephora", result.Failures[0].Site)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 2, result.Records)
	assert.Len(t, handled, 2)
}

func TestCrawlStopsOnEmptyPage(t *testing.T) {
	adapter := newFlakyAdapter()
	adapter.pages[1] = []models.RawRecord{record("P1")}
	adapter.pages[2] = []models.RawRecord{record("P2")}
	// Page 3 is empty: end of pagination, not an error.

	e, _ := testExecutor()
	cfg := Config{MaxPages: 10, MaxRetries: 3, RetryBaseDelay: time.Millisecond}

	result, err := e.Crawl(context.Background(), adapter, cfg, func(int, []models.RawRecord) error {
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Pages)
	assert.Empty(t, result.Failures)
	assert.Equal(t, 1, adapter.calls[3])
	assert.Equal(t, 0, adapter.calls[4])
}

func TestCrawlHonorsCancellation(t *testing.T) {
	adapter := newFlakyAdapter()
	adapter.pages[1] = []models.RawRecord{record("P1")}

	e, _ := testExecutor()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := e.Crawl(ctx, adapter, Config{MaxPages: 5}, func(page int, _ []models.RawRecord) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrawlStopsOnHandlerError(t *testing.T) {
	adapter := newFlakyAdapter()
	adapter.pages[1] = []models.RawRecord{record("P1")}

	e, _ := testExecutor()
	handlerErr := errors.New("storage down")

	_, err := e.Crawl(context.Background(), adapter, Config{MaxPages: 5}, func(int, []models.RawRecord) error {
		return handlerErr
	})
	assert.ErrorIs(t, err, handlerErr)
}
