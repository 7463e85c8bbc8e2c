package crawl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmichel/beautytrack/internal/brand"
	"github.com/lmichel/beautytrack/internal/config"
	"github.com/lmichel/beautytrack/internal/fetch"
	"github.com/lmichel/beautytrack/internal/ingest"
	"github.com/lmichel/beautytrack/internal/models"
	"github.com/lmichel/beautytrack/internal/sites"
	"github.com/lmichel/beautytrack/internal/storage"
)

type fakeAdapter struct {
	site  string
	pages map[int][]models.RawRecord
	fail  map[int]error
}

func (a *fakeAdapter) Site() string { return a.site }

func (a *fakeAdapter) FetchPage(ctx context.Context, page int, _ string) ([]models.RawRecord, error) {
	if err := a.fail[page]; err != nil {
		return nil, err
	}
	return a.pages[page], nil
}

func testRunner(t *testing.T, adapters map[string]*fakeAdapter) (*Runner, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ingester := ingest.New(store, brand.New(nil), nil, nil, logger)

	cfg := config.CrawlerConfig{
		RequestDelay:   0,
		RequestTimeout: time.Second,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		MaxPages:       5,
	}

	runner := NewRunner(sites.NewClient(nil), ingester, cfg, logger)
	runner.newAdapter = func(site string, _ *sites.Client) (fetch.Adapter, error) {
		a, ok := adapters[site]
		if !ok {
			return nil, &sites.ErrUnknownSite{Site: site}
		}
		return a, nil
	}
	return runner, store
}

func TestRunSite(t *testing.T) {
	adapters := map[string]*fakeAdapter{
		"sephora": {
			site: "sephora",
			pages: map[int][]models.RawRecord{
				1: {
					{ProductID: "P1", Name: "Daily Microfoliant", Brand: "Dermalogica", Price: 59},
					{ProductID: "P2", Name: "C E Ferulic", Brand: "SkinCeuticals", Price: 165},
				},
				2: {
					{ProductID: "P3", Name: "", Brand: "Murad", Price: 30},
				},
			},
		},
	}

	runner, store := testRunner(t, adapters)
	result := runner.RunSite(context.Background(), "sephora", "")

	require.NoError(t, result.Err)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 3, result.Records)
	assert.Equal(t, 2, result.Upserted)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)

	products, err := store.ListProducts(context.Background(), storage.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestRunSitePageFailureDoesNotAbort(t *testing.T) {
	adapters := map[string]*fakeAdapter{
		"nocibe": {
			site: "nocibe",
			pages: map[int][]models.RawRecord{
				1: {{ProductID: "N1", Name: "Cleanser", Brand: "Clinique", Price: 25}},
				3: {{ProductID: "N3", Name: "Toner", Brand: "Clinique", Price: 22}},
			},
			fail: map[int]error{2: errors.New("status 503")},
		},
	}

	runner, _ := testRunner(t, adapters)
	result := runner.RunSite(context.Background(), "nocibe", "")

	require.NoError(t, result.Err)
	assert.Equal(t, 2, result.Upserted)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].Page)
}

func TestRunSiteUnknownSite(t *testing.T) {
	runner, _ := testRunner(t, nil)
	result := runner.RunSite(context.Background(), "douglas", "")

	var unknown *sites.ErrUnknownSite
	require.ErrorAs(t, result.Err, &unknown)
	assert.Zero(t, result.Upserted)
}

func TestRunAllIsolatesSiteFailures(t *testing.T) {
	adapters := map[string]*fakeAdapter{
		"sephora": {
			site: "sephora",
			pages: map[int][]models.RawRecord{
				1: {{ProductID: "P1", Name: "Serum", Brand: "Murad", Price: 70}},
			},
		},
	}

	runner, store := testRunner(t, adapters)
	summary := runner.RunAll(context.Background(), []string{"sephora", "douglas"}, "")

	require.Len(t, summary.Sites, 2)
	assert.NoError(t, summary.Sites[0].Err)
	assert.Error(t, summary.Sites[1].Err)
	assert.Equal(t, 1, summary.TotalCreated())
	assert.Equal(t, 1, summary.TotalUpserted())

	products, err := store.ListProducts(context.Background(), storage.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestRunSiteHonorsCancellation(t *testing.T) {
	adapters := map[string]*fakeAdapter{
		"sephora": {
			site: "sephora",
			pages: map[int][]models.RawRecord{
				1: {{ProductID: "P1", Name: "Serum", Brand: "Murad", Price: 70}},
			},
		},
	}

	runner, _ := testRunner(t, adapters)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := runner.RunSite(ctx, "sephora", "")
	assert.ErrorIs(t, result.Err, context.Canceled)
}
