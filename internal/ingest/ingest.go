// Package ingest turns raw page records into stored product identities
// and price observations.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lmichel/beautytrack/internal/brand"
	"github.com/lmichel/beautytrack/internal/events"
	"github.com/lmichel/beautytrack/internal/models"
	"github.com/lmichel/beautytrack/internal/storage"
)

// EventPublisher announces first sightings. Nil publishers are allowed;
// ingestion then runs without events.
type EventPublisher interface {
	PublishNewProductDetected(ctx context.Context, payload *events.NewProductDetectedPayload) error
}

// Result aggregates the outcome of one batch.
type Result struct {
	Upserted int
	Created  int
	Skipped  map[models.SkipReason]int
}

func newResult() *Result {
	return &Result{Skipped: make(map[models.SkipReason]int)}
}

// SkippedTotal sums skips across all reasons.
func (r *Result) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// Ingester validates records, resolves identity, appends prices and
// publishes discovery events.
type Ingester struct {
	store        storage.Store
	normalizer   *brand.Normalizer
	publisher    EventPublisher
	targetBrands []string
	logger       *slog.Logger

	now func() time.Time
}

func New(store storage.Store, normalizer *brand.Normalizer, publisher EventPublisher, targetBrands []string, logger *slog.Logger) *Ingester {
	if normalizer == nil {
		normalizer = brand.New(nil)
	}
	return &Ingester{
		store:        store,
		normalizer:   normalizer,
		publisher:    publisher,
		targetBrands: targetBrands,
		logger:       logger.With("component", "ingester"),
		now:          time.Now,
	}
}

// IngestBatch processes one page worth of records for a site. A record
// that fails validation or the brand filter is counted and dropped; a
// storage error aborts the batch.
func (i *Ingester) IngestBatch(ctx context.Context, site string, records []models.RawRecord) (*Result, error) {
	result := newResult()

	for idx := range records {
		rec := &records[idx]

		if reason := rec.Validate(); reason != "" {
			result.Skipped[reason]++
			i.logger.Debug("record skipped",
				"site", site,
				"reason", string(reason),
				"product_id", rec.ProductID,
			)
			continue
		}

		if !i.normalizer.Matches(rec.Brand, i.targetBrands) {
			result.Skipped[models.SkipBrandFiltered]++
			continue
		}

		if err := i.ingestOne(ctx, site, rec, result); err != nil {
			return result, fmt.Errorf("failed to ingest %s/%s: %w", site, rec.ProductID, err)
		}
	}

	return result, nil
}

func (i *Ingester) ingestOne(ctx context.Context, site string, rec *models.RawRecord, result *Result) error {
	canonical := i.normalizer.Normalize(rec.Brand)

	id, created, err := i.store.UpsertProduct(ctx, storage.ProductFields{
		Site:      site,
		ProductID: rec.ProductID,
		Name:      rec.Name,
		Brand:     canonical,
		Category:  rec.Category,
		URL:       rec.URL,
		ImageURL:  rec.ImageURL,
	})
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}

	result.Upserted++
	if created {
		result.Created++
	}

	currency := rec.Currency
	if currency == "" {
		currency = "EUR"
	}

	if rec.HasPrice() {
		if err := i.store.AppendPrice(ctx, id, rec.Price, currency, i.now()); err != nil {
			return fmt.Errorf("append price failed: %w", err)
		}
	}

	if created && i.publisher != nil {
		payload := &events.NewProductDetectedPayload{
			Site:      site,
			ProductID: rec.ProductID,
			Name:      rec.Name,
			Brand:     canonical,
			Category:  rec.Category,
			URL:       rec.URL,
			ImageURL:  rec.ImageURL,
		}
		if rec.HasPrice() {
			payload.Price = &events.Price{Amount: rec.Price, Currency: currency}
		}
		// A lost event must not fail ingestion; the product row is
		// already committed.
		if err := i.publisher.PublishNewProductDetected(ctx, payload); err != nil {
			i.logger.Error("failed to publish discovery event",
				"site", site,
				"product_id", rec.ProductID,
				"error", err,
			)
		}
	}

	return nil
}
