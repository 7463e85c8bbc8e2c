package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	fields := ProductFields{
		Site:      "sephora",
		ProductID: "P123456",
		Name:      "Daily Microfoliant",
		Brand:     "Dermalogica",
		URL:       "https://www.sephora.fr/p/daily-microfoliant-P123456",
	}

	id, created, err := s.UpsertProduct(ctx, fields)
	require.NoError(t, err)
	assert.True(t, created)

	t.Run("second upsert mutates the same identity", func(t *testing.T) {
		fields.Name = "Daily Microfoliant 74g"
		id2, created2, err := s.UpsertProduct(ctx, fields)
		require.NoError(t, err)
		assert.False(t, created2)
		assert.Equal(t, id, id2)

		p, err := s.FindProduct(ctx, "sephora", "P123456")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Daily Microfoliant 74g", p.Name)
		assert.False(t, p.LastUpdated.Before(p.FirstSeen))
	})

	t.Run("novelty marker recorded once at creation", func(t *testing.T) {
		novelties, err := s.Novelties(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, novelties, 1)
		assert.Equal(t, id, novelties[0].ID)
		require.NotNil(t, novelties[0].DetectedAt)
	})

	t.Run("same local id on another site is a distinct product", func(t *testing.T) {
		other := fields
		other.Site = "nocibe"
		id3, created3, err := s.UpsertProduct(ctx, other)
		require.NoError(t, err)
		assert.True(t, created3)
		assert.NotEqual(t, id, id3)
	})
}

func TestMemoryStorePrices(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, _, err := s.UpsertProduct(ctx, ProductFields{Site: "sephora", ProductID: "P1", Name: "Serum"})
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i, price := range []float64{59, 55, 49} {
		require.NoError(t, s.AppendPrice(ctx, id, price, "EUR", base.Add(time.Duration(i)*time.Minute)))
	}

	t.Run("history ascends by timestamp", func(t *testing.T) {
		history, err := s.PriceHistory(ctx, id)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, 59.0, history[0].Price)
		assert.Equal(t, 49.0, history[2].Price)
	})

	t.Run("latest price is the max timestamp", func(t *testing.T) {
		latest, err := s.LatestPrice(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, 49.0, latest.Price)
	})

	t.Run("list attaches current price", func(t *testing.T) {
		products, err := s.ListProducts(ctx, ProductFilter{})
		require.NoError(t, err)
		require.Len(t, products, 1)
		require.NotNil(t, products[0].CurrentPrice)
		assert.Equal(t, 49.0, *products[0].CurrentPrice)
	})

	t.Run("append to unknown product fails", func(t *testing.T) {
		err := s.AppendPrice(ctx, 9999, 10, "EUR", time.Now())
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestMemoryStoreListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	seed := []ProductFields{
		{Site: "sephora", ProductID: "P1", Name: "Daily Microfoliant", Brand: "Dermalogica"},
		{Site: "nocibe", ProductID: "N1", Name: "C E Ferulic", Brand: "SkinCeuticals"},
		{Site: "sephora", ProductID: "P2", Name: "Special Cleansing Gel", Brand: "Dermalogica"},
	}
	for _, f := range seed {
		_, _, err := s.UpsertProduct(ctx, f)
		require.NoError(t, err)
	}

	bySite, err := s.ListProducts(ctx, ProductFilter{Site: "sephora"})
	require.NoError(t, err)
	assert.Len(t, bySite, 2)

	byBrand, err := s.ListProducts(ctx, ProductFilter{Brand: "dermalogica"})
	require.NoError(t, err)
	assert.Len(t, byBrand, 2)

	bySearch, err := s.ListProducts(ctx, ProductFilter{Search: "ferulic"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, "C E Ferulic", bySearch[0].Name)

	limited, err := s.ListProducts(ctx, ProductFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryStoreCleanup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	old := time.Now().Add(-30 * 24 * time.Hour)
	s.now = func() time.Time { return old }
	_, _, err := s.UpsertProduct(ctx, ProductFields{Site: "sephora", ProductID: "P1", Name: "Stale"})
	require.NoError(t, err)

	s.now = time.Now
	_, _, err = s.UpsertProduct(ctx, ProductFields{Site: "sephora", ProductID: "P2", Name: "Fresh"})
	require.NoError(t, err)

	removed, err := s.CleanupOlderThan(ctx, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := s.ListProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Fresh", remaining[0].Name)
}
