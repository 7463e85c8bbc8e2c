package storage

import (
	"context"
	"time"

	"github.com/lmichel/beautytrack/internal/models"
)

// ProductFields carries the mutable identity attributes written on every
// observation of a product.
type ProductFields struct {
	Site      string
	ProductID string
	Name      string
	Brand     string
	Category  string
	URL       string
	ImageURL  string
}

// ProductFilter narrows ListProducts results. Zero values mean "no
// constraint"; Search matches name or brand case-insensitively.
type ProductFilter struct {
	Site   string
	Brand  string
	Search string
	Limit  int
}

// Store persists product identities, their append-only price ledger and
// novelty markers.
//
// UpsertProduct is the single write path for identities: insert-or-update
// keyed on (site, product_id), atomic under concurrent writers. When the
// product is created the implementation also records a novelty marker in
// the same atomic unit, with detected_at equal to first_seen.
type Store interface {
	UpsertProduct(ctx context.Context, f ProductFields) (id int64, created bool, err error)
	FindProduct(ctx context.Context, site, productID string) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]*models.Product, error)

	AppendPrice(ctx context.Context, productID int64, price float64, currency string, ts time.Time) error
	LatestPrice(ctx context.Context, productID int64) (*models.PriceObservation, error)
	PriceHistory(ctx context.Context, productID int64) ([]models.PriceObservation, error)

	// Novelties returns products whose marker falls in [since, now],
	// with DetectedAt and CurrentPrice populated.
	Novelties(ctx context.Context, since time.Time) ([]*models.Product, error)

	// CleanupOlderThan removes products not re-observed since the cutoff,
	// together with their prices and markers. Returns the removed count.
	CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
