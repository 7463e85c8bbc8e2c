package models

import (
	"time"
)

// RawRecord is one unvalidated product observation as extracted by a site
// adapter from a single listing page.
type RawRecord struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Brand     string  `json:"brand,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Currency  string  `json:"currency,omitempty"`
	URL       string  `json:"url,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
	Category  string  `json:"category,omitempty"`
}

// Product is a stable identity, unique on (Site, ProductID).
type Product struct {
	ID          int64     `json:"id"`
	Site        string    `json:"site"`
	ProductID   string    `json:"product_id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand,omitempty"`
	Category    string    `json:"category,omitempty"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`

	// CurrentPrice is the most recent observation, populated by list
	// queries. Nil when the product has no recorded price yet.
	CurrentPrice *float64 `json:"current_price,omitempty"`
	Currency     string   `json:"currency,omitempty"`

	// DetectedAt is set when the product was loaded through a novelty
	// query.
	DetectedAt *time.Time `json:"detected_at,omitempty"`
}

// PriceObservation is one append-only sample in a product's price ledger.
type PriceObservation struct {
	ProductID int64     `json:"product_id"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// NoveltyMarker records the one-time first sighting of a product.
type NoveltyMarker struct {
	ProductID  int64     `json:"product_id"`
	DetectedAt time.Time `json:"detected_at"`
}

// SkipReason explains why a raw record was dropped during ingestion.
type SkipReason string

const (
	SkipMissingProductID SkipReason = "missing product_id"
	SkipMissingName      SkipReason = "missing name"
	SkipNegativePrice    SkipReason = "negative price"
	SkipBrandFiltered    SkipReason = "brand not in target list"
)

// Validate reports the skip reason for an unusable record, or "" when the
// record can be ingested.
func (r *RawRecord) Validate() SkipReason {
	if r.ProductID == "" {
		return SkipMissingProductID
	}
	if r.Name == "" {
		return SkipMissingName
	}
	if r.Price < 0 {
		return SkipNegativePrice
	}
	return ""
}

// HasPrice reports whether the record carries a usable price sample. Zero
// means the adapter could not extract a price from the tile.
func (r *RawRecord) HasPrice() bool {
	return r.Price > 0
}
