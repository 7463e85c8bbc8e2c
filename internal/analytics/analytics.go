// Package analytics computes read-time aggregates over the product and
// price store. Nothing here holds state; every call reads the store fresh.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/lmichel/beautytrack/internal/brand"
	"github.com/lmichel/beautytrack/internal/models"
	"github.com/lmichel/beautytrack/internal/storage"
)

// Positioning is a brand's price tier relative to the global average.
type Positioning string

const (
	PositioningPremium    Positioning = "premium"
	PositioningMid        Positioning = "mid"
	PositioningAccessible Positioning = "accessible"
	PositioningUnknown    Positioning = "unknown"

	premiumThreshold = 1.5
	midThreshold     = 0.8
)

// BrandStats summarizes current prices for one brand, or for the whole
// catalog when Brand is empty.
type BrandStats struct {
	Brand       string   `json:"brand,omitempty"`
	Count       int      `json:"count"`
	AvgPrice    float64  `json:"avg_price"`
	MinPrice    float64  `json:"min_price"`
	MaxPrice    float64  `json:"max_price"`
	MedianPrice float64  `json:"median_price"`
	Sites       []string `json:"sites"`
}

// Competitor is a similarly priced product from a different brand.
type Competitor struct {
	Product          *models.Product `json:"product"`
	PriceDiff        float64         `json:"price_diff"`
	PriceDiffPercent float64         `json:"price_diff_percent"`
}

// BrandReport is one brand's entry in a comparison report.
type BrandReport struct {
	Stats       BrandStats  `json:"stats"`
	Positioning Positioning `json:"positioning"`
}

// ComparisonReport compares several brands side by side.
type ComparisonReport struct {
	Brands           map[string]BrandReport `json:"brands"`
	Ranking          []string               `json:"ranking_by_avg_price"`
	TotalProducts    int                    `json:"total_products"`
	BrandsConsidered int                    `json:"brands_considered"`
}

// Promotion is a product whose current price dropped against an older
// observation. DiscountPercent is signed; a steeper discount is more
// negative.
type Promotion struct {
	Product         *models.Product `json:"product"`
	CurrentPrice    float64         `json:"current_price"`
	PriceBefore     float64         `json:"price_before"`
	DiscountPercent float64         `json:"discount_percent"`
}

// Engine answers analytical queries against a Store.
type Engine struct {
	store      storage.Store
	normalizer *brand.Normalizer
	logger     *slog.Logger

	now func() time.Time
}

func New(store storage.Store, normalizer *brand.Normalizer, logger *slog.Logger) *Engine {
	if normalizer == nil {
		normalizer = brand.New(nil)
	}
	return &Engine{
		store:      store,
		normalizer: normalizer,
		logger:     logger.With("component", "analytics"),
		now:        time.Now,
	}
}

// BrandStats aggregates current prices for one brand, or across the whole
// catalog when brandKey is empty. Count and Sites cover every product in
// the group; only the price figures exclude products without a recorded
// price. An empty group yields zero stats, not an error.
func (e *Engine) BrandStats(ctx context.Context, brandKey string) (*BrandStats, error) {
	products, err := e.brandProducts(ctx, brandKey)
	if err != nil {
		return nil, err
	}

	stats := &BrandStats{Sites: []string{}}
	if brandKey != "" {
		stats.Brand = e.normalizer.Normalize(brandKey)
	}
	stats.Count = len(products)

	var prices []float64
	siteSet := make(map[string]struct{})
	for _, p := range products {
		siteSet[p.Site] = struct{}{}
		if p.CurrentPrice == nil {
			continue
		}
		prices = append(prices, *p.CurrentPrice)
	}

	for site := range siteSet {
		stats.Sites = append(stats.Sites, site)
	}
	sort.Strings(stats.Sites)

	if len(prices) == 0 {
		return stats, nil
	}

	sort.Float64s(prices)
	stats.MinPrice = prices[0]
	stats.MaxPrice = prices[len(prices)-1]
	stats.AvgPrice = mean(prices)
	stats.MedianPrice = median(prices)

	return stats, nil
}

// AllBrandStats aggregates every brand present in the catalog, sorted
// by brand key.
func (e *Engine) AllBrandStats(ctx context.Context) ([]BrandStats, error) {
	products, err := e.store.ListProducts(ctx, storage.ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	seen := make(map[string]struct{})
	var keys []string
	for _, p := range products {
		key := e.normalizer.Normalize(p.Brand)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	stats := make([]BrandStats, 0, len(keys))
	for _, key := range keys {
		s, err := e.BrandStats(ctx, key)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *s)
	}
	return stats, nil
}

// PricePositioning tiers a brand against the global average current
// price. The 1.5x and 0.8x cut-offs are fixed policy constants.
func (e *Engine) PricePositioning(ctx context.Context, brandKey string) (Positioning, error) {
	brandStats, err := e.BrandStats(ctx, brandKey)
	if err != nil {
		return PositioningUnknown, err
	}
	globalStats, err := e.BrandStats(ctx, "")
	if err != nil {
		return PositioningUnknown, err
	}

	return tier(brandStats.AvgPrice, globalStats.AvgPrice), nil
}

// Competitors finds products of other brands priced within tolerance of
// the given product, sorted by how close the prices are. The sort is
// stable so equal distances keep store encounter order.
func (e *Engine) Competitors(ctx context.Context, productID int64, tolerance float64) ([]Competitor, error) {
	product, err := e.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}
	if product == nil {
		return nil, storage.ErrProductNotFound
	}
	if product.CurrentPrice == nil {
		return nil, nil
	}
	basePrice := *product.CurrentPrice
	baseBrand := e.normalizer.Normalize(product.Brand)

	all, err := e.store.ListProducts(ctx, storage.ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	var competitors []Competitor
	for _, other := range all {
		if other.ID == product.ID || other.CurrentPrice == nil {
			continue
		}
		if e.normalizer.Normalize(other.Brand) == baseBrand {
			continue
		}
		diff := *other.CurrentPrice - basePrice
		if math.Abs(diff) > tolerance {
			continue
		}
		competitors = append(competitors, Competitor{
			Product:          other,
			PriceDiff:        diff,
			PriceDiffPercent: diff / basePrice * 100,
		})
	}

	sort.SliceStable(competitors, func(i, j int) bool {
		return math.Abs(competitors[i].PriceDiff) < math.Abs(competitors[j].PriceDiff)
	})

	return competitors, nil
}

// ComparisonReport builds per-brand stats and positioning for a list of
// brands, plus a ranking by average price, most expensive first.
// TotalProducts counts the whole catalog, not only the compared brands.
func (e *Engine) ComparisonReport(ctx context.Context, brandKeys []string) (*ComparisonReport, error) {
	globalStats, err := e.BrandStats(ctx, "")
	if err != nil {
		return nil, err
	}

	report := &ComparisonReport{
		Brands:        make(map[string]BrandReport, len(brandKeys)),
		TotalProducts: globalStats.Count,
	}

	for _, key := range brandKeys {
		stats, err := e.BrandStats(ctx, key)
		if err != nil {
			return nil, err
		}
		report.Brands[stats.Brand] = BrandReport{
			Stats:       *stats,
			Positioning: tier(stats.AvgPrice, globalStats.AvgPrice),
		}
	}
	report.BrandsConsidered = len(report.Brands)

	ranking := make([]string, 0, len(report.Brands))
	for key := range report.Brands {
		ranking = append(ranking, key)
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		si, sj := report.Brands[ranking[i]], report.Brands[ranking[j]]
		if si.Stats.AvgPrice != sj.Stats.AvgPrice {
			return si.Stats.AvgPrice > sj.Stats.AvgPrice
		}
		return ranking[i] < ranking[j]
	})
	report.Ranking = ranking

	return report, nil
}

// NoveltiesByBrand groups products first seen within the window by their
// canonical brand. Markers without a usable detection time are skipped.
func (e *Engine) NoveltiesByBrand(ctx context.Context, windowDays int) (map[string][]*models.Product, error) {
	since := e.now().AddDate(0, 0, -windowDays)

	novelties, err := e.store.Novelties(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load novelties: %w", err)
	}

	grouped := make(map[string][]*models.Product)
	for _, p := range novelties {
		if p.DetectedAt == nil || p.DetectedAt.IsZero() {
			e.logger.Warn("novelty marker without detection time skipped",
				"site", p.Site, "product_id", p.ProductID)
			continue
		}
		key := e.normalizer.Normalize(p.Brand)
		grouped[key] = append(grouped[key], p)
	}

	return grouped, nil
}

// Promotions finds products whose current price is below the latest
// observation older than the window, sorted steepest discount first.
func (e *Engine) Promotions(ctx context.Context, windowDays int) ([]Promotion, error) {
	cutoff := e.now().AddDate(0, 0, -windowDays)

	products, err := e.store.ListProducts(ctx, storage.ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	var promotions []Promotion
	for _, p := range products {
		if p.CurrentPrice == nil {
			continue
		}
		history, err := e.store.PriceHistory(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load price history for %d: %w", p.ID, err)
		}

		before, ok := latestBefore(history, cutoff)
		if !ok || before.Price <= 0 {
			continue
		}

		current := *p.CurrentPrice
		if current >= before.Price {
			continue
		}

		promotions = append(promotions, Promotion{
			Product:         p,
			CurrentPrice:    current,
			PriceBefore:     before.Price,
			DiscountPercent: (current - before.Price) / before.Price * 100,
		})
	}

	sort.SliceStable(promotions, func(i, j int) bool {
		return promotions[i].DiscountPercent < promotions[j].DiscountPercent
	})

	return promotions, nil
}

// BestDeals returns the steepest current promotions, capped at limit.
func (e *Engine) BestDeals(ctx context.Context, windowDays, limit int) ([]Promotion, error) {
	promotions, err := e.Promotions(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(promotions) > limit {
		promotions = promotions[:limit]
	}
	return promotions, nil
}

// BestDealsByBrand returns a brand's cheapest priced products, ascending
// by current price, capped at limit. Products without a recorded price
// are left out.
func (e *Engine) BestDealsByBrand(ctx context.Context, brandKey string, limit int) ([]*models.Product, error) {
	products, err := e.brandProducts(ctx, brandKey)
	if err != nil {
		return nil, err
	}

	var priced []*models.Product
	for _, p := range products {
		if p.CurrentPrice != nil {
			priced = append(priced, p)
		}
	}

	sort.SliceStable(priced, func(i, j int) bool {
		return *priced[i].CurrentPrice < *priced[j].CurrentPrice
	})

	if limit > 0 && len(priced) > limit {
		priced = priced[:limit]
	}
	return priced, nil
}

func (e *Engine) brandProducts(ctx context.Context, brandKey string) ([]*models.Product, error) {
	filter := storage.ProductFilter{}
	if brandKey != "" {
		filter.Brand = e.normalizer.Normalize(brandKey)
	}
	products, err := e.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// latestBefore picks the most recent observation strictly older than the
// cutoff. History is ascending by timestamp.
func latestBefore(history []models.PriceObservation, cutoff time.Time) (models.PriceObservation, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Timestamp.Before(cutoff) {
			return history[i], true
		}
	}
	return models.PriceObservation{}, false
}

// tier maps a brand average onto a price band. A brand with no priced
// products has no meaningful average, hence unknown.
func tier(brandAvg, globalAvg float64) Positioning {
	if brandAvg == 0 || globalAvg == 0 {
		return PositioningUnknown
	}
	ratio := brandAvg / globalAvg
	switch {
	case ratio > premiumThreshold:
		return PositioningPremium
	case ratio > midThreshold:
		return PositioningMid
	default:
		return PositioningAccessible
	}
}

func mean(prices []float64) float64 {
	var sum float64
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices))
}

// median expects its input sorted.
func median(prices []float64) float64 {
	n := len(prices)
	if n%2 == 1 {
		return prices[n/2]
	}
	return (prices[n/2-1] + prices[n/2]) / 2
}
