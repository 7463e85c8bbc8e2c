// Package export writes catalog snapshots as CSV or JSON.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/lmichel/beautytrack/internal/analytics"
	"github.com/lmichel/beautytrack/internal/models"
	"github.com/lmichel/beautytrack/internal/storage"
)

// ProductRow is one exported product with its current price attached.
type ProductRow struct {
	Site         string   `json:"site"`
	ProductID    string   `json:"product_id"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand,omitempty"`
	Category     string   `json:"category,omitempty"`
	URL          string   `json:"url,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	CurrentPrice *float64 `json:"current_price,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	FirstSeen    string   `json:"first_seen"`
	LastUpdated  string   `json:"last_updated"`
}

// EnhancedProductRow is a ProductRow with brand-relative analysis
// attached. The brand delta fields are present only for priced products
// of a brand with a known average; the competitor fields only when at
// least one competitor exists within the tolerance.
type EnhancedProductRow struct {
	ProductRow
	BrandAvgPrice           float64  `json:"brand_avg_price"`
	BrandPositioning        string   `json:"brand_positioning"`
	PriceVsBrandAvg         *float64 `json:"price_vs_brand_avg,omitempty"`
	PriceVsBrandAvgPercent  *float64 `json:"price_vs_brand_avg_percent,omitempty"`
	CompetitorsCount        int      `json:"competitors_count,omitempty"`
	CheapestCompetitor      string   `json:"cheapest_competitor,omitempty"`
	CheapestCompetitorPrice *float64 `json:"cheapest_competitor_price,omitempty"`
}

var csvHeader = []string{
	"site", "product_id", "name", "brand", "category",
	"url", "image_url", "current_price", "currency",
	"first_seen", "last_updated",
}

var enhancedCSVHeader = append(append([]string{}, csvHeader...),
	"brand_avg_price", "brand_positioning",
	"price_vs_brand_avg", "price_vs_brand_avg_percent",
	"competitors_count", "cheapest_competitor", "cheapest_competitor_price",
)

// enhancedCompetitorTolerance bounds the price distance for the
// competitor columns of the enhanced export.
const enhancedCompetitorTolerance = 5.0

type Exporter struct {
	store     storage.Store
	analytics *analytics.Engine
	logger    *slog.Logger
}

func New(store storage.Store, engine *analytics.Engine, logger *slog.Logger) *Exporter {
	return &Exporter{
		store:     store,
		analytics: engine,
		logger:    logger.With("component", "exporter"),
	}
}

// WriteProductsJSON dumps filtered products as a JSON array.
func (e *Exporter) WriteProductsJSON(ctx context.Context, w io.Writer, filter storage.ProductFilter) error {
	rows, err := e.productRows(ctx, filter)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode products: %w", err)
	}

	e.logger.Info("products exported", "format", "json", "count", len(rows))
	return nil
}

// WriteProductsCSV dumps filtered products as CSV with a header row.
func (e *Exporter) WriteProductsCSV(ctx context.Context, w io.Writer, filter storage.ProductFilter) error {
	rows, err := e.productRows(ctx, filter)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range rows {
		price := ""
		if row.CurrentPrice != nil {
			price = strconv.FormatFloat(*row.CurrentPrice, 'f', 2, 64)
		}
		record := []string{
			row.Site, row.ProductID, row.Name, row.Brand, row.Category,
			row.URL, row.ImageURL, price, row.Currency,
			row.FirstSeen, row.LastUpdated,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	e.logger.Info("products exported", "format", "csv", "count", len(rows))
	return nil
}

// WritePriceHistoryCSV dumps one product's full price ledger.
func (e *Exporter) WritePriceHistoryCSV(ctx context.Context, w io.Writer, productID int64) error {
	history, err := e.store.PriceHistory(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to load price history: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"product_id", "price", "currency", "timestamp"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, obs := range history {
		record := []string{
			strconv.FormatInt(obs.ProductID, 10),
			strconv.FormatFloat(obs.Price, 'f', 2, 64),
			obs.Currency,
			obs.Timestamp.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteEnhancedProductsJSON dumps filtered products with brand-relative
// analysis as a JSON array.
func (e *Exporter) WriteEnhancedProductsJSON(ctx context.Context, w io.Writer, filter storage.ProductFilter) error {
	rows, err := e.enhancedRows(ctx, filter)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode enhanced products: %w", err)
	}

	e.logger.Info("products exported", "format", "json", "enhanced", true, "count", len(rows))
	return nil
}

// WriteEnhancedProductsCSV dumps filtered products with brand-relative
// analysis as CSV with a header row.
func (e *Exporter) WriteEnhancedProductsCSV(ctx context.Context, w io.Writer, filter storage.ProductFilter) error {
	rows, err := e.enhancedRows(ctx, filter)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(enhancedCSVHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range rows {
		price := ""
		if row.CurrentPrice != nil {
			price = strconv.FormatFloat(*row.CurrentPrice, 'f', 2, 64)
		}
		record := []string{
			row.Site, row.ProductID, row.Name, row.Brand, row.Category,
			row.URL, row.ImageURL, price, row.Currency,
			row.FirstSeen, row.LastUpdated,
			strconv.FormatFloat(row.BrandAvgPrice, 'f', 2, 64),
			row.BrandPositioning,
			formatOptFloat(row.PriceVsBrandAvg, 2),
			formatOptFloat(row.PriceVsBrandAvgPercent, 1),
			strconv.Itoa(row.CompetitorsCount),
			row.CheapestCompetitor,
			formatOptFloat(row.CheapestCompetitorPrice, 2),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	e.logger.Info("products exported", "format", "csv", "enhanced", true, "count", len(rows))
	return nil
}

func (e *Exporter) enhancedRows(ctx context.Context, filter storage.ProductFilter) ([]EnhancedProductRow, error) {
	products, err := e.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	rows := make([]EnhancedProductRow, 0, len(products))
	for _, p := range products {
		row := EnhancedProductRow{ProductRow: toRow(p)}

		stats, err := e.analytics.BrandStats(ctx, p.Brand)
		if err != nil {
			return nil, err
		}
		positioning, err := e.analytics.PricePositioning(ctx, p.Brand)
		if err != nil {
			return nil, err
		}
		row.BrandAvgPrice = stats.AvgPrice
		row.BrandPositioning = string(positioning)

		if p.CurrentPrice != nil && stats.AvgPrice > 0 {
			diff := *p.CurrentPrice - stats.AvgPrice
			row.PriceVsBrandAvg = roundedPtr(diff, 2)
			row.PriceVsBrandAvgPercent = roundedPtr(diff/stats.AvgPrice*100, 1)
		}

		competitors, err := e.analytics.Competitors(ctx, p.ID, enhancedCompetitorTolerance)
		if err != nil {
			return nil, err
		}
		if len(competitors) > 0 {
			row.CompetitorsCount = len(competitors)
			row.CheapestCompetitor = competitors[0].Product.Name
			row.CheapestCompetitorPrice = competitors[0].Product.CurrentPrice
		}

		rows = append(rows, row)
	}
	return rows, nil
}

func roundedPtr(v float64, decimals int) *float64 {
	scale := math.Pow(10, float64(decimals))
	r := math.Round(v*scale) / scale
	return &r
}

func formatOptFloat(v *float64, decimals int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', decimals, 64)
}

func (e *Exporter) productRows(ctx context.Context, filter storage.ProductFilter) ([]ProductRow, error) {
	products, err := e.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	rows := make([]ProductRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, toRow(p))
	}
	return rows, nil
}

func toRow(p *models.Product) ProductRow {
	return ProductRow{
		Site:         p.Site,
		ProductID:    p.ProductID,
		Name:         p.Name,
		Brand:        p.Brand,
		Category:     p.Category,
		URL:          p.URL,
		ImageURL:     p.ImageURL,
		CurrentPrice: p.CurrentPrice,
		Currency:     p.Currency,
		FirstSeen:    p.FirstSeen.UTC().Format(time.RFC3339),
		LastUpdated:  p.LastUpdated.UTC().Format(time.RFC3339),
	}
}
