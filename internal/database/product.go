package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lmichel/beautytrack/internal/models"
	"github.com/lmichel/beautytrack/internal/storage"
)

var _ storage.Store = (*DB)(nil)

// UpsertProduct inserts or updates a product keyed on (site, product_id).
// On first insert the novelty marker is written in the same transaction,
// with detected_at equal to the product's first_seen. The unique
// constraint plus ON CONFLICT makes concurrent upserts for the same key
// converge on a single row.
func (db *DB) UpsertProduct(ctx context.Context, f storage.ProductFields) (int64, bool, error) {
	query := `
		INSERT INTO products (site, product_id, name, brand, category, url, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (site, product_id) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			url = EXCLUDED.url,
			image_url = EXCLUDED.image_url,
			last_updated = NOW()
		RETURNING id, first_seen, (xmax = 0) AS inserted`

	var (
		id        int64
		firstSeen time.Time
		inserted  bool
	)

	err := db.Transaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			f.Site, f.ProductID, f.Name, f.Brand, f.Category, f.URL, f.ImageURL,
		).Scan(&id, &firstSeen, &inserted)
		if err != nil {
			return fmt.Errorf("failed to upsert product: %w", err)
		}

		if inserted {
			_, err = tx.Exec(ctx,
				`INSERT INTO novelties (product_id, detected_at) VALUES ($1, $2)`,
				id, firstSeen)
			if err != nil {
				return fmt.Errorf("failed to insert novelty marker: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, false, err
	}

	return id, inserted, nil
}

// FindProduct retrieves a product by its (site, product_id) identity.
// Returns nil when absent.
func (db *DB) FindProduct(ctx context.Context, site, productID string) (*models.Product, error) {
	return db.queryOneProduct(ctx, `WHERE p.site = $1 AND p.product_id = $2`, site, productID)
}

// GetProduct retrieves a product by internal id. Returns nil when absent.
func (db *DB) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return db.queryOneProduct(ctx, `WHERE p.id = $1`, id)
}

const productColumns = `
	SELECT p.id, p.site, p.product_id, p.name, p.brand, p.category,
	       p.url, p.image_url, p.first_seen, p.last_updated,
	       lp.price, lp.currency
	FROM products p
	LEFT JOIN LATERAL (
		SELECT price, currency FROM prices
		WHERE product_id = p.id
		ORDER BY timestamp DESC
		LIMIT 1
	) lp ON true`

func (db *DB) queryOneProduct(ctx context.Context, where string, args ...interface{}) (*models.Product, error) {
	p := &models.Product{}
	var currency *string

	err := db.pool.QueryRow(ctx, productColumns+" "+where, args...).Scan(
		&p.ID, &p.Site, &p.ProductID, &p.Name, &p.Brand, &p.Category,
		&p.URL, &p.ImageURL, &p.FirstSeen, &p.LastUpdated,
		&p.CurrentPrice, &currency,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if currency != nil {
		p.Currency = *currency
	}

	return p, nil
}

// ListProducts returns products with their current price attached,
// narrowed by the filter, in insertion order.
func (db *DB) ListProducts(ctx context.Context, filter storage.ProductFilter) ([]*models.Product, error) {
	query := productColumns
	var args []interface{}
	var conds []string

	if filter.Site != "" {
		args = append(args, filter.Site)
		conds = append(conds, fmt.Sprintf("p.site = $%d", len(args)))
	}
	if filter.Brand != "" {
		args = append(args, filter.Brand)
		conds = append(conds, fmt.Sprintf("LOWER(p.brand) = LOWER($%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(p.name ILIKE $%d OR p.brand ILIKE $%d)", n, n))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY p.id"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return db.scanProducts(ctx, query, args...)
}

// AppendPrice appends one observation to a product's price ledger.
func (db *DB) AppendPrice(ctx context.Context, productID int64, price float64, currency string, ts time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO prices (product_id, price, currency, timestamp)
		 SELECT $1, $2, $3, $4 WHERE EXISTS (SELECT 1 FROM products WHERE id = $1)`,
		productID, price, currency, ts)
	if err != nil {
		return fmt.Errorf("failed to append price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrProductNotFound
	}
	return nil
}

// LatestPrice returns the most recent observation for a product, or nil
// when none exists.
func (db *DB) LatestPrice(ctx context.Context, productID int64) (*models.PriceObservation, error) {
	obs := &models.PriceObservation{}
	err := db.pool.QueryRow(ctx,
		`SELECT product_id, price, currency, timestamp
		 FROM prices WHERE product_id = $1
		 ORDER BY timestamp DESC LIMIT 1`,
		productID).Scan(&obs.ProductID, &obs.Price, &obs.Currency, &obs.Timestamp)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}
	return obs, nil
}

// PriceHistory returns all observations for a product ascending by
// timestamp.
func (db *DB) PriceHistory(ctx context.Context, productID int64) ([]models.PriceObservation, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT product_id, price, currency, timestamp
		 FROM prices WHERE product_id = $1
		 ORDER BY timestamp ASC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var history []models.PriceObservation
	for rows.Next() {
		var obs models.PriceObservation
		if err := rows.Scan(&obs.ProductID, &obs.Price, &obs.Currency, &obs.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		history = append(history, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return history, nil
}

// Novelties returns products first seen at or after the given time, with
// detected_at and current price attached.
func (db *DB) Novelties(ctx context.Context, since time.Time) ([]*models.Product, error) {
	query := `
		SELECT p.id, p.site, p.product_id, p.name, p.brand, p.category,
		       p.url, p.image_url, p.first_seen, p.last_updated,
		       lp.price, lp.currency, n.detected_at
		FROM products p
		JOIN novelties n ON n.product_id = p.id
		LEFT JOIN LATERAL (
			SELECT price, currency FROM prices
			WHERE product_id = p.id
			ORDER BY timestamp DESC
			LIMIT 1
		) lp ON true
		WHERE n.detected_at >= $1
		ORDER BY n.detected_at DESC`

	rows, err := db.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query novelties: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		var currency *string
		var detected time.Time
		err := rows.Scan(
			&p.ID, &p.Site, &p.ProductID, &p.Name, &p.Brand, &p.Category,
			&p.URL, &p.ImageURL, &p.FirstSeen, &p.LastUpdated,
			&p.CurrentPrice, &currency, &detected,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan novelty: %w", err)
		}
		if currency != nil {
			p.Currency = *currency
		}
		p.DetectedAt = &detected
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating novelties: %w", err)
	}

	return products, nil
}

// CleanupOlderThan deletes products not re-observed since the cutoff.
// Prices and novelty markers cascade.
func (db *DB) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM products WHERE last_updated < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup products: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats aggregates counters for the dashboard endpoint. The price
// aggregates and promotion count are computed over each product's
// current (latest) price.
type Stats struct {
	TotalProducts    int            `json:"total_products"`
	ProductsBySite   map[string]int `json:"products_by_site"`
	TotalBrands      int            `json:"total_brands"`
	NewLastWeek      int            `json:"new_last_week"`
	TotalPrices      int            `json:"total_prices"`
	AvgPrice         float64        `json:"average_price"`
	MinPrice         float64        `json:"min_price"`
	MaxPrice         float64        `json:"max_price"`
	ActivePromotions int            `json:"active_promotions"`
}

// GetStats returns global counters over the store.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ProductsBySite: make(map[string]int)}

	rows, err := db.pool.Query(ctx,
		`SELECT site, COUNT(*) FROM products GROUP BY site`)
	if err != nil {
		return nil, fmt.Errorf("failed to count products by site: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var site string
		var count int
		if err := rows.Scan(&site, &count); err != nil {
			return nil, fmt.Errorf("failed to scan site count: %w", err)
		}
		stats.ProductsBySite[site] = count
		stats.TotalProducts += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating site counts: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT brand) FROM products WHERE brand <> ''`).Scan(&stats.TotalBrands)
	if err != nil {
		return nil, fmt.Errorf("failed to count brands: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM novelties WHERE detected_at > NOW() - INTERVAL '7 days'`).Scan(&stats.NewLastWeek)
	if err != nil {
		return nil, fmt.Errorf("failed to count novelties: %w", err)
	}

	err = db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prices`).Scan(&stats.TotalPrices)
	if err != nil {
		return nil, fmt.Errorf("failed to count prices: %w", err)
	}

	err = db.pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(lp.price), 0),
		       COALESCE(MIN(lp.price), 0),
		       COALESCE(MAX(lp.price), 0)
		FROM products p
		JOIN LATERAL (
			SELECT price FROM prices
			WHERE product_id = p.id
			ORDER BY timestamp DESC
			LIMIT 1
		) lp ON true`).Scan(&stats.AvgPrice, &stats.MinPrice, &stats.MaxPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate current prices: %w", err)
	}

	err = db.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM products p
		JOIN LATERAL (
			SELECT price FROM prices
			WHERE product_id = p.id
			ORDER BY timestamp DESC
			LIMIT 1
		) cur ON true
		JOIN LATERAL (
			SELECT price FROM prices
			WHERE product_id = p.id AND timestamp < NOW() - INTERVAL '7 days'
			ORDER BY timestamp DESC
			LIMIT 1
		) old ON true
		WHERE cur.price < old.price`).Scan(&stats.ActivePromotions)
	if err != nil {
		return nil, fmt.Errorf("failed to count active promotions: %w", err)
	}

	return stats, nil
}

func (db *DB) scanProducts(ctx context.Context, query string, args ...interface{}) ([]*models.Product, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		var currency *string
		err := rows.Scan(
			&p.ID, &p.Site, &p.ProductID, &p.Name, &p.Brand, &p.Category,
			&p.URL, &p.ImageURL, &p.FirstSeen, &p.LastUpdated,
			&p.CurrentPrice, &currency,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if currency != nil {
			p.Currency = *currency
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}
