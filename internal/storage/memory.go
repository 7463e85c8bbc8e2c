package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lmichel/beautytrack/internal/models"
)

type memoryRecord struct {
	product models.Product
	prices  []models.PriceObservation
	novelty *models.NoveltyMarker
}

// MemoryStore is an in-process Store used by tests and local one-shot
// crawls. A single mutex serializes all writers, which also gives the
// per-key upsert atomicity the interface demands.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byKey  map[string]*memoryRecord
	byID   map[int64]*memoryRecord
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		byKey:  make(map[string]*memoryRecord),
		byID:   make(map[int64]*memoryRecord),
		now:    time.Now,
	}
}

func key(site, productID string) string {
	return site + "\x00" + productID
}

func (s *MemoryStore) UpsertProduct(ctx context.Context, f ProductFields) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if rec, ok := s.byKey[key(f.Site, f.ProductID)]; ok {
		rec.product.Name = f.Name
		rec.product.Brand = f.Brand
		rec.product.Category = f.Category
		rec.product.URL = f.URL
		rec.product.ImageURL = f.ImageURL
		rec.product.LastUpdated = now
		return rec.product.ID, false, nil
	}

	rec := &memoryRecord{
		product: models.Product{
			ID:          s.nextID,
			Site:        f.Site,
			ProductID:   f.ProductID,
			Name:        f.Name,
			Brand:       f.Brand,
			Category:    f.Category,
			URL:         f.URL,
			ImageURL:    f.ImageURL,
			FirstSeen:   now,
			LastUpdated: now,
		},
		novelty: &models.NoveltyMarker{ProductID: s.nextID, DetectedAt: now},
	}
	s.nextID++
	s.byKey[key(f.Site, f.ProductID)] = rec
	s.byID[rec.product.ID] = rec

	return rec.product.ID, true, nil
}

func (s *MemoryStore) FindProduct(ctx context.Context, site, productID string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byKey[key(site, productID)]
	if !ok {
		return nil, nil
	}
	return s.snapshot(rec), nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return s.snapshot(rec), nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, filter ProductFilter) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var products []*models.Product
	for _, rec := range s.byID {
		if filter.Site != "" && rec.product.Site != filter.Site {
			continue
		}
		if filter.Brand != "" && !strings.EqualFold(rec.product.Brand, filter.Brand) {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(rec.product.Name), needle) &&
				!strings.Contains(strings.ToLower(rec.product.Brand), needle) {
				continue
			}
		}
		products = append(products, s.snapshot(rec))
	}

	// Stable encounter order for callers: insertion order by id.
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	if filter.Limit > 0 && len(products) > filter.Limit {
		products = products[:filter.Limit]
	}

	return products, nil
}

func (s *MemoryStore) AppendPrice(ctx context.Context, productID int64, price float64, currency string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[productID]
	if !ok {
		return ErrProductNotFound
	}

	rec.prices = append(rec.prices, models.PriceObservation{
		ProductID: productID,
		Price:     price,
		Currency:  currency,
		Timestamp: ts,
	})
	return nil
}

func (s *MemoryStore) LatestPrice(ctx context.Context, productID int64) (*models.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[productID]
	if !ok || len(rec.prices) == 0 {
		return nil, nil
	}

	latest := rec.prices[0]
	for _, obs := range rec.prices[1:] {
		if !obs.Timestamp.Before(latest.Timestamp) {
			latest = obs
		}
	}
	return &latest, nil
}

func (s *MemoryStore) PriceHistory(ctx context.Context, productID int64) ([]models.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[productID]
	if !ok {
		return nil, nil
	}

	history := make([]models.PriceObservation, len(rec.prices))
	copy(history, rec.prices)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	return history, nil
}

func (s *MemoryStore) Novelties(ctx context.Context, since time.Time) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var products []*models.Product
	for _, rec := range s.byID {
		if rec.novelty == nil || rec.novelty.DetectedAt.Before(since) {
			continue
		}
		p := s.snapshot(rec)
		detected := rec.novelty.DetectedAt
		p.DetectedAt = &detected
		products = append(products, p)
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *MemoryStore) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for k, rec := range s.byKey {
		if rec.product.LastUpdated.Before(cutoff) {
			delete(s.byKey, k)
			delete(s.byID, rec.product.ID)
			removed++
		}
	}
	return removed, nil
}

// snapshot copies a record's product with its current price attached.
// Caller must hold at least the read lock.
func (s *MemoryStore) snapshot(rec *memoryRecord) *models.Product {
	p := rec.product
	if len(rec.prices) > 0 {
		latest := rec.prices[0]
		for _, obs := range rec.prices[1:] {
			if !obs.Timestamp.Before(latest.Timestamp) {
				latest = obs
			}
		}
		price := latest.Price
		p.CurrentPrice = &price
		p.Currency = latest.Currency
	}
	return &p
}
