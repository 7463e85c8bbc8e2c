// Package api exposes the read-only query surface and job management
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lmichel/beautytrack/internal/analytics"
	"github.com/lmichel/beautytrack/internal/database"
	"github.com/lmichel/beautytrack/internal/export"
	"github.com/lmichel/beautytrack/internal/jobs"
	"github.com/lmichel/beautytrack/internal/sites"
	"github.com/lmichel/beautytrack/internal/storage"
)

const (
	defaultNoveltyWindowDays   = 7
	defaultPromotionWindowDays = 7
	defaultCompetitorTolerance = 10.0
	defaultListLimit           = 100
	defaultBestDealsLimit      = 5
)

// StatsProvider supplies global catalog counters.
type StatsProvider interface {
	GetStats(ctx context.Context) (*database.Stats, error)
}

type Handlers struct {
	store     storage.Store
	analytics *analytics.Engine
	jobs      *jobs.Manager
	exporter  *export.Exporter
	logger    *slog.Logger

	// Stats is optional; when set the /stats endpoint is mounted.
	Stats StatsProvider
}

func NewHandlers(store storage.Store, engine *analytics.Engine, jobManager *jobs.Manager, exporter *export.Exporter, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:     store,
		analytics: engine,
		jobs:      jobManager,
		exporter:  exporter,
		logger:    logger.With("component", "api"),
	}
}

// Routes mounts all endpoints on a chi router.
func (h *Handlers) Routes(r chi.Router) {
	if h.Stats != nil {
		r.Get("/stats", h.GetStats)
	}

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{productID}", h.GetProduct)
		r.Get("/{productID}/price-history", h.GetPriceHistory)
		r.Get("/{productID}/competitors", h.GetCompetitors)
	})

	r.Route("/brands", func(r chi.Router) {
		r.Get("/", h.ListBrands)
		r.Get("/compare", h.CompareBrands)
		r.Get("/{brand}", h.GetBrand)
	})

	r.Get("/new-products", h.GetNovelties)
	r.Get("/promotions", h.GetPromotions)
	r.Get("/best-deals", h.GetBestDeals)
	r.Get("/search", h.Search)
	r.Get("/sites", h.ListSites)

	r.Route("/export", func(r chi.Router) {
		r.Get("/products", h.ExportProducts)
	})

	if h.jobs != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.CreateJob)
			r.Get("/", h.ListJobs)
			r.Get("/stats", h.GetJobStats)
			r.Get("/{jobID}", h.GetJob)
		})
	}
}

// GetStats returns global catalog counters.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Stats.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

// ListProducts handles filtered product listing.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter := storage.ProductFilter{
		Site:   r.URL.Query().Get("site"),
		Brand:  r.URL.Query().Get("brand"),
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", defaultListLimit),
	}

	products, err := h.store.ListProducts(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct returns one product by internal id.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// GetPriceHistory returns a product's full price ledger, oldest first.
func (h *Handlers) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	history, err := h.store.PriceHistory(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get price history", "id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get price history")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"product_id": id,
		"history":    history,
		"count":      len(history),
	})
}

// GetCompetitors returns similarly priced products of other brands.
func (h *Handlers) GetCompetitors(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	tolerance := queryFloat(r, "tolerance", defaultCompetitorTolerance)

	competitors, err := h.analytics.Competitors(r.Context(), id, tolerance)
	if errors.Is(err, storage.ErrProductNotFound) {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to find competitors", "id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to find competitors")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"product_id":  id,
		"tolerance":   tolerance,
		"competitors": competitors,
	})
}

// ListBrands returns stats for every brand in the catalog.
func (h *Handlers) ListBrands(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.AllBrandStats(r.Context())
	if err != nil {
		h.logger.Error("failed to aggregate brands", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to aggregate brands")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"brands": stats,
		"count":  len(stats),
	})
}

// GetBrand returns one brand's stats and price positioning.
func (h *Handlers) GetBrand(w http.ResponseWriter, r *http.Request) {
	brandKey := chi.URLParam(r, "brand")
	if brandKey == "" {
		h.respondError(w, http.StatusBadRequest, "brand is required")
		return
	}

	stats, err := h.analytics.BrandStats(r.Context(), brandKey)
	if err != nil {
		h.logger.Error("failed to get brand stats", "brand", brandKey, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get brand stats")
		return
	}

	positioning, err := h.analytics.PricePositioning(r.Context(), brandKey)
	if err != nil {
		h.logger.Error("failed to get positioning", "brand", brandKey, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get positioning")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"stats":       stats,
		"positioning": positioning,
	})
}

// CompareBrands builds a comparison report for a comma-separated brand
// list.
func (h *Handlers) CompareBrands(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("brands")
	if raw == "" {
		h.respondError(w, http.StatusBadRequest, "brands query parameter is required")
		return
	}

	var brandKeys []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			brandKeys = append(brandKeys, trimmed)
		}
	}
	if len(brandKeys) == 0 {
		h.respondError(w, http.StatusBadRequest, "brands query parameter is required")
		return
	}

	report, err := h.analytics.ComparisonReport(r.Context(), brandKeys)
	if err != nil {
		h.logger.Error("failed to build comparison report", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to build comparison report")
		return
	}

	h.respondJSON(w, http.StatusOK, report)
}

// GetNovelties returns recently discovered products grouped by brand.
func (h *Handlers) GetNovelties(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", defaultNoveltyWindowDays)

	grouped, err := h.analytics.NoveltiesByBrand(r.Context(), days)
	if err != nil {
		h.logger.Error("failed to get novelties", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get novelties")
		return
	}

	total := 0
	for _, products := range grouped {
		total += len(products)
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"window_days": days,
		"by_brand":    grouped,
		"count":       total,
	})
}

// GetPromotions returns products whose price dropped inside the window,
// steepest discount first.
func (h *Handlers) GetPromotions(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", defaultPromotionWindowDays)

	promotions, err := h.analytics.Promotions(r.Context(), days)
	if err != nil {
		h.logger.Error("failed to get promotions", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get promotions")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"window_days": days,
		"promotions":  promotions,
		"count":       len(promotions),
	})
}

// GetBestDeals returns the steepest current discounts, or, when a brand
// is given, that brand's cheapest priced products.
func (h *Handlers) GetBestDeals(w http.ResponseWriter, r *http.Request) {
	if brandKey := r.URL.Query().Get("brand"); brandKey != "" {
		limit := queryInt(r, "limit", defaultBestDealsLimit)

		deals, err := h.analytics.BestDealsByBrand(r.Context(), brandKey, limit)
		if err != nil {
			h.logger.Error("failed to get best deals", "brand", brandKey, "error", err)
			h.respondError(w, http.StatusInternalServerError, "failed to get best deals")
			return
		}

		h.respondJSON(w, http.StatusOK, map[string]any{
			"brand": brandKey,
			"deals": deals,
			"count": len(deals),
		})
		return
	}

	days := queryInt(r, "days", defaultPromotionWindowDays)
	limit := queryInt(r, "limit", 10)

	deals, err := h.analytics.BestDeals(r.Context(), days, limit)
	if err != nil {
		h.logger.Error("failed to get best deals", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get best deals")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"window_days": days,
		"deals":       deals,
	})
}

// Search looks products up by name or brand substring.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	products, err := h.store.ListProducts(r.Context(), storage.ProductFilter{
		Search: query,
		Limit:  queryInt(r, "limit", defaultListLimit),
	})
	if err != nil {
		h.logger.Error("search failed", "q", query, "error", err)
		h.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"query":    query,
		"products": products,
		"count":    len(products),
	})
}

// ListSites returns the implemented site adapters.
func (h *Handlers) ListSites(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{"sites": sites.Names()})
}

// ExportProducts streams the catalog as CSV or JSON. With enhanced=1 the
// rows carry brand-relative analysis columns.
func (h *Handlers) ExportProducts(w http.ResponseWriter, r *http.Request) {
	filter := storage.ProductFilter{
		Site:  r.URL.Query().Get("site"),
		Brand: r.URL.Query().Get("brand"),
	}

	enhanced := queryBool(r, "enhanced")

	var err error
	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		if enhanced {
			err = h.exporter.WriteEnhancedProductsJSON(r.Context(), w, filter)
		} else {
			err = h.exporter.WriteProductsJSON(r.Context(), w, filter)
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="products.csv"`)
		if enhanced {
			err = h.exporter.WriteEnhancedProductsCSV(r.Context(), w, filter)
		} else {
			err = h.exporter.WriteProductsCSV(r.Context(), w, filter)
		}
	default:
		h.respondError(w, http.StatusBadRequest, "format must be csv or json")
		return
	}

	if err != nil {
		h.logger.Error("export failed", "format", format, "enhanced", enhanced, "error", err)
	}
}

// CreateJobRequest represents a new crawl job request.
type CreateJobRequest struct {
	Site     string `json:"site"`
	Category string `json:"category"`
	MaxPages int    `json:"max_pages"`
}

// CreateJob queues a crawl of one site.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Site == "" {
		h.respondError(w, http.StatusBadRequest, "site is required")
		return
	}
	if !knownSite(req.Site) {
		h.respondError(w, http.StatusBadRequest, "unknown site: "+req.Site)
		return
	}
	if req.MaxPages <= 0 {
		req.MaxPages = 10
	}

	job, err := h.jobs.CreateJob(r.Context(), req.Site, req.Category, req.MaxPages)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusCreated, job)
}

// GetJob returns one job by ID.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get job", "id", jobID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs returns recent jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobList, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobList,
		"count": len(jobList),
	})
}

// GetJobStats summarizes the job queue.
func (h *Handlers) GetJobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get job stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get job stats")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

func knownSite(name string) bool {
	for _, site := range sites.Names() {
		if site == name {
			return true
		}
	}
	return false
}

func (h *Handlers) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "productID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid product ID")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
