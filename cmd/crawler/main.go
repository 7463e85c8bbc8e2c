package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lmichel/beautytrack/internal/analytics"
	"github.com/lmichel/beautytrack/internal/brand"
	"github.com/lmichel/beautytrack/internal/config"
	"github.com/lmichel/beautytrack/internal/crawl"
	"github.com/lmichel/beautytrack/internal/database"
	"github.com/lmichel/beautytrack/internal/events"
	"github.com/lmichel/beautytrack/internal/export"
	"github.com/lmichel/beautytrack/internal/ingest"
	"github.com/lmichel/beautytrack/internal/sites"
	"github.com/lmichel/beautytrack/internal/storage"
	"github.com/lmichel/beautytrack/pkg/logger"
)

func main() {
	var (
		siteList = flag.String("sites", "", "Comma-separated sites to crawl (default: configured sites)")
		category = flag.String("category", "", "Category path to crawl on each site")
		maxPages = flag.Int("pages", 0, "Page budget per site (default: configured)")
		outFile  = flag.String("out", "", "Export products after the crawl (path ending in .csv or .json)")
		enhanced = flag.Bool("enhanced", false, "Export with brand-relative analysis columns")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *maxPages > 0 {
		cfg.Crawler.MaxPages = *maxPages
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	var aliases []brand.Alias
	if cfg.Crawler.AliasFile != "" {
		aliases, err = brand.LoadAliases(cfg.Crawler.AliasFile)
		if err != nil {
			log.Error("failed to load brand aliases", "error", err)
			os.Exit(1)
		}
	}
	normalizer := brand.New(aliases)

	publisher := events.NewPublisher(db, log)
	ingester := ingest.New(db, normalizer, publisher, cfg.Crawler.TargetBrands, log)
	client := sites.NewClient(cfg.Crawler.UserAgents)
	runner := crawl.NewRunner(client, ingester, cfg.Crawler, log)

	targets := cfg.Crawler.Sites
	if *siteList != "" {
		targets = splitSites(*siteList)
	}

	log.Info("crawl starting", "sites", targets, "category", *category)

	summary := runner.RunAll(ctx, targets, *category)

	failed := 0
	for _, site := range summary.Sites {
		if site.Err != nil {
			failed++
			log.Error("site failed", "site", site.Site, "error", site.Err)
			continue
		}
		log.Info("site done",
			"site", site.Site,
			"pages", site.Pages,
			"upserted", site.Upserted,
			"created", site.Created,
			"skipped", site.Skipped,
			"failed_pages", len(site.Failures),
		)
	}

	log.Info("crawl finished",
		"duration", summary.Finished.Sub(summary.Started).String(),
		"upserted", summary.TotalUpserted(),
		"created", summary.TotalCreated(),
		"failed_sites", failed,
	)

	if *outFile != "" {
		if err := exportProducts(ctx, db, normalizer, *outFile, *enhanced, log); err != nil {
			log.Error("export failed", "path", *outFile, "error", err)
			os.Exit(1)
		}
	}

	if failed == len(summary.Sites) {
		os.Exit(1)
	}
}

func splitSites(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func exportProducts(ctx context.Context, db *database.DB, normalizer *brand.Normalizer, path string, enhanced bool, log *slog.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	exporter := export.New(db, analytics.New(db, normalizer, log), log)
	switch {
	case strings.HasSuffix(path, ".csv") && enhanced:
		return exporter.WriteEnhancedProductsCSV(ctx, f, storage.ProductFilter{})
	case strings.HasSuffix(path, ".csv"):
		return exporter.WriteProductsCSV(ctx, f, storage.ProductFilter{})
	case enhanced:
		return exporter.WriteEnhancedProductsJSON(ctx, f, storage.ProductFilter{})
	default:
		return exporter.WriteProductsJSON(ctx, f, storage.ProductFilter{})
	}
}
