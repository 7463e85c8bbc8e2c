package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/lmichel/beautytrack/internal/analytics"
	"github.com/lmichel/beautytrack/internal/api"
	"github.com/lmichel/beautytrack/internal/brand"
	"github.com/lmichel/beautytrack/internal/config"
	"github.com/lmichel/beautytrack/internal/crawl"
	"github.com/lmichel/beautytrack/internal/database"
	"github.com/lmichel/beautytrack/internal/events"
	"github.com/lmichel/beautytrack/internal/export"
	"github.com/lmichel/beautytrack/internal/ingest"
	"github.com/lmichel/beautytrack/internal/jobs"
	"github.com/lmichel/beautytrack/internal/sites"
	"github.com/lmichel/beautytrack/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	relay := database.NewRelay(db, redisClient, log, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && err != context.Canceled {
			log.Error("relay stopped with error", "error", err)
		}
	}()

	aliases, err := loadAliases(cfg.Crawler.AliasFile)
	if err != nil {
		log.Error("failed to load brand aliases", "error", err)
		os.Exit(1)
	}
	normalizer := brand.New(aliases)

	publisher := events.NewPublisher(db, log)
	ingester := ingest.New(db, normalizer, publisher, cfg.Crawler.TargetBrands, log)
	client := sites.NewClient(cfg.Crawler.UserAgents)
	runner := crawl.NewRunner(client, ingester, cfg.Crawler, log)
	jobManager := jobs.NewManager(db, runner, log)
	engine := analytics.New(db, normalizer, log)
	exporter := export.New(db, engine, log)

	go jobManager.StartWorker(ctx)

	if cfg.Retention.MaxAge > 0 {
		go runRetention(ctx, db, cfg.Retention.MaxAge, log)
	}

	handlers := api.NewHandlers(db, engine, jobManager, exporter, log)
	handlers.Stats = db

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		pendingCount, _ := relay.GetPendingCount(req.Context())
		deadLetterCount, _ := relay.GetDeadLetterCount(req.Context())

		health := map[string]any{
			"status": "ok",
			"outbox": map[string]any{
				"pending":     pendingCount,
				"dead_letter": deadLetterCount,
			},
		}

		status := http.StatusOK
		if deadLetterCount > 100 {
			health["status"] = "error"
			health["message"] = "high number of dead letter events"
			status = http.StatusServiceUnavailable
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	r.Route("/api/v1", handlers.Routes)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func loadAliases(path string) ([]brand.Alias, error) {
	if path == "" {
		return nil, nil
	}
	return brand.LoadAliases(path)
}

// runRetention prunes products not seen within maxAge, once a day.
func runRetention(ctx context.Context, db *database.DB, maxAge time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-maxAge)
			removed, err := db.CleanupOlderThan(ctx, cutoff)
			if err != nil {
				log.Error("retention cleanup failed", "error", err)
				continue
			}
			log.Info("retention cleanup done", "removed", removed, "cutoff", cutoff)
		}
	}
}
