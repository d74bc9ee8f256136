package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/memoslot/memoslot/internal/cache"
	"github.com/memoslot/memoslot/internal/engine"
	"github.com/memoslot/memoslot/internal/ingest"
	"github.com/memoslot/memoslot/internal/store"
	"github.com/memoslot/memoslot/pkg/config"
	"github.com/memoslot/memoslot/pkg/health"
	"github.com/memoslot/memoslot/pkg/kafka"
	"github.com/memoslot/memoslot/pkg/logger"
	"github.com/memoslot/memoslot/pkg/metrics"
	"github.com/memoslot/memoslot/pkg/postgres"
	pkgredis "github.com/memoslot/memoslot/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting memoslot engine", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Close()
	if err := store.EnsureSchema(ctx, pgClient); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	slotStore := store.NewPostgresStore(pgClient)

	var searchCache *cache.SearchCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		searchCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	m := metrics.New()
	mergeProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SlotMerged)
	defer mergeProducer.Close()

	eng := engine.New(slotStore, engine.Options{
		Cache:       searchCache,
		Metrics:     m,
		MergeEvents: mergeProducer,
		Search:      cfg.Search,
		Merge:       cfg.Merge,
	})
	if err := eng.Load(ctx); err != nil {
		slog.Error("failed to load slot corpus", "error", err)
		os.Exit(1)
	}

	applier := ingest.NewApplier(eng, slotStore)
	mutationConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SlotMutations, applier.Handle)
	go func() {
		if err := mutationConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("mutation consumer error", "error", err)
		}
	}()
	defer mutationConsumer.Close()

	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		slots, entries, terms := eng.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d slots, %d entries, %d terms", slots, entries, terms),
		}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("memoslot engine listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("memoslot engine stopped")
}
