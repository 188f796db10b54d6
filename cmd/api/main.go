// Package main implements the Showfloor API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ShowfloorAI/showfloor-mvp/engine/convstate"
	"github.com/ShowfloorAI/showfloor-mvp/engine/floor"
	"github.com/ShowfloorAI/showfloor-mvp/engine/inventory"
	"github.com/ShowfloorAI/showfloor-mvp/engine/recommend"
	"github.com/ShowfloorAI/showfloor-mvp/engine/retrieve"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/metrics"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/mid"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/resilience"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/sessionstore"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	MetricsPort   int
	InventoryFile string
	RedisAddr     string
	RedisPass     string
	RedisDB       int
	SessionTTL    time.Duration
	CORSOrigin    string
	RateRPS       float64
	RateBurst     int
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		MetricsPort:   envInt("METRICS_PORT", 9091),
		InventoryFile: envOr("INVENTORY_FILE", "data/inventory.json"),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPass:     envOr("REDIS_PASS", ""),
		RedisDB:       envInt("REDIS_DB", 0),
		SessionTTL:    envDuration("SESSION_TTL", 720*time.Hour),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		RateRPS:       envFloat("RATE_RPS", 50),
		RateBurst:     envInt("RATE_BURST", 100),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()

	// --- Session snapshot store ---
	// Redis being down is not fatal: sessions just lose durability until it
	// comes back and the binary restarts.
	var store sessionstore.Store
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		rs, err := sessionstore.NewRedis(pingCtx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.SessionTTL)
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, session snapshots held in memory", "addr", cfg.RedisAddr, "err", err)
			store = sessionstore.NewMemory()
		} else {
			defer rs.Close()
			store = rs
			logger.Info("session snapshots in redis", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
		}
	} else {
		store = sessionstore.NewMemory()
	}

	// --- Build the engine ---
	svc := floor.New(floor.Deps{
		States:    convstate.NewManager(store, logger),
		Retriever: retrieve.New(retrieve.Weights{}, logger),
		Recommend: recommend.New(recommend.Weights{}, logger),
		Source:    inventory.NewFileSource(cfg.InventoryFile, logger),
		Metrics:   met,
		Logger:    logger,
	}, floor.DefaultOptions())

	if err := svc.Rebuild(ctx); err != nil {
		logger.Warn("initial inventory load failed, serving without an index", "file", cfg.InventoryFile, "err", err)
	} else {
		logger.Info("inventory index ready", "vehicles", svc.VehicleCount())
	}

	// --- Metrics side port ---
	stopRuntime := met.StartRuntimeCollector(15 * time.Second)
	defer stopRuntime()
	met.ServeAsync(cfg.MetricsPort)

	// --- Build HTTP server ---
	a := &api{svc: svc, logger: logger}
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.RateRPS, Burst: cfg.RateBurst})

	handler := mid.Chain(a.routes(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("showfloor-api"),
		mid.RateLimit(limiter),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
