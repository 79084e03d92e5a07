package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/config"
	"github.com/burgerhero/burgerhero-bff/internal/handler"
	"github.com/burgerhero/burgerhero-bff/internal/infra/devauth"
	"github.com/burgerhero/burgerhero-bff/internal/infra/observability"
	"github.com/burgerhero/burgerhero-bff/internal/infra/postgres"
	"github.com/burgerhero/burgerhero-bff/internal/infra/resilience"
	"github.com/burgerhero/burgerhero-bff/internal/infra/state"
	"github.com/burgerhero/burgerhero-bff/internal/infra/supabase"
	"github.com/burgerhero/burgerhero-bff/internal/port"
	"github.com/burgerhero/burgerhero-bff/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv()

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("dev_auth", cfg.DevAuth),
		zap.String("profile_backend", cfg.ProfileBackend),
		zap.String("state_backend", cfg.StateBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("device_ttl", cfg.DeviceTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Strings("cors_origins", cfg.CORSOrigins),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "burgerhero-bff")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()

	var checks []handler.HealthCheck

	// --- Identity & profiles ---
	var authAPI port.AuthAPI
	var profiles port.ProfileStore

	if cfg.DevAuth {
		logger.Warn("DEV_AUTH enabled: identities and profiles are served from memory")
		dev := devauth.New(cfg.CookieSecret, logger)
		if err := dev.Seed(devauth.DefaultSeed()); err != nil {
			logger.Fatal("failed to seed dev accounts", zap.Error(err))
		}
		authAPI, profiles = dev, dev
		checks = append(checks, handler.HealthCheck{Name: "devauth", Ping: dev.Ping})
	} else {
		guard := resilience.NewGuard("supabase", resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}, logger)
		sb := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			guard,
			logger,
		)
		logger.Info("using Supabase identity provider", zap.String("supabase_url", cfg.SupabaseURL))
		authAPI, profiles = sb, sb
		checks = append(checks, handler.HealthCheck{Name: "supabase", Ping: sb.Ping})

		if cfg.ProfileBackend == config.ProfileBackendPostgres {
			pg, err := postgres.Connect(startCtx, cfg.DatabaseURL, logger)
			if err != nil {
				logger.Fatal("failed to connect to postgres", zap.Error(err))
			}
			defer pg.Close()
			logger.Info("using direct Postgres profile store")
			profiles = pg
			checks = append(checks, handler.HealthCheck{Name: "postgres", Ping: pg.Ping})
		}
	}

	// --- Device state ---
	var store port.StateStore
	switch cfg.StateBackend {
	case config.StateBackendRedis:
		rdb, err := state.NewRedis(startCtx, state.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      30 * 24 * time.Hour,
		}, logger)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		store = rdb
		checks = append(checks, handler.HealthCheck{Name: "redis", Ping: rdb.Ping})
	default:
		store = state.NewMemory()
	}

	// --- Services ---
	devices := service.NewDevices(authAPI, profiles, store, cfg.DeviceTTL, metrics, logger)
	defer devices.Close()
	account := service.NewAccountService(devices, profiles, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Config{
		Account:      account,
		Cookies:      handler.NewDeviceCookies(cfg.CookieSecret, cfg.CookieSecure),
		Metrics:      metrics,
		HealthChecks: checks,
		CORSOrigins:  cfg.CORSOrigins,
		Logger:       logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
