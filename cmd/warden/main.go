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
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	wardenhttp "github.com/wardenhq/warden/internal/adapter/http"
	wardennats "github.com/wardenhq/warden/internal/adapter/nats"
	"github.com/wardenhq/warden/internal/adapter/natskv"
	"github.com/wardenhq/warden/internal/adapter/otel"
	"github.com/wardenhq/warden/internal/adapter/postgres"
	"github.com/wardenhq/warden/internal/adapter/ristretto"
	"github.com/wardenhq/warden/internal/adapter/tiered"
	"github.com/wardenhq/warden/internal/adapter/ws"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/logger"
	"github.com/wardenhq/warden/internal/middleware"
	"github.com/wardenhq/warden/internal/port/cache"
	"github.com/wardenhq/warden/internal/port/messagequeue"
	"github.com/wardenhq/warden/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLogger := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closeLogger.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownTelemetry := otel.InitNoop()
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err = otel.Init(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		slog.Info("telemetry exporting", "endpoint", cfg.Telemetry.Endpoint)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool)
	if cfg.Dev.Seed {
		if err := store.SeedDev(ctx); err != nil {
			return fmt.Errorf("dev seed: %w", err)
		}
		slog.Info("dev fixtures seeded")
	}

	// NATS is optional: without a broker, decision events are simply not
	// published and the service still authorizes requests.
	var queue messagequeue.Queue
	if q, err := wardennats.Connect(ctx, cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, events disabled", "url", cfg.NATS.URL, "error", err)
	} else {
		queue = q
		defer func() { _ = q.Close() }()
		slog.Info("nats connected")
	}

	// Read cache for admin endpoints: in-process ristretto, tiered over
	// a shared NATS KV bucket when a broker is available.
	l1, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()

	var readCache cache.Cache = l1
	if q, ok := queue.(*wardennats.Queue); ok {
		kv, err := q.KeyValue(ctx, "warden-cache", cfg.Cache.TTL)
		if err != nil {
			slog.Warn("nats kv unavailable, using local cache only", "error", err)
		} else {
			readCache = tiered.New(l1, natskv.New(kv), cfg.Cache.TTL)
		}
	}

	// --- Services ---
	hub := ws.NewHub()
	authorizeSvc := service.NewAuthorizeService(store, queue, hub, metrics)
	escalationSvc := service.NewEscalationService(store, queue, hub, metrics)
	adminSvc := service.NewAdminService(store, readCache, queue, hub, cfg.Cache.TTL)
	auditSvc := service.NewAuditService(store)

	// --- HTTP ---
	handlers := &wardenhttp.Handlers{
		Authorize:   authorizeSvc,
		Escalations: escalationSvc,
		Admin:       adminSvc,
		Audit:       auditSvc,
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()

	r.Use(wardenhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(wardenhttp.SecurityHeaders)
	r.Use(wardenhttp.Logger)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(limiter.Handler)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))

	r.Get("/health", healthHandler(pool.Ping, queue))
	r.Get("/ws", hub.HandleWS)

	wardenhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// healthHandler reports liveness plus dependency status.
func healthHandler(pingDB func(context.Context) error, queue messagequeue.Queue) http.HandlerFunc {
	type healthStatus struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
		NATS     string `json:"nats"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok", Postgres: "ok", NATS: "ok"}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pingDB(ctx); err != nil {
			status.Status = "degraded"
			status.Postgres = "unreachable"
		}
		if queue == nil || !queue.IsConnected() {
			status.NATS = "disconnected"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
