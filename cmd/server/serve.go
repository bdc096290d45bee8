package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shiva/tripmatch/config"
	"github.com/shiva/tripmatch/internal/cache"
	"github.com/shiva/tripmatch/internal/events"
	"github.com/shiva/tripmatch/internal/handler"
	"github.com/shiva/tripmatch/internal/metrics"
	"github.com/shiva/tripmatch/internal/middleware"
	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/internal/notifier"
	"github.com/shiva/tripmatch/internal/repository"
	"github.com/shiva/tripmatch/internal/repository/memstore"
	"github.com/shiva/tripmatch/internal/service"
	rediscache "github.com/shiva/tripmatch/pkg/cache"
	"github.com/shiva/tripmatch/pkg/db"
	"github.com/shiva/tripmatch/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New("server")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	hub := notifier.NewHub()
	checks := healthChecks{}

	// ── Store ───────────────────────────────────────────
	var (
		store    repository.Store
		listener *repository.TripListener
		mem      *memstore.Store
	)
	switch cfg.Store.Backend {
	case config.BackendMemory:
		mem = memstore.New()
		if cfg.Store.SeedDemo {
			mem.SeedDemo()
		}
		store = mem
		log.Info().Bool("seeded", cfg.Store.SeedDemo).Msg("in-memory store ready")
	default:
		pool, err := db.NewPostgresPool(ctx, cfg.Postgres, db.WithListener())
		if err != nil {
			return fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		defer pool.Close()
		log.Info().Str("host", cfg.Postgres.Host).Msg("PostgreSQL connected")

		store = repository.NewPostgresStore(pool)
		listener = repository.NewTripListener(pool, cfg.Store.NotifyChannel, logger.New("listener"))
		checks["postgres"] = func(ctx context.Context) error { return db.HealthCheck(ctx, pool) }
	}

	// ── Fleet cache (optional) ──────────────────────────
	var fleetCache service.FleetCache
	if cfg.Redis.Host != "" {
		client, err := rediscache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, fleet status uncached")
		} else {
			defer client.Close()
			fleetCache = cache.NewFleetCache(client, cfg.Booking.FleetCacheTTL)
			checks["redis"] = func(ctx context.Context) error { return rediscache.HealthCheck(ctx, client) }
			log.Info().Str("addr", cfg.Redis.Addr()).Msg("Redis connected")
		}
	}

	// ── Driver offers ───────────────────────────────────
	var offers service.DriverNotifier = events.LogNotifier{Log: logger.New("offers")}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TripsTopic, logger.New("kafka"))
		defer func() {
			if err := producer.Close(); err != nil {
				log.Warn().Err(err).Msg("kafka writer close")
			}
		}()
		offers = producer
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.TripsTopic).Msg("Kafka producer ready")
	}

	// ── Services ────────────────────────────────────────
	availabilitySvc := service.NewAvailabilityService(store, m)
	bookingSvc := service.NewBookingService(store, availabilitySvc, offers, m, cfg.Booking.MaxMatchAttempts)
	fleetSvc := service.NewFleetService(store, fleetCache, nil)
	dispatchSvc := service.NewDispatchService(store, m)
	assignmentSvc := service.NewAssignmentService(store, m, nil)
	lifecycleSvc := service.NewLifecycleService(store)

	sink := changeSink(ctx, hub, fleetSvc)
	if mem != nil {
		mem.SetChangeHook(sink)
	}
	if listener != nil {
		go func() {
			if err := listener.Run(ctx, sink); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("trip listener stopped")
			}
		}()
	}

	// ── Router ──────────────────────────────────────────
	router := mux.NewRouter()
	router.Use(middleware.Recoverer(logger.New("http")), middleware.RequestLogger(logger.New("http")), middleware.Metrics(m))
	router.HandleFunc("/health", healthHandler(checks)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	handler.Register(router,
		handler.NewPricingSyncHandler(availabilitySvc, bookingSvc, fleetSvc, dispatchSvc),
		handler.NewDriverHandler(assignmentSvc, hub, m),
		handler.NewTripHandler(assignmentSvc, lifecycleSvc),
	)

	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      middleware.CORS(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Backend).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ── Graceful shutdown ───────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	// Event streams only end when their subscriptions close.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	bookingSvc.Wait()

	log.Info().Msg("server stopped")
	return nil
}

// changeSink fans a trip change out to live driver views and drops the
// cached fleet snapshot.
func changeSink(ctx context.Context, hub *notifier.Hub, fleet *service.FleetService) func(model.TripChange) {
	return func(c model.TripChange) {
		hub.Publish(c)
		fleet.Invalidate(ctx)
	}
}
