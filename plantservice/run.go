package plantservice

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantpal/plantpal/internal/api"
	"github.com/plantpal/plantpal/internal/config"
	"github.com/plantpal/plantpal/internal/events"
	"github.com/plantpal/plantpal/internal/factory"
	"github.com/plantpal/plantpal/internal/health"
	"github.com/plantpal/plantpal/internal/logger"
	"github.com/plantpal/plantpal/internal/metrics"
	"github.com/plantpal/plantpal/internal/progression"
	"github.com/plantpal/plantpal/internal/services"
	"github.com/plantpal/plantpal/internal/store"
)

// Run starts the plantpal HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("plantpal-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	return RunWithConfig(cfg, log.Level(cfg.Level()))
}

// RunWithConfig is Run with an already resolved configuration.
func RunWithConfig(cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("time_zone", cfg.TimeZone).
		Str("level_policy", cfg.LevelPolicy).
		Msg("PlantPal service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}
	if c, ok := st.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	bus := events.NewBus()
	defer bus.Close()
	go events.LogSubscriber(ctx, bus, log, cfg.EventBuffer)

	m := metrics.New(nil)
	deps, err := buildServices(cfg, log, st, bus, m)
	if err != nil {
		return err
	}

	// Start health checkers and bind service health
	svcHealth := startHealthCheckers(ctx, cfg, log, st, bus)
	deps.Health = api.NewHealthHandler(svcHealth)
	router := api.NewRouter(deps)

	// Block startup until dependencies report healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// buildServices constructs the engine and services from cfg.
func buildServices(cfg *config.Config, log zerolog.Logger, st store.Store, bus *events.Bus, m *metrics.Metrics) (api.Deps, error) {
	loc, err := cfg.Location()
	if err != nil {
		return api.Deps{}, err
	}
	policy, err := progression.ParseLevelPolicy(cfg.LevelPolicy)
	if err != nil {
		return api.Deps{}, err
	}
	engine := progression.NewEngine(
		progression.WithLocation(loc),
		progression.WithLevelPolicy(policy),
	)

	progress := services.NewProgressService(st, engine,
		services.WithBus(bus),
		services.WithMetrics(m),
		services.WithLogger(log.With().Str("component", "progress").Logger()),
		services.WithRetryPolicy(services.RetryPolicy{
			MaxAttempts: cfg.StoreRetryMaxAttempts,
			BaseBackoff: time.Duration(cfg.StoreRetryBaseMillis) * time.Millisecond,
			MaxInterval: time.Second,
		}),
	)
	chat := services.NewChatService(progress, newResponder(cfg.Responder), log.With().Str("component", "chat").Logger())

	return api.Deps{
		Progress:    progress,
		Analytics:   services.NewAnalyticsService(progress),
		Chat:        chat,
		Bus:         bus,
		EventBuffer: cfg.EventBuffer,
		Metrics:     m,
		Log:         log,
	}, nil
}

func newResponder(kind string) services.Responder {
	if kind == "unconfigured" {
		return services.UnconfiguredResponder
	}
	return services.CannedResponder{}
}

// startHealthCheckers checks the store and the event bus in the background.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, bus *events.Bus) *health.Monitor {
	checkTimeout := time.Duration(cfg.HealthCheckTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	mon := health.NewMonitor(log, checkTimeout).
		Add("store", store.HealthCheck(st)).
		Add("events", health.PingCheck(bus))
	go mon.Start(ctx, interval)
	return mon
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.Monitor) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
