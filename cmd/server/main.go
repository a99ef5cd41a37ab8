package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/handler"
	"github.com/aryan0dhankhar/complaintdesk/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/complaintdesk/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/complaintdesk/internal/observability/metrics"
	"github.com/aryan0dhankhar/complaintdesk/internal/observability/tracing"
	"github.com/aryan0dhankhar/complaintdesk/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/complaintdesk/internal/reliability/retry"
	"github.com/aryan0dhankhar/complaintdesk/internal/repository"
	"github.com/aryan0dhankhar/complaintdesk/internal/security"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/audit"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/auth"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/middleware"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/ratelimit"
	"github.com/aryan0dhankhar/complaintdesk/internal/service"
	"github.com/aryan0dhankhar/complaintdesk/internal/tenant"
	"github.com/aryan0dhankhar/complaintdesk/pkg/cache"
	"github.com/aryan0dhankhar/complaintdesk/pkg/config"
	"github.com/aryan0dhankhar/complaintdesk/pkg/database"
)

// stores is what the selected driver contributes to the wiring
type stores struct {
	factory  repository.StoreFactory
	profiles domain.ProfileRepository
	checks   map[string]handler.CheckFunc
	migrate  func(ctx context.Context, router *repository.StoreRouter) error
	close    func()
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting complaintdesk server",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreDriver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Connect the tenant stores
	st, err := connectStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect stores", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.close()

	// 5. Tenant registry, resolver and store router
	regs := make([]tenant.Registration, 0, len(cfg.Tenants()))
	for _, t := range cfg.Tenants() {
		regs = append(regs, tenant.Registration{
			Key:                t.Key,
			ComplaintsLocation: t.ComplaintsLocation,
			CategoriesLocation: t.CategoriesLocation,
		})
	}
	registry := tenant.NewRegistry(regs)

	profiles := repository.NewBreakerProfileRepository(
		st.profiles,
		circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second),
		log,
	)
	resolver := tenant.NewResolver(registry, profiles, log)
	router := repository.NewStoreRouter(registry, st.factory)
	if st.migrate != nil {
		if err := st.migrate(ctx, router); err != nil {
			log.Error("failed to ensure schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 6. Initialize services
	complaintService := service.NewComplaintService(
		router,
		profiles,
		cache.New[string](cfg.DirectoryNameCacheTTL),
		log,
	)

	// 7. Initialize security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 8. Setup HTTP routes
	mux := http.NewServeMux()
	(&handler.Router{
		Complaints: handler.NewComplaintHandler(complaintService, log),
		Health:     handler.NewHealthHandler(st.checks, log),
		Verifier:   tokenManager,
		Resolver:   resolver,
		Authz:      security.NewAuthorizationService(log),
		Limiter:    rateLimiter,
		Audit:      auditLogger,
		Logger:     log,
	}).Register(mux)

	// Chain middleware: request ID -> CORS -> input guards -> metrics -> routes
	rootHandler := middleware.Chain(metrics.HTTPMetricsMiddleware(mux),
		middleware.RequestID(log),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.SanitizeInputs(log),
		middleware.ValidateJSONContentType(log),
	)

	// 9. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(rootHandler, tracing.ServiceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("tenants", len(regs)),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.String("rate_limit_window", "1m"),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	rateLimiter.Stop()
	log.Info("server stopped")
}

// connectStores dials the configured driver, retrying while it comes up
func connectStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverRedis:
		client, err := retry.Do(ctx, retry.DefaultConfig(), log, "connect redis",
			func(ctx context.Context) (*redis.Client, error) {
				return redis.NewClient(ctx, cfg.RedisURL, log)
			})
		if err != nil {
			return nil, err
		}
		return &stores{
			factory:  repository.RedisStores(client, log),
			profiles: repository.NewRedisProfileRepository(client, log),
			checks:   map[string]handler.CheckFunc{"redis": client.Ping},
			close:    func() { client.Close() },
		}, nil

	default:
		pool, err := retry.Do(ctx, retry.DefaultConfig(), log, "connect postgres",
			func(ctx context.Context) (*database.ConnectionPool, error) {
				return database.NewConnectionPool(ctx, &database.Config{
					URL:             cfg.DatabaseURL,
					MaxOpenConns:    cfg.DBMaxOpenConns,
					MaxIdleConns:    cfg.DBMaxIdleConns,
					ConnMaxLifetime: cfg.DBConnMaxLifetime,
				}, log)
			})
		if err != nil {
			return nil, err
		}
		profiles := repository.NewPostgresProfileRepository(pool.GetDB(), log)
		return &stores{
			factory:  repository.PostgresStores(pool.GetDB(), log),
			profiles: profiles,
			checks:   map[string]handler.CheckFunc{"postgres": pool.Health},
			migrate: func(ctx context.Context, router *repository.StoreRouter) error {
				if err := profiles.EnsureSchema(ctx); err != nil {
					return err
				}
				return router.EnsureSchema(ctx)
			},
			close: func() { pool.Close() },
		}, nil
	}
}
