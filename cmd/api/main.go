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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mfontaine/aegis/internal/auth"
	"github.com/mfontaine/aegis/internal/background"
	"github.com/mfontaine/aegis/internal/config"
	"github.com/mfontaine/aegis/internal/counter"
	"github.com/mfontaine/aegis/internal/database"
	"github.com/mfontaine/aegis/internal/geo"
	"github.com/mfontaine/aegis/internal/handlers"
	middlewareCustom "github.com/mfontaine/aegis/internal/middleware"
	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/repositories"
	"github.com/mfontaine/aegis/internal/routes"
	"github.com/mfontaine/aegis/internal/services"
	pkgauth "github.com/mfontaine/aegis/pkg/auth"
	pkghttp "github.com/mfontaine/aegis/pkg/http"
	pkglogger "github.com/mfontaine/aegis/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	challengeRepo := repositories.NewChallengeRepository(db)
	eventRepo := repositories.NewSuspiciousEventRepository(db)

	// Ambient services
	auditLogger := pkglogger.NewAuditLogger(logger)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	totpManager, err := auth.NewTOTPManager([]byte(cfg.Auth.TOTPEncryptionKey), cfg.Auth.TOTPIssuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 100,
	})

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize notifier", slog.Any("error", err))
		os.Exit(1)
	}

	geoResolver, err := buildGeoResolver(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize geo resolver", slog.Any("error", err))
		os.Exit(1)
	}

	counterStore, memoryCounters := buildCounterStore(cfg, logger)

	// Domain services
	challengeService := services.NewChallengeService(challengeRepo, notifier, logger)

	authService := services.NewAuthService(services.AuthServiceDeps{
		Accounts:   accountRepo,
		Attempts:   attemptRepo,
		Events:     eventRepo,
		Challenges: challengeService,
		Counters:   counterStore,
		Geo:        geoResolver,
		Tokens:     tokenManager,
		TOTP:       totpManager,
		Timing:     timingDelay,
		Notifier:   notifier,
		Risk:       cfg.Risk,
		Logger:     logger,
		Audit:      auditLogger,
	})

	totpService := services.NewTOTPService(accountRepo, totpManager, logger, auditLogger)
	adminService := services.NewAdminService(attemptRepo, eventRepo, accountRepo, logger, auditLogger)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	totpHandler := handlers.NewTOTPHandler(totpService)
	adminHandler := handlers.NewAdminHandler(adminService)

	// Background cleanup
	cleanupManager := background.NewCleanupManager(
		challengeRepo, attemptRepo, accountRepo, memoryCounters,
		logger, cfg.Auth.CleanupInterval)

	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminAccount(bootstrapCtx, accountRepo, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	bootstrapCancel()

	// Router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, totpHandler, adminHandler, tokenManager, accountRepo,
		middlewareCustom.DefaultAuthRateLimit(ipConfig))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// buildNotifier returns the SES notifier in production and a log-only
// notifier when email is disabled.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (services.Notifier, error) {
	if !cfg.Email.Enabled {
		logger.Info("email disabled, codes and alerts go to the log")
		return services.NewLogNotifier(logger), nil
	}
	return services.NewAWSSESNotifier(cfg.Email.Region, cfg.Email.FromAddress, logger)
}

func buildGeoResolver(cfg *config.Config, logger *slog.Logger) (geo.Resolver, error) {
	switch cfg.Geo.Provider {
	case "maxmind":
		return geo.NewMaxMindResolver(cfg.Geo.MaxMindDBPath, logger)
	default:
		return geo.NewIPInfoResolver(cfg.Geo.IPInfoURL, cfg.Geo.IPInfoToken, cfg.Geo.Timeout, logger), nil
	}
}

// buildCounterStore returns the configured store plus the memory store to
// prune, when the memory backend is active.
func buildCounterStore(cfg *config.Config, logger *slog.Logger) (counter.Store, *counter.MemoryStore) {
	if cfg.Counter.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Counter.RedisAddr,
			Password: cfg.Counter.RedisPassword,
			DB:       cfg.Counter.RedisDB,
		})
		logger.Info("using redis counter store", slog.String("addr", cfg.Counter.RedisAddr))
		return counter.NewRedisStore(client, "aegis"), nil
	}

	store := counter.NewMemoryStore()
	return store, store
}

// ensureAdminAccount creates the first admin if ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no such account exists yet.
func ensureAdminAccount(ctx context.Context, accounts *repositories.AccountRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin bootstrap")
		return nil
	}

	_, err := accounts.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin account already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check for admin account: %w", err)
	}

	hash, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.Account{
		Email:        adminEmail,
		PasswordHash: hash,
		FirstName:    "Admin",
		Role:         "admin",
	}
	if err := accounts.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("admin account created")
	return nil
}
