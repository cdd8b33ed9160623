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

	"github.com/prendaria/backoffice/internal/auth"
	"github.com/prendaria/backoffice/internal/background"
	"github.com/prendaria/backoffice/internal/cache"
	"github.com/prendaria/backoffice/internal/config"
	"github.com/prendaria/backoffice/internal/database"
	"github.com/prendaria/backoffice/internal/handlers"
	middlewareCustom "github.com/prendaria/backoffice/internal/middleware"
	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/permissions"
	"github.com/prendaria/backoffice/internal/repositories"
	"github.com/prendaria/backoffice/internal/routes"
	"github.com/prendaria/backoffice/internal/security"
	"github.com/prendaria/backoffice/internal/services"
	pkgauth "github.com/prendaria/backoffice/pkg/auth"
	pkghttp "github.com/prendaria/backoffice/pkg/http"
	pkglogger "github.com/prendaria/backoffice/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis for the IP failure counters
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisClient, err := cache.NewRedisClient(redisCtx, cfg.Redis)
	redisCancel()
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	permissionRepo := repositories.NewPermissionRepository(db)
	revokeRepo := repositories.NewTokenRevocationRepository(db)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	// Security layer
	auditLogger := pkglogger.NewAuditLogger(logger)
	attemptTracker := security.NewAttemptTracker(cache.NewRedisCounterStore(redisClient))
	guard := security.NewGuard(userRepo, attemptTracker, revokeRepo, security.Config{
		PasswordMaxAge: cfg.Auth.PasswordMaxAge,
	}, logger, auditLogger)

	// Permission catalog, seeded so grant rows always reference known tuples
	catalog := permissions.NewCatalog()
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := permissionRepo.SeedCatalog(seedCtx, catalog); err != nil {
		seedCancel()
		logger.Error("failed to seed permission catalog", slog.Any("error", err))
		os.Exit(1)
	}
	seedCancel()

	// Initialize services
	authzService := services.NewAuthzService(catalog, permissionRepo, logger, auditLogger)
	authService := services.NewAuthService(userRepo, revokeRepo, guard, authzService, tokenManager, logger, auditLogger)
	userService := services.NewUserService(userRepo, authzService, guard, logger, auditLogger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	userHandler := handlers.NewUserHandler(userService)
	permissionHandler := handlers.NewPermissionHandler(authzService, userService)

	// Bootstrap first admin user if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootCtx, userRepo, authzService, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootCancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, userHandler, permissionHandler, tokenManager, revokeRepo, userRepo, authzService)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(revokeRepo, userRepo, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
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

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser creates the first administrator if ADMIN_USERNAME and
// ADMIN_PASSWORD are set and no user with that username exists yet.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, authz *services.AuthzService, logger *slog.Logger) error {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminPassword == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping admin bootstrap")
		return nil
	}

	_, err := userRepo.GetByLogin(ctx, adminUsername)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = adminUsername + "@prendaria.local"
	}

	now := time.Now()
	admin := &models.User{
		Username:          adminUsername,
		Email:             adminEmail,
		Name:              "Administrador",
		PasswordHash:      hashedPassword,
		Role:              permissions.RoleAdministrator,
		Active:            true,
		PasswordChangedAt: &now,
	}

	created, err := userRepo.Create(ctx, admin)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	if err := authz.AssignDefaultPermissions(ctx, created); err != nil {
		return fmt.Errorf("failed to assign admin permissions: %w", err)
	}

	logger.Info("admin user created", slog.String("username", adminUsername))
	return nil
}
