package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"budgettracker/internal/config"
	"budgettracker/internal/database"
	"budgettracker/internal/handlers"
	"budgettracker/internal/identity"
	"budgettracker/internal/logger"
	"budgettracker/internal/middleware"
	"budgettracker/internal/services"
	"budgettracker/internal/validator"

	_ "budgettracker/internal/docs" // Import swagger docs
)

// @title           Budget Tracker API
// @version         1.0
// @description     Personal budgeting API: budgets, transactions and categories behind a cookie or bearer session.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("failed to close database", "error", err)
		}
	}()

	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	db := dbManager.DB()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}

	provider, err := newIdentityProvider(appConfig, dbManager)
	if err != nil {
		return err
	}

	cookies := middleware.CookieOptionsFromConfig(appConfig)
	authenticator := middleware.NewAuthenticator(provider, cookies)

	// Initialize services
	guard := services.NewOwnershipGuard(db)
	auditService := services.NewAuditService(db)
	h := &handlers.Handlers{
		Auth:        handlers.NewAuthHandler(provider, cookies, appConfig.SiteURL),
		Budget:      handlers.NewBudgetHandler(services.NewBudgetService(db, guard), auditService),
		Category:    handlers.NewCategoryHandler(services.NewCategoryService(db, guard), auditService),
		Transaction: handlers.NewTransactionHandler(services.NewTransactionService(db, guard), auditService),
		Health:      handlers.NewHealthHandler(sqlDB),
	}

	validator.Register()

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.CORS(appConfig.CORSAllowedOrigins))
	router.Use(middleware.ErrorHandler())
	router.Use(authenticator.ProtectPages("/login", middleware.ProtectedPagePrefixes...))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	h.RegisterRoutes(router, authenticator)

	if appConfig.WebDir != "" {
		serveFrontend(router, appConfig.WebDir)
	}

	log.Infof("Starting budget tracker on port %s (identity provider: %s)", appConfig.Port, appConfig.IdentityProvider)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func newIdentityProvider(cfg *config.Config, dbManager *database.Manager) (identity.Provider, error) {
	if err := cfg.ValidateIdentity(); err != nil {
		return nil, err
	}
	switch cfg.IdentityProvider {
	case config.IdentityGoTrue:
		if cfg.GoTrueURL == "" || cfg.GoTrueAnonKey == "" {
			return nil, fmt.Errorf("GOTRUE_URL and GOTRUE_ANON_KEY are required for the gotrue identity provider")
		}
		return identity.NewGoTrueProvider(cfg.GoTrueURL, cfg.GoTrueAnonKey, &http.Client{Timeout: 15 * time.Second}), nil
	case config.IdentityLocal:
		return identity.NewLocalProvider(dbManager.DB(), identity.LocalOptions{
			Secret:     cfg.JWTSecret,
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
			SiteURL:    cfg.SiteURL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.IdentityProvider)
	}
}

// serveFrontend serves a built frontend from dir for any path no API route
// claims, falling back to index.html for client-side routes.
func serveFrontend(router *gin.Engine, dir string) {
	index := filepath.Join(dir, "index.html")
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Resource not found"}})
			return
		}
		path := filepath.Join(dir, filepath.Clean("/"+c.Request.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			c.File(path)
			return
		}
		c.File(index)
	})
}
