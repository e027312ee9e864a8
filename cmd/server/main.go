package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"consulta_ciudadana_go/config"
	"consulta_ciudadana_go/db"
	"consulta_ciudadana_go/handlers"
	"consulta_ciudadana_go/middleware"
	"consulta_ciudadana_go/services"
	"consulta_ciudadana_go/services/jobs"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	database, err := db.Initialize(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close(database)

	// Run migrations
	if err := db.AutoMigrate(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := services.SeedReferenceData(database); err != nil {
		log.Fatalf("Failed to seed reference data: %v", err)
	}
	if err := services.SeedSuperAdmin(database, cfg.SuperAdminUsername, cfg.SuperAdminPassword); err != nil {
		log.Printf("[WARNING] Failed to seed super admin: %v", err)
	}

	storage := services.NewStorageProvider(cfg)
	mailer := services.NewResendMailer(cfg)

	// Login counters live in Redis when several replicas share the limit
	var loginStore middleware.RateLimitStore
	if cfg.RedisURL != "" {
		client, err := middleware.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Printf("[WARNING] %v. Falling back to in-memory login rate limiting.", err)
		} else {
			defer client.Close()
			loginStore = middleware.NewRedisStore(client)
			log.Println("Login rate limiting backed by Redis")
		}
	}

	h := handlers.New(database, cfg, storage, mailer, middleware.NewLoginRateLimiter(loginStore))

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	// Client addresses feed the rate limiters, so forwarding headers are only
	// believed when they come from a configured proxy
	ipExtractor, err := middleware.NewIPExtractor(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("Invalid TRUSTED_PROXIES: %v", err)
	}
	e.IPExtractor = ipExtractor

	// Middleware
	e.Use(echomiddleware.RequestLogger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		ExposeHeaders:    []string{echo.HeaderContentDisposition},
		AllowCredentials: true,
	}))
	// Ten images of 5 MB plus the JSON payload
	e.Use(echomiddleware.BodyLimit("55M"))

	h.RegisterRoutes(e)

	// Start background jobs
	scheduler, err := jobs.StartScheduler(database)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Start server
	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Printf("[ERROR] Server shutdown: %v", err)
	}
	<-scheduler.Stop().Done()
	services.FlushAuditLogs()
	log.Println("Server stopped")
}
