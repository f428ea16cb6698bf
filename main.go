// Package main provides the main entry point for the Harbor CRM campaign service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/harborcrm/harbor-backend/app/handlers"
	"github.com/harborcrm/harbor-backend/app/middleware"
	"github.com/harborcrm/harbor-backend/app/router"
	"github.com/harborcrm/harbor-backend/app/scheduler"
	"github.com/harborcrm/harbor-backend/app/services"
	businessflow "github.com/harborcrm/harbor-backend/business_flow"
	"github.com/harborcrm/harbor-backend/config"
	"github.com/harborcrm/harbor-backend/repository"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Harbor campaign service...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	initializeLogging(cfg.Logging)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers before closing the listener
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeLogging routes the standard logger through a rotating file when configured
func initializeLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		log.SetOutput(rotator)
	default:
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// initializeQuota picks the daily send quota backend. Redis keeps the count
// shared across replicas; the in-memory fallback is per-process only.
func initializeQuota(cfg config.CacheConfig, rc *redis.Client) services.DailyQuota {
	if rc != nil {
		return services.NewRedisDailyQuota(rc, cfg.RedisPrefix)
	}
	log.Println("Redis disabled, using in-memory daily send quota")
	return services.NewMemoryDailyQuota()
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	}

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	eventRepo := repository.NewEventRepository(db)
	unsubscribedRepo := repository.NewUnsubscribedEmailRepository(db)
	contactRepo := repository.NewContactRepository(db)
	leadRepo := repository.NewLeadRepository(db)

	// Initialize services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	unsubscribeTokens := services.NewUnsubscribeTokenService(cfg.App.UnsubscribeSecret)
	emailProvider := services.NewBrevoProvider(&cfg.Brevo)
	quota := initializeQuota(cfg.Cache, rc)

	// Background sender
	sender := scheduler.NewCampaignSender(
		campaignRepo,
		recipientRepo,
		emailProvider,
		quota,
		unsubscribeTokens,
		cfg.App,
		cfg.Scheduler,
		nil,
		db,
	)
	stopFuncs = append(stopFuncs, sender.Start(context.Background()))

	// Initialize business flows
	audienceFlow := businessflow.NewAudienceFlow(contactRepo, leadRepo, unsubscribedRepo)
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, recipientRepo, eventRepo, audienceFlow, sender, db)
	suppressionFlow := businessflow.NewSuppressionFlow(unsubscribedRepo, campaignRepo, eventRepo, unsubscribeTokens, db)
	webhookFlow := businessflow.NewWebhookFlow(emailProvider, recipientRepo, eventRepo, campaignRepo, suppressionFlow, db)

	// Initialize handlers
	campaignHandler := handlers.NewCampaignHandler(campaignFlow)
	suppressionHandler := handlers.NewSuppressionHandler(suppressionFlow)
	webhookHandler := handlers.NewWebhookHandler(webhookFlow, suppressionFlow)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(cfg, authMiddleware, campaignHandler, suppressionHandler, webhookHandler)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
