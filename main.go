// Package main provides the main entry point for the DocPulse view analytics service
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

	"github.com/docpulse/docpulse/app/handlers"
	"github.com/docpulse/docpulse/app/middleware"
	"github.com/docpulse/docpulse/app/router"
	"github.com/docpulse/docpulse/app/scheduler"
	"github.com/docpulse/docpulse/app/services"
	businessflow "github.com/docpulse/docpulse/business_flow"
	"github.com/docpulse/docpulse/config"
	_ "github.com/docpulse/docpulse/docs"
	"github.com/docpulse/docpulse/repository"
	"github.com/docpulse/docpulse/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting DocPulse application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Setup graceful shutdown
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the standard logger to the configured sinks, with
// size-based rotation on the file sink
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		log.SetOutput(rotated)
	default:
		log.SetOutput(io.MultiWriter(os.Stdout, rotated))
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// Redis is optional: without it the global counters are read from postgres.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeStorage builds the object store client when a bucket is configured
func initializeStorage(cfg config.StorageConfig) (services.ObjectStorage, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	storage, err := services.NewS3Storage(ctx, services.S3StorageConfig{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		Bucket:          cfg.Bucket,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UsePathStyle:    cfg.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	log.Printf("Object storage initialized for bucket %s", cfg.Bucket)
	return storage, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	storage, err := initializeStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	documentRepo := repository.NewDocumentRepository(db)
	shareLinkRepo := repository.NewShareLinkRepository(db)
	sessionRepo := repository.NewViewSessionRepository(db)
	pageViewRepo := repository.NewPageViewRepository(db)
	emailCaptureRepo := repository.NewEmailCaptureRepository(db)
	dailySummaryRepo := repository.NewDailySummaryRepository(db)
	globalRepo := repository.NewGlobalAggregateRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// The singleton counter row must exist before the first increment
	if err := globalRepo.EnsureRow(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure global aggregate row: %w", err)
	}

	// Initialize handle service
	handleService, err := services.NewHandleService(
		cfg.Signing.HandleTTL,
		cfg.Signing.Issuer,
		cfg.Signing.Audience,
		cfg.Signing.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize handle service: %w", err)
	}
	log.Printf("Handle service initialized with issuer: %s, audience: %s", cfg.Signing.Issuer, cfg.Signing.Audience)

	aggregateMirror := businessflow.NewAggregateMirror(rc, cfg.Cache.RedisPrefix)

	// Initialize flows
	accessFlow := businessflow.NewAccessFlow(
		db,
		documentRepo,
		shareLinkRepo,
		sessionRepo,
		emailCaptureRepo,
		globalRepo,
		auditRepo,
		handleService,
		aggregateMirror,
	)

	telemetryFlow := businessflow.NewTelemetryFlow(
		documentRepo,
		shareLinkRepo,
		sessionRepo,
		pageViewRepo,
		globalRepo,
		auditRepo,
		aggregateMirror,
	)

	statsFlow := businessflow.NewStatsFlow(
		documentRepo,
		shareLinkRepo,
		sessionRepo,
		pageViewRepo,
		emailCaptureRepo,
		dailySummaryRepo,
		globalRepo,
		aggregateMirror,
	)

	summaryFlow := businessflow.NewSummaryFlow(
		sessionRepo,
		pageViewRepo,
		emailCaptureRepo,
		dailySummaryRepo,
		globalRepo,
		auditRepo,
		documentRepo,
		aggregateMirror,
	)

	// Initialize handlers
	accessHandler := handlers.NewAccessHandler(accessFlow)
	telemetryHandler := handlers.NewTelemetryHandler(telemetryFlow)
	statsHandler := handlers.NewStatsHandler(statsFlow, summaryFlow)

	// Initialize handle middleware
	handleMiddleware := middleware.NewHandleMiddleware(handleService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		accessHandler,
		telemetryHandler,
		statsHandler,
		handleMiddleware,
	)

	if cfg.Scheduler.EnableReaper {
		reaper := scheduler.NewIdleReaper(
			sessionRepo,
			auditRepo,
			nil,
			log.Default(),
			cfg.Scheduler.ReaperInterval,
			cfg.Scheduler.IdleThreshold,
		)
		stopFuncs = append(stopFuncs, reaper.Start(context.Background()))
	}

	if cfg.Scheduler.EnableSummaries {
		summaries := scheduler.NewSummaryScheduler(
			summaryFlow,
			nil,
			log.Default(),
			cfg.Scheduler.SummaryInterval,
			cfg.Scheduler.RebaselineEvery,
		)
		stopFuncs = append(stopFuncs, summaries.Start(context.Background()))
	}

	if cfg.Retention.EnableSweeper {
		var sweepStorage services.ObjectStorage
		if cfg.Retention.EnableOrphanSweep {
			sweepStorage = storage
		}
		sweeper := scheduler.NewRetentionSweeper(
			sessionRepo,
			dailySummaryRepo,
			emailCaptureRepo,
			documentRepo,
			auditRepo,
			sweepStorage,
			nil,
			log.Default(),
			cfg.Retention.SweeperCronSpec,
		)
		stopSweeper, err := sweeper.Start(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to start retention sweeper: %w", err)
		}
		stopFuncs = append(stopFuncs, stopSweeper)
	}

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	log.Printf("Application initialized (env=%s version=%s, started at %s)",
		cfg.Deployment.Environment, cfg.Deployment.Version, utils.UTCNow().Format(time.RFC3339))

	return application, nil
}
