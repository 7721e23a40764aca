package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/drizaikin/extraction-be/internal/api/handler"
	"github.com/drizaikin/extraction-be/internal/api/router"
	"github.com/drizaikin/extraction-be/internal/config"
	"github.com/drizaikin/extraction-be/internal/extraction"
	"github.com/drizaikin/extraction-be/internal/extraction/source"
	"github.com/drizaikin/extraction-be/internal/extraction/storage"
	"github.com/drizaikin/extraction-be/shared/logger"
	"github.com/drizaikin/extraction-be/shared/postgresql"
	"github.com/drizaikin/extraction-be/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("EXTRACTION_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/extraction-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting extraction service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	store := storage.NewStorage(dbClient.GetDB(), appLogger.Logger)

	// Jobs left running or paused by an unclean shutdown have no worker
	// anymore. Settle them before accepting new commands.
	recovered, err := store.RecoverInterruptedJobs(context.Background())
	if err != nil {
		return fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}
	if recovered > 0 {
		appLogger.Info("Recovered interrupted jobs",
			slog.Int("count", recovered),
		)
	}

	// Workers and the consumer run under their own context so HTTP shutdown
	// and worker drain can be sequenced separately.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	src := source.NewSimulated(source.Config{
		Items:        cfg.Extraction.Source.Items,
		ItemDelay:    cfg.Extraction.Source.ItemDelay,
		FailureEvery: cfg.Extraction.Source.FailureEvery,
	})

	publisher := extraction.NewPublisher(appLogger.Logger, rabbitClient, cfg.RabbitMQ.PublishRoutingKey)

	manager := extraction.NewManager(workerCtx, &extraction.ManagerConfig{
		Logger:         appLogger.Logger,
		Store:          store,
		Source:         src,
		Publisher:      publisher,
		ItemRetries:    cfg.Extraction.ItemRetries,
		RetryBackoff:   cfg.Extraction.RetryBackoff,
		ErrorThreshold: cfg.Extraction.ErrorThreshold,
	})

	controller := extraction.NewController(&extraction.ControllerConfig{
		Logger:          appLogger.Logger,
		Store:           store,
		Manager:         manager,
		StopGracePeriod: cfg.Extraction.StopGracePeriod,
	})

	// Start the queue consumer in a goroutine
	consumer := extraction.NewConsumer(appLogger.Logger, rabbitClient, controller, cfg.RabbitMQ.Consumer.PrefetchCount)

	consumerErr := make(chan error, 1)
	go func() {
		if err := consumer.Start(workerCtx); err != nil {
			consumerErr <- err
		}
	}()

	// Initialize router
	r := initRouter(cfg.App.Environment, appLogger.Logger, controller, store, dbClient, rabbitClient, manager.Active)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Starting HTTP server",
			slog.String("address", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Failed to start server",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Extraction service started successfully")

	// Wait for interrupt signal or a dead consumer
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-consumerErr:
		appLogger.Error("Consumer error",
			slog.Any("error", err),
		)
		runErr = err
	}

	// Cleanup function to close all resources
	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	// Stop accepting HTTP traffic first
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	// Interrupt workers and the consumer, then wait for the goroutines to
	// drain. Interrupted jobs keep their status; the recovery sweep at next
	// startup settles them.
	workerCancel()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Extraction.ShutdownTimeout)
	defer drainCancel()

	if err := manager.Shutdown(drainCtx); err != nil {
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	} else {
		appLogger.Info("Workers stopped gracefully")
	}

	appLogger.Info("Extraction service shutdown complete")
	return runErr
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		QueueRoutingKey:    cfg.QueueRoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(
	environment string,
	logger *slog.Logger,
	controller *extraction.Controller,
	store *storage.Storage,
	dbClient *postgresql.Client,
	rabbitClient *rabbitmq.Client,
	activeJobs func() int,
) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize handler dependencies
	handlerDeps := &handler.Dependencies{
		Logger:       logger,
		Controller:   controller,
		Observer:     store,
		DBClient:     dbClient,
		RabbitClient: rabbitClient,
		ActiveJobs:   activeJobs,
	}

	// Setup router
	return router.SetupRouter(handlerDeps)
}
