package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/fieldbook/fieldbook/infrastructure/service/logger"
	"github.com/fieldbook/fieldbook/infrastructure/service/ratelimit"
	"github.com/fieldbook/fieldbook/internal/adapter/events"
	httpadapter "github.com/fieldbook/fieldbook/internal/adapter/http"
	"github.com/fieldbook/fieldbook/internal/adapter/memory"
	"github.com/fieldbook/fieldbook/internal/adapter/persistence"
	"github.com/fieldbook/fieldbook/internal/config"
	"github.com/fieldbook/fieldbook/internal/ports"
	"github.com/fieldbook/fieldbook/internal/usecase"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize structured logger; production always logs JSON
	logFormat := cfg.Logging.Format
	if cfg.IsProduction() {
		logFormat = "json"
	}
	structuredLogger := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.Logging.Level,
		Format:      logFormat,
		ServiceName: "fieldbook",
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env":                 cfg.Server.Environment,
		"storage":             cfg.Database.Driver,
		"serialize_admission": cfg.Reservation.SerializeAdmission,
		"recheck_on_update":   cfg.Reservation.RecheckOnUpdate,
	})

	// Storage is constructed here and injected; the use case never opens it
	transactor, closeStorage := openStorage(ctx, cfg, structuredLogger)
	defer closeStorage()

	// Initialize rate limiting service (Redis-backed or noop based on config)
	rateLimitService, err := ratelimit.NewRateLimitService(ratelimit.RateLimitConfig{
		Enabled:  cfg.Security.RateLimitEnabled,
		RedisURL: cfg.Security.RedisURL,
		Requests: cfg.Security.RateLimitRequests,
		Window:   cfg.Security.RateLimitWindow,
	}, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to initialize rate limit service, continuing without it", err, nil)
		rateLimitService = ratelimit.NoopRateLimitService{}
	}
	defer rateLimitService.Close()

	// Initialize event publisher
	var publisher ports.EventPublisher = ports.NoopEventPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, structuredLogger)
		if err != nil {
			log.Fatalf("Failed to initialize kafka publisher: %v", err)
		}
		publisher = kafkaPublisher
		structuredLogger.Info(ctx, "Kafka event publisher initialized", map[string]interface{}{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.Topic,
		})
	}
	defer publisher.Close()

	// Initialize use cases
	reservationUseCase := usecase.NewReservationUseCase(transactor, publisher, structuredLogger, usecase.Options{
		SerializeAdmission: cfg.Reservation.SerializeAdmission,
		RecheckOnUpdate:    cfg.Reservation.RecheckOnUpdate,
	})

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		CORSEnabled:    cfg.Security.CORSEnabled,
		AllowedOrigins: cfg.Security.CORSOrigins,
	}, reservationUseCase, rateLimitService, structuredLogger)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			structuredLogger.Error(ctx, "Server failed to start", err, map[string]interface{}{
				"host": cfg.Server.Host,
				"port": cfg.Server.Port,
			})
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(ctx, "Server forced to shutdown", err, nil)
	}
	structuredLogger.Info(ctx, "Server exited", nil)
}

func openStorage(ctx context.Context, cfg *config.Config, structuredLogger logger.Logger) (ports.Transactor, func()) {
	if cfg.Database.Driver == config.StorageDriverMemory {
		structuredLogger.Warn(ctx, "Using in-memory storage; reservations are lost on restart", nil)
		return memory.NewStore(), func() {}
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		structuredLogger.Error(ctx, "Failed to ping database", err, nil)
		db.Close()
		log.Fatalf("Failed to ping database: %v", err)
	}
	structuredLogger.Info(ctx, "Database connection established", nil)

	return persistence.NewPostgresTransactor(db), func() {
		if err := db.Close(); err != nil {
			structuredLogger.Error(context.Background(), "Failed to close database", err, nil)
		}
	}
}
