package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/fieldbook/fieldbook/infrastructure/service/logger"
	"github.com/fieldbook/fieldbook/internal/adapter/persistence"
	"github.com/fieldbook/fieldbook/internal/config"
)

func main() {
	mode := flag.String("mode", "up", "migration mode: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	structuredLogger := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "fieldbook-migrate",
	})

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	migrator := persistence.NewMigrator(db, structuredLogger)

	switch strings.ToLower(*mode) {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			log.Fatalf("migration up failed: %v", err)
		}
		structuredLogger.Info(ctx, "Migration up completed successfully", nil)
	case "down":
		if err := migrator.Down(ctx); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
		structuredLogger.Info(ctx, "Migration down completed successfully", nil)
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}
}
