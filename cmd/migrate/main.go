package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/lm-legal/payments/internal/config"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
	"github.com/lm-legal/payments/migrations"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Print pending migrations without executing them")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("connecting to database", "host", cfg.Postgres.Host, "dbname", cfg.Postgres.DBName)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("failed to open postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		logger.Fatalw("failed to connect to postgres", "error", err)
	}

	migrator, err := postgres.NewMigrator(db, migrations.Postgres, "postgres")
	if err != nil {
		logger.Fatalw("failed to load migrations", "error", err)
	}
	defer migrator.Close()

	if *dryRun {
		pending, err := migrator.Pending()
		if err != nil {
			logger.Fatalw("failed to list pending migrations", "error", err)
		}
		for _, version := range pending {
			fmt.Printf("pending: %06d\n", version)
		}
		logger.Infow("dry run finished", "pending", len(pending))
		return
	}

	applied, err := migrator.Up()
	if err != nil {
		logger.Fatalw("migration failed", "error", err)
	}
	version, err := migrator.Version()
	if err != nil {
		logger.Fatalw("failed to read schema version", "error", err)
	}
	logger.Infow("migration completed", "applied", applied, "version", version)
}
