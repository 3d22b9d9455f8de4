package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"subtitle-history-api/internal/config"
	"subtitle-history-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting schema bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Driver == config.DriverMemory {
		fmt.Println("database.driver is memory, nothing to migrate.")
		return
	}

	ctx := context.Background()

	client, cleanup, err := wire.InitializeMigrator(cfg)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer cleanup()

	if err := client.HealthCheck(ctx); err != nil {
		log.Fatalf("postgres not ready: %v", err)
	}

	fmt.Println("Migrating subtitle tables...")
	if err := client.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	fmt.Println("Bootstrap completed successfully.")
}
