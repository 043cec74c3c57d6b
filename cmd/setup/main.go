package main

import (
	"log"

	"github.com/ThiagoRGoveia/club-power/internal/config"
	"github.com/ThiagoRGoveia/club-power/internal/database"
	"github.com/ThiagoRGoveia/club-power/internal/logging"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting database setup...")
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("Database setup failed", zap.Error(err))
	}
	logger.Info("Database setup finished successfully.")
}
