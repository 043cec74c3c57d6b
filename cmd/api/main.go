package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThiagoRGoveia/club-power/internal/config"
	"github.com/ThiagoRGoveia/club-power/internal/database"
	"github.com/ThiagoRGoveia/club-power/internal/ingestion"
	"github.com/ThiagoRGoveia/club-power/internal/logging"
	"github.com/ThiagoRGoveia/club-power/internal/server"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL, database.PoolConfig{
		MinConns:          int32(cfg.PoolSize),
		MaxConns:          cfg.MaxConns(),
		MaxConnLifetime:   cfg.PoolRecycle,
		HealthCheckPeriod: cfg.HealthCheckPeriod,
		TimeZone:          cfg.Location.String(),
	})
	if err != nil {
		logger.Fatal("Failed to connect to the database", zap.Error(err))
	}
	defer dbpool.Close()

	dbManager := database.NewPostgresDBManager(dbpool)

	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN is not set; uploads will be refused")
	}

	// Uploads from the admin panel always replace the whole snapshot.
	ingester := ingestion.NewIngestionService(dbManager, logger, ingestion.Options{
		Policy:    database.PolicyReplace,
		ChunkSize: cfg.ChunkSize,
		Location:  cfg.Location,
	})

	router := server.SetupRoutes(
		server.NewProgressService(dbManager, logger),
		server.NewAdminService(ingester, cfg.AdminToken, cfg.MaxUploadBytes, logger),
		cfg.FrontendOrigin,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.APIPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Server starting", zap.String("port", cfg.APIPort), zap.String("zone", cfg.Location.String()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
	logger.Info("Server stopped")
}
