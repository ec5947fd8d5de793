package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"tabletop-backend/internal/config"
	"tabletop-backend/internal/database"
	"tabletop-backend/internal/presence"
	"tabletop-backend/internal/server"
	"tabletop-backend/internal/service"
	"tabletop-backend/internal/storage"
	"tabletop-backend/internal/telemetry"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("❌ Logger setup failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, "tabletop-api", cfg.Telemetry)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := database.Connect(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Ping(db); err != nil {
		logger.Fatal("database ping failed", zap.Error(err))
	}
	logger.Info("database connected", zap.String("driver", cfg.Database.Driver))

	tracker := presence.New(cfg.Redis, cfg.Sync.PresenceTTL)
	defer func() { _ = tracker.Close() }()

	// A typed nil would defeat the uploader nil check.
	var uploader service.ShareUploader
	if cfg.S3.Enabled() {
		s3, err := storage.NewS3Service(ctx, &cfg.S3)
		if err != nil {
			logger.Warn("share uploads disabled", zap.Error(err))
		} else {
			uploader = s3
		}
	}

	srv, err := server.New(cfg, server.Deps{
		DB:       db,
		Log:      logger,
		Presence: tracker,
		Uploader: uploader,
	})
	if err != nil {
		logger.Fatal("server setup failed", zap.Error(err))
	}
	srv.SetupMiddleware()
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Server.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
