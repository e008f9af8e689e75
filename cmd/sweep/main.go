package main

import (
	"context"
	"log"

	"ai-imagechat-be/internal/bootstrap"
	"ai-imagechat-be/internal/config"
	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/repository/contract"
	"ai-imagechat-be/internal/repository/implementation"
	"ai-imagechat-be/internal/repository/memory"
	"ai-imagechat-be/internal/service"
	"ai-imagechat-be/internal/storage"
)

// One-shot maintenance job: reclaim every image with zero references, then
// exit. Safe to run while the server is up; reclaiming is idempotent.
func main() {
	cfg := config.Load()
	rdb := bootstrap.NewRedis(cfg)
	defer rdb.Close()

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	blobs, err := storage.NewLocalStore(cfg.Storage.UploadDir, cfg.Storage.PublicPrefix)
	if err != nil {
		log.Fatalf("Unable to open upload storage: %v", err)
	}

	imageService := service.NewImageService(
		implementation.NewImageRepository(rdb),
		implementation.NewSessionRepository(rdb),
		memory.NewSessionCache(),
		blobs,
		sysLogger,
	)

	result := imageService.SweepUnreferenced(context.Background(), contract.ImageScope{})
	log.Printf("Sweep done: deleted=%d failed=%d", result.Deleted, result.Failed)
	for _, e := range result.Errors {
		log.Printf("Sweep error: %s", e)
	}
}
