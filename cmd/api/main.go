package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pulseboard/api/internal/app"
	"pulseboard/api/internal/backup"
	"pulseboard/api/internal/config"
	"pulseboard/api/internal/kv"
	"pulseboard/api/internal/objstore"
	"pulseboard/api/internal/search"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	store, err := kv.Open(cfg.RedisURL)
	if err != nil {
		log.Fatalf("key-value store connection failed: %v", err)
	}
	defer store.Close()

	var blobs objstore.BlobStore
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		log.Printf("Using MinIO at %s for gallery images", cfg.MinioEndpoint)
		blobs, err = objstore.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
	} else {
		blobs, err = objstore.NewDirStore(filepath.Join(cfg.DataDir, "images"))
		if err != nil {
			log.Fatalf("image dir setup failed: %v", err)
		}
	}

	images, err := objstore.New(ctx, store.Client(), blobs)
	if err != nil {
		log.Fatalf("image store setup failed: %v", err)
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient)

	backupService := backup.New(cfg.BackupsDir)

	service := app.New(cfg, store, images, searchService, backupService)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Pulseboard API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
