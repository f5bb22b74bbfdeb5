package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lorekeeper/api/internal/app"
	"lorekeeper/api/internal/archive"
	"lorekeeper/api/internal/attachment"
	"lorekeeper/api/internal/config"
	"lorekeeper/api/internal/docstore"
	"lorekeeper/api/internal/search"
	"lorekeeper/api/internal/session"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	docs, err := openDocStore(ctx, cfg)
	if err != nil {
		log.Fatalf("document store connection failed: %v", err)
	}
	defer docs.Close()

	if err := os.MkdirAll(cfg.ArchivesDir, 0o755); err != nil {
		log.Fatalf("failed to create archives dir: %v", err)
	}
	archives := archive.New(cfg.ArchivesDir)

	scan := search.NewScan(docs)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searcher := search.NewService(meiliClient, scan)

	// Refresh tokens live in Redis when available, otherwise in the
	// document store itself.
	var sessions session.Store
	if cfg.Backend != "memory" && strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		sessions = redisStore
		log.Printf("using Redis for refresh token storage")
	} else {
		sessions = session.NewDocStore(docs)
		log.Printf("using the document store for refresh token storage")
	}

	service := app.New(cfg, docs, sessions, searcher, archives)

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		attachments, err := attachment.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object storage setup failed: %v", err)
		}
		if err := attachments.EnsureBucket(ctx); err != nil {
			log.Fatalf("object storage bucket check failed: %v", err)
		}
		service.WithAttachments(attachments)
		log.Printf("attachments enabled on bucket %s", cfg.MinioBucket)
	}

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
		log.Printf("Lorekeeper API listening on %s (backend=%s)", cfg.Addr, cfg.Backend)
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

func openDocStore(ctx context.Context, cfg config.Config) (docstore.Store, error) {
	switch cfg.Backend {
	case "postgres":
		return docstore.OpenPostgres(ctx, cfg.DatabaseURL)
	case "redis":
		return docstore.NewRedis(cfg.RedisURL)
	default:
		return docstore.NewMemory(), nil
	}
}
