package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/factory-kb/etl-service/internal/config"
	"github.com/factory-kb/etl-service/internal/embed"
	"github.com/factory-kb/etl-service/internal/logger"
	"github.com/factory-kb/etl-service/internal/parser"
	"github.com/factory-kb/etl-service/internal/pipeline"
	"github.com/factory-kb/etl-service/internal/rag"
	"github.com/factory-kb/etl-service/internal/server"
	"github.com/factory-kb/etl-service/internal/storage"
)

func main() {
	// Parse command line flags
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Initialize logger
	logger.Init(*debug)

	logger.Info("Starting ETL service...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Info("Warning: No .env file found or error loading it")
	}

	cfg := config.LoadETL()

	if logger.IsDebugEnabled() {
		logger.Debug("Configuration loaded: ListenAddr=%s, MilvusAddr=%s, MinioEndpoint=%s, LLMServiceURL=%s",
			cfg.ListenAddr, cfg.MilvusAddr(), cfg.MinioEndpoint, cfg.LLMServiceURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Initializing services...")

	store, err := storage.NewMinioStore(storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Error("Failed to initialize MinIO client: %v", err)
		os.Exit(1)
	}

	index, err := rag.NewMilvusIndex(ctx, cfg.MilvusAddr(), cfg.Collection, cfg.EmbeddingDim)
	if err != nil {
		logger.Error("Failed to initialize Milvus client: %v", err)
		os.Exit(1)
	}

	// Fail fast if the backing stores cannot be prepared.
	startupCtx, startupCancel := context.WithTimeout(ctx, 60*time.Second)
	defer startupCancel()

	if err := store.EnsureBucket(startupCtx); err != nil {
		logger.Error("Failed to ensure bucket: %v", err)
		os.Exit(1)
	}
	if err := index.EnsureCollection(startupCtx); err != nil {
		logger.Error("Failed to ensure collection: %v", err)
		os.Exit(1)
	}

	embedder := embed.NewClient(embed.Config{
		BaseURL:      cfg.LLMServiceURL,
		ReturnSparse: true,
	})

	p := pipeline.New(store, parser.New(), embedder, index, pipeline.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(p).Handler(),
	}

	go func() {
		logger.Info("ETL service listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error: %v", err)
			cancel()
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-ctx.Done():
	}
	logger.Info("Shutting down ETL service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error: %v", err)
	}
	if err := index.Close(shutdownCtx); err != nil {
		logger.Error("Milvus client close error: %v", err)
	}

	logger.Info("ETL service has been shut down")
}
