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
	"github.com/factory-kb/etl-service/internal/llmsvc"
	"github.com/factory-kb/etl-service/internal/logger"
)

func main() {
	// Parse command line flags
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Initialize logger
	logger.Init(*debug)

	logger.Info("Starting LLM service...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Info("Warning: No .env file found or error loading it")
	}

	cfg := config.LoadLLM()

	if logger.IsDebugEnabled() {
		logger.Debug("Configuration loaded: ListenAddr=%s, OllamaHost=%s, ChatModel=%s, EmbeddingModel=%s",
			cfg.ListenAddr, cfg.OllamaHost, cfg.ChatModel, cfg.EmbeddingModel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ollama := llmsvc.NewOllamaClient(llmsvc.OllamaConfig{
		Host:       cfg.OllamaHost,
		ChatModel:  cfg.ChatModel,
		EmbedModel: cfg.EmbeddingModel,
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: llmsvc.New(ollama).Handler(),
	}

	go func() {
		logger.Info("LLM service listening on %s (model %s)", cfg.ListenAddr, cfg.ChatModel)
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
	logger.Info("Shutting down LLM service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error: %v", err)
	}

	logger.Info("LLM service has been shut down")
}
