package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/readypath/assess-gateway/internal/api"
	"github.com/readypath/assess-gateway/internal/config"
	"github.com/readypath/assess-gateway/internal/llm"
	"github.com/readypath/assess-gateway/internal/ratelimit"
	"github.com/readypath/assess-gateway/internal/script"
	"github.com/readypath/assess-gateway/internal/submit"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting assess-gateway",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"env", cfg.Env,
	)

	// Create context with cancellation for background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Select the rate-limit store once at startup: shared Redis counters
	// when an address is configured, otherwise a swept in-process map.
	var store ratelimit.Store
	if cfg.Redis.Address != "" {
		redisStore, err := ratelimit.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password)
		if err != nil {
			slog.Error("failed to connect rate limit store", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		slog.Info("rate limiting backed by redis", "address", cfg.Redis.Address)
	} else {
		memStore := ratelimit.NewMemoryStore()
		memStore.StartSweep(ctx, cfg.RateLimit.SweepInterval)
		store = memStore
		slog.Info("rate limiting backed by process-local store")
	}

	limiters := api.Limiters{
		Chat:      ratelimit.New(store, "chat", cfg.RateLimit.ChatWindow, cfg.RateLimit.ChatMax),
		Submit:    ratelimit.New(store, "submit", cfg.RateLimit.SubmitWindow, cfg.RateLimit.SubmitMax),
		Violation: ratelimit.New(store, "violation", cfg.RateLimit.SubmitWindow, cfg.RateLimit.SubmitMax),
	}

	// Load the assessment script (system prompt, questions, catalog)
	loader := script.NewLoader()
	if err := loader.LoadFromFile(cfg.Script.Path); err != nil {
		slog.Warn("failed to load assessment script", "path", cfg.Script.Path, "error", err)
	}

	// Select the LLM provider
	var provider llm.Provider
	if cfg.OpenAI.APIKey != "" {
		provider, err = llm.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, loader.SystemPrompt())
		if err != nil {
			slog.Error("failed to create llm provider", "error", err)
			os.Exit(1)
		}
	} else {
		if !cfg.IsDevelopment() {
			slog.Error("OPENAI_API_KEY is required outside development mode")
			os.Exit(1)
		}
		slog.Warn("no api key configured, using mock provider")
		provider = llm.MockProvider{}
	}

	webhook := submit.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Secret)
	if !webhook.Configured() {
		slog.Warn("webhook url not configured, submissions will not be forwarded")
	}

	// Setup HTTP server. No WriteTimeout: the chat handler streams for
	// longer than any fixed budget and guards itself with a stall timeout.
	server := api.NewServer(cfg.Server, limiters, provider, webhook, loader)
	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("assess-gateway stopped")
}
