package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"estate-agent/chat"
	"estate-agent/config"
	"estate-agent/gemini"
	"estate-agent/identity"
	"estate-agent/places"
	"estate-agent/prompts"
	"estate-agent/session"
	"estate-agent/storage"
	"estate-agent/web"
	"estate-agent/web/format"
	"estate-agent/web/services"
)

func main() {
	ctx := context.Background()

	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load(tempLogger)

	// Re-initialize logger with configured level
	logger, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	durable, err := openDurableStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage backend", zap.Error(err))
	}
	defer durable.Close()

	// A missing key is not fatal: the app still serves stored sessions,
	// and turns degrade to apologies until a key arrives.
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; chat turns will fail until it is configured")
	}

	guest := storage.NewMemoryStore()
	identityManager := identity.NewManager(durable, logger)
	sessionStore := session.NewStore(durable, guest, logger)

	client := gemini.New(cfg, logger)
	chatManager := chat.NewManager(client, places.NewNormalizer(logger), prompts.System(), logger)

	renderer, err := format.NewRenderer(cfg.RenderCacheSize, logger)
	if err != nil {
		logger.Fatal("Failed to initialize renderer", zap.Error(err))
	}

	sessionService := services.NewSessionService(sessionStore, identityManager, renderer, logger)
	sessionService.Bootstrap(ctx)
	turnService := services.NewTurnService(sessionService, chatManager, logger)

	webServer := web.NewServer(sessionService, turnService, logger, cfg)

	// Create context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	port := fmt.Sprintf(":%d", cfg.WebPort)
	logger.Info("Starting Estate Scout web server", zap.String("port", port))
	if err := webServer.Start(ctx, port); err != nil {
		logger.Error("Web server error", zap.Error(err))
		os.Exit(1)
	}
}

func openDurableStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.KV, error) {
	switch cfg.StorageBackend {
	case "postgres":
		logger.Info("Using postgres storage")
		return storage.NewPostgresStore(ctx, cfg.PostgresDSN)
	case "memory":
		logger.Warn("Using in-memory storage; sessions will not survive restarts")
		return storage.NewMemoryStore(), nil
	default:
		logger.Info("Using bolt storage", zap.String("path", cfg.BoltPath))
		return storage.NewBoltStore(cfg.BoltPath)
	}
}
