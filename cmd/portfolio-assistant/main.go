package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"portfolio-assistant/internal/api"
	"portfolio-assistant/internal/api/handlers"
	"portfolio-assistant/internal/prompts"
	"portfolio-assistant/internal/repository"
	"portfolio-assistant/internal/service"
	"portfolio-assistant/pkg/config"
	"portfolio-assistant/pkg/logger"
	"portfolio-assistant/pkg/postgres"

	"go.uber.org/zap"
)

// @title Portfolio Assistant API
// @version 1.0
// @description Chat assistant answering visitor questions from portfolio knowledge
// @BasePath /api

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting portfolio assistant",
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("policy", cfg.Chat.Policy),
	)

	missing := cfg.Missing()
	if len(missing) > 0 {
		appLogger.Warn("Required settings are missing, chat requests will fail until they are provided",
			zap.Strings("missing", missing),
		)
	}

	ctx := context.Background()
	store, closeStore := openStore(ctx, cfg, missing, appLogger)
	defer closeStore()

	// Initialize services
	policy, err := prompts.LookupPolicy(cfg.Chat.Policy)
	if err != nil {
		appLogger.Fatal("Invalid response policy", zap.Error(err))
	}
	assembler := prompts.NewAssembler(policy, prompts.Options{
		OwnerName:    cfg.Chat.OwnerName,
		Projects:     cfg.Chat.Projects,
		HistoryTurns: cfg.Chat.HistoryTurns,
	})

	llmService := service.NewLLMService(&cfg.Completion, appLogger)
	ragService := service.NewRAGService(store, &cfg.RAG, appLogger)
	chatService := service.NewChatService(ragService, assembler, llmService, service.ChatOptions{
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
		Missing:     missing,
	}, appLogger)

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(chatService, cfg.Chat.RequestTimeout, appLogger)

	// Setup router
	app := api.SetupRouter(chatHandler, appLogger)
	app.Server().ReadTimeout = cfg.Server.ReadTimeout
	app.Server().WriteTimeout = cfg.Server.WriteTimeout

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}

// openStore builds the configured knowledge store. A store whose credentials
// are missing is left nil so requests report the configuration error.
func openStore(ctx context.Context, cfg *config.Config, missing []string, appLogger *zap.Logger) (service.KnowledgeStore, func()) {
	noop := func() {}

	switch cfg.Store.Driver {
	case config.StoreDriverREST:
		if slices.Contains(missing, "KNOWLEDGE_API_URL") || slices.Contains(missing, "KNOWLEDGE_API_KEY") {
			return nil, noop
		}
		client := &http.Client{Timeout: cfg.Knowledge.Timeout}
		return repository.NewRESTKnowledgeRepository(cfg.Knowledge.URL, cfg.Knowledge.APIKey, cfg.Store.Table, client, appLogger), noop

	default:
		if slices.Contains(missing, "DB_HOST") || slices.Contains(missing, "DB_NAME") {
			return nil, noop
		}
		db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		return repository.NewKnowledgeRepository(db, cfg.Store.Table, appLogger), db.Close
	}
}
