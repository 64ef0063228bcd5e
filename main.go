package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/schemasketch/engine/pkg/auth"
	"github.com/schemasketch/engine/pkg/config"
	"github.com/schemasketch/engine/pkg/database"
	"github.com/schemasketch/engine/pkg/handlers"
	"github.com/schemasketch/engine/pkg/llm"
	"github.com/schemasketch/engine/pkg/logging"
	"github.com/schemasketch/engine/pkg/middleware"
	"github.com/schemasketch/engine/pkg/repositories"
	"github.com/schemasketch/engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis", cfg.Redis.Addr),
		zap.String("default_model", cfg.AI.DefaultModel))

	ctx := context.Background()

	// Database
	if err := database.RunMigrations(cfg.Database.ConnectionString(), "migrations", logger); err != nil {
		logger.Fatal("failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	// Redis-backed AI response cache; optional.
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.String("error", logging.SanitizeError(err)))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Model catalog
	catalog, err := config.LoadCatalog(cfg.AI.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load model catalog", zap.Error(err))
	}

	// AI providers: OpenAI is the fallback, claude-* goes to Anthropic,
	// gemini-* goes to Google's OpenAI-compatible endpoint.
	openaiClient, err := llm.NewOpenAIClient(&llm.OpenAIConfig{
		BaseURL: cfg.AI.OpenAIBaseURL,
		APIKey:  cfg.AI.OpenAIAPIKey,
		Name:    "openai",
	}, logger)
	if err != nil {
		logger.Fatal("failed to create OpenAI client", zap.Error(err))
	}
	geminiClient, err := llm.NewOpenAIClient(&llm.OpenAIConfig{
		BaseURL: cfg.AI.GeminiBaseURL,
		APIKey:  cfg.AI.GeminiAPIKey,
		Name:    "gemini",
	}, logger)
	if err != nil {
		logger.Fatal("failed to create Gemini client", zap.Error(err))
	}

	router := llm.NewRouter(openaiClient, cfg.AI.Timeout(), logger)
	router.Register("claude-", llm.NewAnthropicClient(cfg.AI.AnthropicAPIKey, logger))
	router.Register("gemini-", geminiClient)

	// Repositories
	diagramRepo := repositories.NewDiagramRepository(db)
	aiCache := repositories.NewAICacheRepository(redisClient, cfg.Redis.TTL())

	// Services
	generationService := services.NewGenerationService(
		diagramRepo, aiCache, router, catalog, &cfg.AI, cfg.Limits.ChatHistoryTurns, logger)
	diagramService := services.NewDiagramService(
		diagramRepo, generationService, catalog, &cfg.Limits, logger)
	authService := auth.NewService(&cfg.Session, logger)

	// HTTP surface
	mux := http.NewServeMux()
	authMiddleware := auth.NewMiddleware(authService, logger)

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewModelsHandler(catalog, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(authService, diagramService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewDiagramsHandler(diagramService, logger).RegisterRoutes(mux, authMiddleware)

	handler := middleware.CORS(cfg.AllowedOrigins)(
		middleware.RequestLogger(logger)(mux))

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("starting schemasketch-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// newLogger builds a production logger, or a development logger for local
// environments.
func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
