package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/arturoeanton/go-study-assistant/internal/adapter/ai"
	"github.com/arturoeanton/go-study-assistant/internal/adapter/generate"
	"github.com/arturoeanton/go-study-assistant/internal/adapter/pdf"
	"github.com/arturoeanton/go-study-assistant/internal/adapter/store"
	"github.com/arturoeanton/go-study-assistant/internal/chunker"
	"github.com/arturoeanton/go-study-assistant/internal/handler"
	"github.com/arturoeanton/go-study-assistant/internal/mcp"
	"github.com/arturoeanton/go-study-assistant/internal/middleware"
	"github.com/arturoeanton/go-study-assistant/internal/port"
	"github.com/arturoeanton/go-study-assistant/internal/service"
	"github.com/arturoeanton/go-study-assistant/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("🚀 Starting Study Assistant",
		"port", cfg.Port,
		"ai_provider", cfg.AIProvider,
		"database", cfg.UsesDatabase(),
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Storage ──────────────────────────────────────────────────────────
	st, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// ── Adapters ─────────────────────────────────────────────────────────
	provider := newAIProvider(cfg)
	extractor := pdf.NewExtractor(cfg.MaxUploadBytes())

	textChunker, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		slog.Error("invalid chunker settings", "error", err)
		os.Exit(1)
	}
	slog.Info("chunker configured", "chunk_size", textChunker.ChunkSize(), "chunk_overlap", textChunker.Overlap())

	// ── Generator Engine (Strategy Pattern) ─────────────────────────────
	engine := port.NewGeneratorEngine(
		generate.NewFlashcardGenerator(provider),
		generate.NewQuizGenerator(provider),
		generate.NewSummaryGenerator(provider),
	)
	slog.Info("generators registered", "names", engine.AvailableGenerators())

	// ── Services ─────────────────────────────────────────────────────────
	documentService := service.NewDocumentService(st, extractor, textChunker)
	studyService := service.NewStudyService(st, provider, engine, cfg.MaxRelevantChunks)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		BodyLimit:    int(cfg.MaxUploadBytes()) + 1<<20, // room for multipart framing
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	}))

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(st))

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"model":   provider.ModelName(),
			"version": "1.0.0",
		})
	})

	// ── Routes ───────────────────────────────────────────────────────────
	api := app.Group("/api/v1")

	jobTracker := handler.NewJobTracker()

	handler.NewDocumentHandler(documentService, jobTracker, cfg.MaxUploadBytes()).Register(api)
	handler.NewAIHandler(studyService).Register(api)
	handler.NewJobsHandler(jobTracker).Register(api)
	handler.NewActivityHandler(st).Register(api)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(documentService, studyService, st, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// openStore returns the Postgres store when DATABASE_URL is set, otherwise an
// in-memory store.
func openStore(cfg *config.Config) (port.Store, error) {
	if !cfg.UsesDatabase() {
		slog.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemoryStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return pg, nil
}

func newAIProvider(cfg *config.Config) port.AIProvider {
	if cfg.AIProvider == config.ProviderOpenAI {
		return ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	}
	return ai.NewOllamaProvider(ai.OllamaEndpointConfig{
		BaseURL: cfg.OllamaChatURL,
		Model:   cfg.OllamaChatModel,
		Token:   cfg.OllamaChatToken,
	})
}
