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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/meilisearch/meilisearch-go"

	"medrag-orchestrator/internal/adapter/llm"
	"medrag-orchestrator/internal/adapter/medhttp"
	"medrag-orchestrator/internal/adapter/rediscache"
	"medrag-orchestrator/internal/adapter/repository"
	"medrag-orchestrator/internal/adapter/searchindex"
	"medrag-orchestrator/internal/infra"
	"medrag-orchestrator/internal/infra/config"
	"medrag-orchestrator/internal/infra/logger"
	"medrag-orchestrator/internal/usecase"
	"medrag-orchestrator/internal/usecase/retrieval"
	"medrag-orchestrator/internal/worker"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.NewWithOTel(cfg.EnableOTelLogs)
	slog.SetDefault(log)

	// 3. Initialize DB
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	dbPool, err := infra.NewPostgresDB(context.Background(), dsn)
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 4. Initialize Cache (optional dependency: a dead cache degrades, never blocks)
	cache, err := rediscache.NewFromURL(cfg.RedisURL, log)
	if err != nil {
		log.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	defer func() { _ = cache.Close() }()

	// 5. Initialize Search Index
	meiliClient := meilisearch.New(cfg.MeilisearchHost, meilisearch.WithAPIKey(cfg.MeilisearchAPIKey))
	lexicalIndex := searchindex.NewMeilisearchIndex(meiliClient, cfg.MeilisearchIndex)
	if err := lexicalIndex.EnsureIndex(context.Background()); err != nil {
		log.Warn("failed to ensure search index, lexical search may be degraded", "error", err)
	}

	// 6. Initialize Adapters
	chunkRepo := repository.NewChunkRepository(dbPool)
	jobRepo := repository.NewIndexJobRepository(dbPool)
	embedder := llm.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, cfg.EmbedTimeoutSec, log)
	encoder := llm.NewCachedEncoder(embedder, cfg.EmbedCacheSize, 10*time.Minute)
	judge := llm.NewOllamaJudge(cfg.OllamaURL, cfg.JudgeModel, cfg.JudgeTimeoutSec, cfg.JudgeMaxRPS, log)

	// 7. Initialize Usecases
	retriever := retrieval.NewHybridRetriever(encoder, lexicalIndex, chunkRepo, cache, retrieval.Config{
		TopK:     cfg.RetrievalTopK,
		RRFK:     cfg.RRFK,
		CacheTTL: time.Duration(cfg.CacheTTLSeconds) * time.Second,
	}, log)

	pipeline := usecase.NewAnswerPipeline(
		usecase.NewGuardrailClassifier(judge, log),
		retriever,
		usecase.NewRelevanceGrader(judge, log),
		usecase.NewQueryRewriter(judge, log),
		usecase.NewAnswerGenerator(judge, log),
		cfg.RetrievalTopK,
		log,
	)

	indexUsecase := usecase.NewIndexDocumentUsecase(encoder, lexicalIndex, chunkRepo, log)

	// 8. Initialize & Start Worker
	jobWorker := worker.NewJobWorker(jobRepo, indexUsecase, log)
	jobWorker.Start()
	// Ensure worker stops on shutdown
	defer func() {
		log.Info("Stopping worker...")
		jobWorker.Stop()
	}()

	// 9. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// 10. Register Handlers
	handler := medhttp.NewHandler(pipeline, jobRepo)
	handler.Register(e)

	// 11. Health Checks
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		if err := dbPool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
		if err := cache.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusOK, map[string]string{"status": "ready", "warning": "cache unreachable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	// 12. Start Server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("Starting server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 13. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
