package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trafficlaw-gateway/internal/adapter/api"
	"trafficlaw-gateway/internal/adapter/client"
	"trafficlaw-gateway/internal/adapter/store"
	"trafficlaw-gateway/internal/config"
	"trafficlaw-gateway/internal/domain/entity"
	"trafficlaw-gateway/internal/domain/repository"
	"trafficlaw-gateway/internal/logging"
	"trafficlaw-gateway/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".env", ".env.dev")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("gateway stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	pool, embedder, err := buildCredentials(ctx, cfg, log)
	if err != nil {
		return err
	}

	limiter, err := buildLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}

	cache, err := store.NewLRUCache(cfg.CacheMaxSize, log)
	if err != nil {
		return err
	}

	retriever := buildRetriever(ctx, cfg, embedder, log)

	orchestrator := usecase.NewOrchestrator(
		limiter,
		cache,
		usecase.NewClassifier(cfg.Profile),
		retriever,
		usecase.NewUpstreamClient(pool, cfg.Profile.Apology, log),
		cfg.Profile,
		cfg.HistoryTurns,
		log,
	)

	app := fiber.New(fiber.Config{
		AppName: "Traffic Law Gateway",
	})
	handler := api.NewPromptHandler(orchestrator, cfg.Window, log)
	api.SetupRouter(app, handler, api.BuildInfo{Version: cfg.Version, Env: cfg.Env})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	log.Info("gateway listening",
		zap.String("port", cfg.Port),
		zap.Int("credentials", len(pool)),
		zap.String("limiter", cfg.LimitBackend),
		zap.String("index", cfg.IndexBackend),
	)
	return app.Listen(":" + cfg.Port)
}

// buildCredentials creates one Gemini client per API key. Query embeddings
// use the first key.
func buildCredentials(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]usecase.Credential, *client.Embedder, error) {
	if len(cfg.APIKeys) == 0 {
		log.Warn("GEMINI_API_KEY is empty; chat requests will be refused")
		return nil, nil, nil
	}

	pool := make([]usecase.Credential, 0, len(cfg.APIKeys))
	var embedder *client.Embedder
	for i, key := range cfg.APIKeys {
		label := usecase.MaskCredential(i, key)
		genaiClient, err := client.NewAPIClient(ctx, key)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini client %s: %w", label, err)
		}
		pool = append(pool, usecase.Credential{Label: label, Generator: client.NewGeminiClient(genaiClient, cfg.Model)})
		if embedder == nil {
			embedder = client.NewEmbedder(genaiClient, cfg.EmbedModel)
		}
	}
	return pool, embedder, nil
}

func buildLimiter(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.RateLimiter, error) {
	if cfg.LimitBackend != "redis" {
		return store.NewMemoryLimiter(cfg.RateLimit, cfg.Window, log), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// The limiter fails open, so an unreachable Redis is not fatal.
		log.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return store.NewRedisLimiter(rdb, cfg.RateLimit, cfg.Window, log), nil
}

// buildRetriever returns nil when retrieval is unavailable; domain prompts
// are then answered without context.
func buildRetriever(ctx context.Context, cfg *config.Config, embedder *client.Embedder, log *zap.Logger) *usecase.Retriever {
	if embedder == nil {
		return nil
	}

	records, err := store.LoadDocuments(cfg.VectorDBPath)
	if err != nil {
		log.Warn("vector database not loaded, retrieval disabled", zap.String("path", cfg.VectorDBPath), zap.Error(err))
		return nil
	}
	if len(records) == 0 {
		log.Warn("vector database is empty, retrieval disabled", zap.String("path", cfg.VectorDBPath))
		return nil
	}

	var index repository.VectorIndex
	switch cfg.IndexBackend {
	case "qdrant":
		qs, err := openQdrant(ctx, cfg, records, log)
		if err != nil {
			log.Warn("qdrant unavailable, retrieval disabled", zap.Error(err))
			return nil
		}
		index = qs
	default:
		index = store.NewMemoryIndex(records)
	}

	log.Info("vector database loaded", zap.Int("sections", len(records)), zap.String("backend", cfg.IndexBackend))
	return usecase.NewRetriever(embedder, index, store.Contents(records), cfg.TopK, cfg.Threshold, log)
}

func openQdrant(ctx context.Context, cfg *config.Config, records []entity.DocumentRecord, log *zap.Logger) (*store.QdrantStore, error) {
	qClient, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.QdrantHost,
		Port: cfg.QdrantPort,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	qs := store.NewQdrantStore(qClient, cfg.QdrantCollection)
	if err := qs.EnsureCollection(ctx, uint64(len(records[0].Embedding))); err != nil {
		return nil, err
	}
	if err := seedCollection(ctx, qs, records, log.With(zap.String("collection", cfg.QdrantCollection))); err != nil {
		return nil, err
	}
	return qs, nil
}

type corpusCollection interface {
	Count(ctx context.Context) (uint64, error)
	Upsert(ctx context.Context, records []entity.DocumentRecord) error
}

// seedCollection fills an empty collection from the vector database so
// domain questions are not silently answered without context. A populated
// collection of a different size is kept but reported.
func seedCollection(ctx context.Context, coll corpusCollection, records []entity.DocumentRecord, log *zap.Logger) error {
	n, err := coll.Count(ctx)
	if err != nil {
		return fmt.Errorf("count points: %w", err)
	}
	switch {
	case n == 0:
		log.Warn("qdrant collection is empty, seeding from vector database", zap.Int("records", len(records)))
		if err := coll.Upsert(ctx, records); err != nil {
			return fmt.Errorf("seed collection: %w", err)
		}
	case n != uint64(len(records)):
		log.Warn("qdrant collection does not match vector database; rerun ingest --qdrant",
			zap.Uint64("points", n),
			zap.Int("records", len(records)),
		)
	}
	return nil
}
