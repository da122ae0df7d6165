package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"support-chat/internal/config"
	"support-chat/internal/db"
	apihttp "support-chat/internal/http"
	"support-chat/internal/llm"
	"support-chat/internal/repository"
	"support-chat/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Con DATABASE_URL el transcript vive en Postgres; sin ella el servicio
	// corre como binario único sobre un archivo SQLite.
	var transcripts repository.TranscriptRepository
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Ping(ctx, pool); err != nil {
			logger.Fatal("db ping", zap.Error(err))
		}
		transcripts = repository.NewPgTranscriptRepository(pool)
		logger.Info("transcript store ready", zap.String("backend", "postgres"))
	} else {
		store, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("sqlite open", zap.Error(err))
		}
		defer store.Close()
		transcripts = store
		logger.Info("transcript store ready", zap.String("backend", "sqlite"), zap.String("path", cfg.SQLitePath))
	}

	var contextCache *service.RedisContextCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, context cache disabled", zap.Error(err))
		} else {
			contextCache = service.NewRedisContextCache(redisClient, 24*time.Hour)
		}
		cancel()
	}

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.OpenRouterAPIKey, logger)
	gateway := llm.NewGateway(llmClient, cfg.LLMModels, cfg.LLMMaxTokens, logger)
	contextSvc := service.NewBasicContextService(transcripts, contextCache)
	chatSvc := service.NewChatService(logger, transcripts, contextSvc, gateway, contextCache, cfg.MaxMessageLength)

	chatHandler := apihttp.NewChatHandler(logger, chatSvc)
	router := apihttp.NewRouter(logger, cfg.AllowedOrigins, chatHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.Strings("models", cfg.LLMModels),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
