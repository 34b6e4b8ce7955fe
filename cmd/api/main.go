// @title           AI Butler API
// @version         1.0
// @description     Answers customer questions about a business from its FAQ and keeps the conversation history.
// @BasePath        /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aibutler/butler-api/internal/api"
	"github.com/aibutler/butler-api/internal/api/handler"
	"github.com/aibutler/butler-api/internal/api/metrics"
	"github.com/aibutler/butler-api/internal/api/middleware"
	"github.com/aibutler/butler-api/internal/core/ports"
	"github.com/aibutler/butler-api/internal/core/service"
	"github.com/aibutler/butler-api/internal/infrastructure/config"
	"github.com/aibutler/butler-api/internal/infrastructure/db"
	redisstore "github.com/aibutler/butler-api/internal/infrastructure/db/redis"
	"github.com/aibutler/butler-api/internal/infrastructure/llm"
	"github.com/aibutler/butler-api/internal/infrastructure/security"
	"github.com/aibutler/butler-api/internal/infrastructure/tracking"
	"github.com/aibutler/butler-api/internal/infrastructure/vectorindex"
	"github.com/aibutler/butler-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return configError(os.Stderr, err)
	}

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "butler-api",
	})

	reporter, err := newReporter(cfg)
	if err != nil {
		log.Error().Err(err).Msg("error tracking disabled")
		reporter = tracking.Nop{}
	}
	defer reporter.Flush()

	store, err := db.Open(ctx, db.Options{
		URL:           cfg.Database.URL,
		MongoDatabase: cfg.Database.MongoDB,
		Timeout:       cfg.Database.Timeout,
	})
	if err != nil {
		log.Error().Err(err).Str("backend", db.Kind(cfg.Database.URL)).Msg("failed to open store")
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()
	log.Info().Str("backend", db.Kind(cfg.Database.URL)).Msg("store ready")

	tokens, err := security.NewTokenManager(security.TokenConfig{
		Secret:    cfg.Auth.SecretKey,
		Algorithm: cfg.Auth.Algorithm,
		TTL:       cfg.Auth.TokenTTL(),
	})
	if err != nil {
		log.Error().Err(err).Msg("invalid token settings")
		return err
	}

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.Model,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		Temperature:    cfg.OpenAI.Temperature,
		MaxTokens:      cfg.OpenAI.MaxTokens,
	})

	var retriever ports.Retriever
	if cfg.Index.Path != "" {
		index, err := vectorindex.Open(ctx, cfg.Index.Path, client)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.Index.Path).Msg("failed to open FAQ index")
			return err
		}
		defer index.Close()
		retriever = index
	} else {
		log.Warn().Msg("INDEX_PATH not set, answering without retrieval")
	}

	authService := service.NewAuthService(store.Users(), security.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, log)
	conversationService := service.NewConversationService(store.Conversations(), client, retriever, service.ConversationOptions{
		TopK:            cfg.Index.TopK,
		UpstreamTimeout: cfg.OpenAI.UpstreamTimeout,
	}, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pingers := map[string]handler.Pinger{"store": store}
	loginLimiter, askLimiter := middleware.MemoryRateStore(cfg.RateLimit.LoginPerMinute), middleware.MemoryRateStore(cfg.RateLimit.AskPerMinute)
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to redis")
			return err
		}
		defer rdb.Close()

		loginLimiter = redisstore.NewRateLimitStore(rdb, "login", cfg.RateLimit.LoginPerMinute, log)
		askLimiter = redisstore.NewRateLimitStore(rdb, "ask", cfg.RateLimit.AskPerMinute, log)
		pingers["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	e := api.NewRouter(api.Deps{
		Logger:        log,
		Auth:          authService,
		Conversations: conversationService,
		Verifier:      tokens,
		Reporter:      reporter,
		Registry:      reg,
		Metrics:       metrics.New(reg),
		LoginLimiter:  loginLimiter,
		AskLimiter:    askLimiter,
		Pingers:       pingers,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		errCh <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}

// configError logs a startup configuration failure before the configured logger exists.
func configError(out io.Writer, err error) error {
	log := logger.New(logger.Options{Output: out, Service: "butler-api"})
	log.Error().Err(err).Msg("invalid configuration")
	return err
}

func newReporter(cfg *config.Config) (ports.ErrorReporter, error) {
	if cfg.Sentry.DSN == "" {
		return tracking.Nop{}, nil
	}
	reporter, err := tracking.NewSentryReporter(tracking.Config{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Env,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	})
	if err != nil {
		return nil, err
	}
	return reporter, nil
}
