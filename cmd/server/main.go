package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lumohq/ops-assistant/internal/config"
	"github.com/lumohq/ops-assistant/internal/domain/chat"
	"github.com/lumohq/ops-assistant/internal/domain/conversation"
	"github.com/lumohq/ops-assistant/internal/domain/ratelimit"
	"github.com/lumohq/ops-assistant/internal/infrastructure/conversationrepo"
	"github.com/lumohq/ops-assistant/internal/infrastructure/database"
	"github.com/lumohq/ops-assistant/internal/infrastructure/logger"
	"github.com/lumohq/ops-assistant/internal/infrastructure/modelclient"
	"github.com/lumohq/ops-assistant/internal/interfaces/httpserver"
	"github.com/lumohq/ops-assistant/internal/interfaces/httpserver/handlers/chathandler"
	"github.com/lumohq/ops-assistant/internal/interfaces/httpserver/handlers/conversationhandler"
)

func main() {
	// Missing .env is fine in container deployments; env vars win either way.
	_ = godotenv.Load()

	bootLog := logger.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("configure logger")
	}

	db, err := database.OpenReadOnly(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open dataset database")
	}
	defer db.Close()
	executor := database.NewExecutor(db, cfg.QueryTimeout, cfg.MaxQueryRows)

	var store conversation.Store
	if cfg.ConversationsDBPath != "" {
		gormStore, err := conversationrepo.Open(cfg.ConversationsDBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.ConversationsDBPath).Msg("open conversation store")
		}
		store = gormStore
		log.Info().Str("path", cfg.ConversationsDBPath).Msg("using persistent conversation store")
	} else {
		store = conversation.NewMemoryStore()
		log.Info().Msg("using in-memory conversation store")
	}

	model := modelclient.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.ModelTimeout)
	engine := chat.NewEngine(model, executor, store,
		chat.WithMaxRounds(cfg.MaxToolRounds),
		chat.WithLogger(log),
	)

	limiter := ratelimit.NewLimiter(cfg.RateLimitPerHour)
	guard := conversation.NewTurnGuard()

	conversationHandlers := conversationhandler.NewConversationHandler(engine, store, log)
	chatHandlers := chathandler.NewChatHandler(engine, store, limiter, guard, log)
	server := httpserver.NewHTTPServer(cfg, log, conversationHandlers, chatHandlers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Int("port", cfg.HTTPPort).Msg("http server listening")
		return server.Run(ctx)
	})
	eg.Go(func() error {
		return runMetricsServer(ctx, cfg.MetricsPort)
	})

	if err := eg.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("shutdown complete")
}

func runMetricsServer(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
