// Package httpserver wires the gin engine, middleware chain and routes.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lumohq/ops-assistant/internal/config"
	"github.com/lumohq/ops-assistant/internal/interfaces/httpserver/handlers/chathandler"
	"github.com/lumohq/ops-assistant/internal/interfaces/httpserver/handlers/conversationhandler"
	middleware "github.com/lumohq/ops-assistant/internal/interfaces/httpserver/middlewares"
)

type HTTPServer struct {
	engine               *gin.Engine
	config               *config.Config
	logger               zerolog.Logger
	conversationHandlers *conversationhandler.ConversationHandler
	chatHandlers         *chathandler.ChatHandler
}

func NewHTTPServer(
	cfg *config.Config,
	logger zerolog.Logger,
	conversationHandlers *conversationhandler.ConversationHandler,
	chatHandlers *chathandler.ChatHandler,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	server := &HTTPServer{
		engine:               gin.New(),
		config:               cfg,
		logger:               logger,
		conversationHandlers: conversationHandlers,
		chatHandlers:         chatHandlers,
	}

	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.LoggingMiddleware(logger))
	server.engine.Use(middleware.MetricsMiddleware())
	server.engine.Use(middleware.CORSMiddleware())

	server.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	server.registerRoutes()
	return server
}

func (s *HTTPServer) registerRoutes() {
	protected := s.engine.Group("/")
	protected.Use(middleware.AuthMiddleware(s.config.KeySet(), s.logger))

	protected.POST("/conversations", s.conversationHandlers.CreateConversation)
	protected.GET("/conversations", s.conversationHandlers.ListConversations)
	protected.GET("/conversations/:id", s.conversationHandlers.GetConversation)
	protected.DELETE("/conversations/:id", s.conversationHandlers.DeleteConversation)

	protected.POST("/conversations/:id/chat", s.chatHandlers.Chat)
	protected.POST("/conversations/:id/chat/stream", s.chatHandlers.ChatStream)

	protected.GET("/rate-limit", s.chatHandlers.RateLimitStatus)
}

// Handler exposes the gin engine for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
// Streaming responses are unbounded, so no write timeout is set.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
