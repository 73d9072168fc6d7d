// Package chathandler exposes the chat turn endpoints: the blocking turn,
// the SSE streaming turn, and the rate-limit quota check.
package chathandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lumohq/ops-assistant/internal/domain/chat"
	"github.com/lumohq/ops-assistant/internal/domain/conversation"
	"github.com/lumohq/ops-assistant/internal/domain/ratelimit"
	"github.com/lumohq/ops-assistant/internal/infrastructure/metrics"
	"github.com/lumohq/ops-assistant/internal/interfaces/httpserver/middlewares"
	"github.com/lumohq/ops-assistant/internal/interfaces/httpserver/requests"
	"github.com/lumohq/ops-assistant/internal/interfaces/httpserver/responses"
	"github.com/lumohq/ops-assistant/pkg/sse"
)

// TurnEngine runs chat turns. It is satisfied by *chat.Engine and stubbed
// in handler tests.
type TurnEngine interface {
	ProcessMessage(ctx context.Context, convID, userText string) (string, error)
	ProcessMessageStream(ctx context.Context, convID, userText string) <-chan chat.Event
}

// ChatHandler handles chat-turn HTTP requests
type ChatHandler struct {
	engine  TurnEngine
	store   conversation.Store
	limiter *ratelimit.Limiter
	guard   *conversation.TurnGuard
	logger  zerolog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	engine TurnEngine,
	store conversation.Store,
	limiter *ratelimit.Limiter,
	guard *conversation.TurnGuard,
	logger zerolog.Logger,
) *ChatHandler {
	return &ChatHandler{
		engine:  engine,
		store:   store,
		limiter: limiter,
		guard:   guard,
		logger:  logger,
	}
}

// Chat runs one blocking turn and returns the final answer.
func (h *ChatHandler) Chat(c *gin.Context) {
	convID, req, ok := h.admitTurn(c)
	if !ok {
		return
	}
	defer h.guard.Release(convID)

	decision := h.limiter.CheckAndRecord(rateLimitKey(c))
	setRateLimitHeaders(c, decision)
	if !decision.Allowed {
		metrics.RateLimitedTotal.Inc()
		responses.HandleErrorWithStatus(c, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	start := time.Now()
	answer, err := h.engine.ProcessMessage(c.Request.Context(), convID, req.Message)
	if err != nil {
		metrics.RecordTurn("failed", time.Since(start).Seconds())
		h.logger.Error().Err(err).Str("conversation_id", convID).Msg("chat turn failed")
		responses.HandleErrorWithStatus(c, http.StatusInternalServerError, chat.UserFacingMessage(err))
		return
	}
	metrics.RecordTurn("completed", time.Since(start).Seconds())

	c.JSON(http.StatusOK, responses.ChatResponse{
		ConversationID:    convID,
		Response:          answer,
		RemainingRequests: decision.Remaining,
	})
}

// ChatStream runs one turn and streams its events as SSE. Admission (404,
// 409, 429) happens before the first byte of the stream; after that every
// outcome, including turn failure, arrives as an event.
func (h *ChatHandler) ChatStream(c *gin.Context) {
	convID, req, ok := h.admitTurn(c)
	if !ok {
		return
	}
	defer h.guard.Release(convID)

	decision := h.limiter.CheckAndRecord(rateLimitKey(c))
	setRateLimitHeaders(c, decision)
	if !decision.Allowed {
		metrics.RateLimitedTotal.Inc()
		responses.HandleErrorWithStatus(c, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	flusher, ok := middlewares.PrepareSSE(c)
	if !ok {
		responses.HandleErrorWithStatus(c, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	start := time.Now()
	outcome := "completed"
	for event := range h.engine.ProcessMessageStream(c.Request.Context(), convID, req.Message) {
		if event.Type == chat.EventError {
			outcome = "failed"
		}
		payload, err := json.Marshal(event)
		if err != nil {
			h.logger.Error().Err(err).Str("conversation_id", convID).Msg("failed to encode event")
			continue
		}
		if err := sse.WriteEvent(c.Writer, string(event.Type), payload); err != nil {
			// Client went away; the engine notices via the request context.
			outcome = "disconnected"
			break
		}
		flusher.Flush()
	}
	metrics.RecordTurn(outcome, time.Since(start).Seconds())
}

// RateLimitStatus reports the caller's quota without consuming a slot.
func (h *ChatHandler) RateLimitStatus(c *gin.Context) {
	decision := h.limiter.Status(rateLimitKey(c))
	setRateLimitHeaders(c, decision)
	c.JSON(http.StatusOK, responses.RateLimitStatus{
		Limit:     decision.Limit,
		Remaining: decision.Remaining,
		Reset:     decision.Reset.UTC().Format(time.RFC3339),
	})
}

// admitTurn binds the request, checks the conversation exists and takes the
// per-conversation turn lock. On failure the response is already written.
func (h *ChatHandler) admitTurn(c *gin.Context) (string, requests.SendMessageRequest, bool) {
	convID := c.Param("id")

	var req requests.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadRequest, "message is required")
		return "", req, false
	}

	if _, err := h.store.Get(c.Request.Context(), convID); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			responses.HandleErrorWithStatus(c, http.StatusNotFound, "conversation not found")
		} else {
			h.logger.Error().Err(err).Str("conversation_id", convID).Msg("failed to load conversation")
			responses.HandleErrorWithStatus(c, http.StatusInternalServerError, "failed to load conversation")
		}
		return "", req, false
	}

	if !h.guard.TryAcquire(convID) {
		responses.HandleErrorWithStatus(c, http.StatusConflict, "another turn is in progress for this conversation")
		return "", req, false
	}
	return convID, req, true
}

// rateLimitKey identifies the caller for admission control. The API key is
// the identity; unauthenticated paths never reach here.
func rateLimitKey(c *gin.Context) string {
	if key, ok := middlewares.APIKeyFromContext(c); ok {
		return key
	}
	return c.ClientIP()
}

func setRateLimitHeaders(c *gin.Context, d ratelimit.Decision) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Header("X-RateLimit-Reset", d.Reset.UTC().Format(time.RFC3339))
}
