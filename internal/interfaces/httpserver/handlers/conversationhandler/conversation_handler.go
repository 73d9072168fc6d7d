// Package conversationhandler exposes conversation CRUD over HTTP.
package conversationhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lumohq/ops-assistant/internal/domain/conversation"
	"github.com/lumohq/ops-assistant/internal/infrastructure/metrics"
	"github.com/lumohq/ops-assistant/internal/interfaces/httpserver/responses"
)

// Creator starts a new conversation seeded with the system prompt.
type Creator interface {
	CreateConversation(ctx context.Context) (*conversation.Conversation, error)
}

// ConversationHandler handles conversation-related HTTP requests
type ConversationHandler struct {
	creator Creator
	store   conversation.Store
	logger  zerolog.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(creator Creator, store conversation.Store, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		creator: creator,
		store:   store,
		logger:  logger,
	}
}

// CreateConversation creates a new conversation and returns its summary.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	conv, err := h.creator.CreateConversation(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create conversation")
		responses.HandleErrorWithStatus(c, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	metrics.ConversationsCreatedTotal.Inc()
	c.JSON(http.StatusCreated, responses.NewConversationSummary(conv.Summary()))
}

// ListConversations returns summaries for every stored conversation.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	summaries, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list conversations")
		responses.HandleErrorWithStatus(c, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	out := make([]responses.ConversationSummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, responses.NewConversationSummary(s))
	}
	c.JSON(http.StatusOK, out)
}

// GetConversation returns one conversation with its visible transcript.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conv, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, conversation.ErrNotFound) {
		responses.HandleErrorWithStatus(c, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get conversation")
		responses.HandleErrorWithStatus(c, http.StatusInternalServerError, "failed to get conversation")
		return
	}
	c.JSON(http.StatusOK, responses.NewConversationDetail(conv))
}

// DeleteConversation removes a conversation and its history.
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	err := h.store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, conversation.ErrNotFound) {
		responses.HandleErrorWithStatus(c, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to delete conversation")
		responses.HandleErrorWithStatus(c, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	c.Status(http.StatusNoContent)
}
