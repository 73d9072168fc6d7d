package responses

import (
	"time"

	"github.com/lumohq/ops-assistant/internal/domain/conversation"
)

// ConversationSummary is the list/create shape for a conversation.
type ConversationSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	LastMessage time.Time `json:"last_message"`
}

// MessageResponse is one visible message in a conversation detail.
type MessageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationDetail is the summary plus the visible message transcript.
type ConversationDetail struct {
	ConversationSummary
	Messages []MessageResponse `json:"messages"`
}

// NewConversationSummary converts a domain summary to its response shape.
func NewConversationSummary(s conversation.Summary) ConversationSummary {
	return ConversationSummary{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt,
		LastMessage: s.LastMessage,
	}
}

// NewConversationDetail converts a conversation to its response shape.
// Internal messages are filtered out: the system prompt, tool results and
// contentless assistant tool-call messages are transcript plumbing, not
// something the client should render.
func NewConversationDetail(conv *conversation.Conversation) ConversationDetail {
	detail := ConversationDetail{
		ConversationSummary: ConversationSummary{
			ID:          conv.ID,
			CreatedAt:   conv.CreatedAt,
			LastMessage: conv.LastMessage,
		},
		Messages: make([]MessageResponse, 0, len(conv.Messages)),
	}
	for _, msg := range conv.Messages {
		if msg.Role != conversation.RoleUser && msg.Role != conversation.RoleAssistant {
			continue
		}
		if msg.Content == nil {
			continue
		}
		detail.Messages = append(detail.Messages, MessageResponse{
			Role:      string(msg.Role),
			Content:   *msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	return detail
}
