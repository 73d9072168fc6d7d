// Package conversation holds the conversation aggregate and its store
// contract. The store is the sole source of truth for message history; the
// chat engine never caches it across calls.
package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by store operations on unknown conversation ids.
var ErrNotFound = errors.New("conversation not found")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolInvocation is a model-issued tool call, kept verbatim so the exact
// call can be replayed into follow-up model requests.
type ToolInvocation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallRecord captures one executed SQL tool call for client
// transparency. It is never mutated after the turn completes.
type ToolCallRecord struct {
	Query    string        `json:"query"`
	Status   string        `json:"status"`
	Success  bool          `json:"success"`
	Result   string        `json:"result"`
	Duration time.Duration `json:"duration"`
}

// Message is a single message within a conversation. Content is nil for
// assistant messages that only carry tool calls.
type Message struct {
	Role        Role             `json:"role"`
	Content     *string          `json:"content"`
	Invocations []ToolInvocation `json:"invocations,omitempty"`
	ToolCallID  string           `json:"tool_call_id,omitempty"`
	Records     []ToolCallRecord `json:"records,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Conversation is an ordered message sequence with identity. Insertion
// order is conversation order.
type Conversation struct {
	ID          string
	CreatedAt   time.Time
	LastMessage time.Time
	Messages    []Message
}

// Summary is the listing shape for a conversation.
type Summary struct {
	ID          string
	CreatedAt   time.Time
	LastMessage time.Time
}

// Summary returns the listing shape for the conversation.
func (c *Conversation) Summary() Summary {
	return Summary{ID: c.ID, CreatedAt: c.CreatedAt, LastMessage: c.LastMessage}
}

// Store is the conversation persistence contract. AppendMessage must update
// the conversation's last-activity time.
type Store interface {
	Create(ctx context.Context, conv *Conversation) error
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, id string) (*Conversation, error)
	Delete(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, id string, msg Message) error
}

// Text returns the message content or the empty string when nil.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// TextPtr is a convenience for building messages from literals.
func TextPtr(s string) *string {
	return &s
}
