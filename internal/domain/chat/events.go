package chat

// EventType tags the streaming event variants emitted while a turn runs.
type EventType string

const (
	EventStatus         EventType = "status"
	EventReasoningToken EventType = "reasoning_token"
	EventReasoning      EventType = "reasoning"
	EventToolCall       EventType = "tool_call"
	EventToolResult     EventType = "tool_result"
	EventToken          EventType = "token"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// Event is the single tagged-variant type carried from the turn state
// machine to the transport writer. Events are transient; they are
// transmitted, never persisted. Exactly one terminal event (done or error)
// is emitted per turn.
type Event struct {
	Type EventType `json:"type"`
	// Message carries status labels and error text.
	Message string `json:"message,omitempty"`
	// Content carries reasoning text, answer tokens, and the complete
	// final answer on done.
	Content string `json:"content,omitempty"`
	// Query identifies tool_call/tool_result pairs by query text.
	Query string `json:"query,omitempty"`
	// Success and Result are set on tool_result.
	Success *bool  `json:"success,omitempty"`
	Result  string `json:"result,omitempty"`
}

func statusEvent(label string) Event {
	return Event{Type: EventStatus, Message: label}
}

func toolCallEvent(query string) Event {
	return Event{Type: EventToolCall, Query: query}
}

func toolResultEvent(query string, success bool, result string) Event {
	return Event{Type: EventToolResult, Query: query, Success: &success, Result: result}
}

// tokenChunkSize is the rune count per token event when replaying answer
// text to the stream.
const tokenChunkSize = 16

// chunked splits s into rune-safe chunks for incremental emission.
func chunked(s string) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	chunks := make([]string, 0, len(runes)/tokenChunkSize+1)
	for start := 0; start < len(runes); start += tokenChunkSize {
		end := min(start+tokenChunkSize, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
