// Package chat drives the multi-round tool-calling loop between the model
// and the SQL execution sandbox. The model's callback style is re-expressed
// as an explicit state machine: every transition is driven by a model
// response, a finished tool execution, or the round cap.
package chat

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/lumohq/ops-assistant/internal/domain/conversation"
	"github.com/lumohq/ops-assistant/internal/domain/sqlguard"
	"github.com/lumohq/ops-assistant/internal/infrastructure/database"
	"github.com/lumohq/ops-assistant/internal/infrastructure/metrics"
)

// ErrContextLengthExceeded marks a model failure caused by the conversation
// outgrowing the model's context window. Mid-history truncation is not
// attempted; the user is told to start a new conversation.
var ErrContextLengthExceeded = errors.New("model context length exceeded")

const (
	// ContextLengthUserMessage is the user-facing text for context-length
	// failures.
	ContextLengthUserMessage = "This conversation has exceeded the model's context window. Please start a new conversation."
	// GenericFailureUserMessage covers every other fatal model/API failure.
	GenericFailureUserMessage = "Something went wrong while generating a response. Please try again."

	// fallbackAnswer is returned when a turn ends with no narration at all.
	fallbackAnswer = "I was unable to produce an answer for that question. Please try rephrasing it."

	statusThinking = "Thinking..."
	statusQuerying = "Querying database..."

	defaultMaxRounds = 10
)

// turnState names the states of the tool-calling loop.
type turnState string

const (
	stateAwaitingModel turnState = "AWAITING_MODEL"
	stateExecutingTool turnState = "EXECUTING_TOOL"
	stateDone          turnState = "DONE"
)

// ModelClient is the chat-completion surface the engine depends on. The
// returned message may carry tool calls, final text, or both.
type ModelClient interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error)
}

// QueryRunner executes validator-approved SQL.
type QueryRunner interface {
	Execute(ctx context.Context, query string) (*database.QueryResult, error)
}

// Engine composes the validator, executor, store and model client into the
// turn procedure. One turn per conversation runs at a time; the HTTP layer
// enforces that with a TurnGuard.
type Engine struct {
	model     ModelClient
	runner    QueryRunner
	store     conversation.Store
	maxRounds int
	clock     func() time.Time
	log       zerolog.Logger
}

type Option func(*Engine)

// WithMaxRounds bounds the model-request/response cycles per turn.
func WithMaxRounds(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRounds = n
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

func NewEngine(model ModelClient, runner QueryRunner, store conversation.Store, opts ...Option) *Engine {
	e := &Engine{
		model:     model,
		runner:    runner,
		store:     store,
		maxRounds: defaultMaxRounds,
		clock:     time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateConversation creates a conversation seeded with the time-aware
// system prompt. The timestamp is injected at creation so the model can
// resolve relative references like "last hour".
func (e *Engine) CreateConversation(ctx context.Context) (*conversation.Conversation, error) {
	now := e.clock()
	conv := &conversation.Conversation{
		ID:          newConversationID(),
		CreatedAt:   now,
		LastMessage: now,
		Messages: []conversation.Message{
			{
				Role:      conversation.RoleSystem,
				Content:   conversation.TextPtr(SystemPrompt(now)),
				Timestamp: now,
			},
		},
	}
	if err := e.store.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ProcessMessage runs a full non-streaming turn and returns the final
// answer text.
func (e *Engine) ProcessMessage(ctx context.Context, convID, userText string) (string, error) {
	return e.runTurn(ctx, convID, userText, func(Event) {})
}

// ProcessMessageStream runs a turn while emitting every intermediate event
// on the returned channel. The channel carries exactly one terminal event
// (done or error) and is closed when the turn ends. Cancelling ctx abandons
// the turn; partial messages already persisted remain.
func (e *Engine) ProcessMessageStream(ctx context.Context, convID, userText string) <-chan Event {
	events := make(chan Event, 64)
	go func() {
		defer close(events)
		emit := func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		answer, err := e.runTurn(ctx, convID, userText, emit)
		if err != nil {
			emit(Event{Type: EventError, Message: UserFacingMessage(err)})
			return
		}
		emit(Event{Type: EventDone, Content: answer})
	}()
	return events
}

// UserFacingMessage maps a fatal turn error to the text shown to the user.
func UserFacingMessage(err error) string {
	if errors.Is(err, ErrContextLengthExceeded) {
		return ContextLengthUserMessage
	}
	return GenericFailureUserMessage
}

// runTurn is the turn state machine. SQL-level failures are absorbed into
// model-visible tool results; only model/API failures escape as errors.
func (e *Engine) runTurn(ctx context.Context, convID, userText string, emit func(Event)) (string, error) {
	conv, err := e.store.Get(ctx, convID)
	if err != nil {
		return "", err
	}

	userMsg := conversation.Message{
		Role:      conversation.RoleUser,
		Content:   conversation.TextPtr(userText),
		Timestamp: e.clock(),
	}
	if err := e.store.AppendMessage(ctx, convID, userMsg); err != nil {
		return "", err
	}
	apiMessages := toAPIMessages(append(conv.Messages, userMsg))

	log := e.log.With().Str("conversation_id", convID).Logger()

	// Reasoning narration concatenates across rounds. A later round with no
	// narration must never erase what an earlier round said.
	var reasoning strings.Builder
	rounds := 0

	for state := stateAwaitingModel; state != stateDone; {
		if rounds >= e.maxRounds {
			log.Warn().Int("rounds", rounds).Msg("round cap reached, forcing termination")
			answer := strings.TrimSpace(reasoning.String())
			if answer == "" {
				answer = fallbackAnswer
			}
			return answer, e.finishTurn(ctx, convID, answer, emit)
		}

		emit(statusEvent(statusThinking))
		message, err := e.model.Complete(ctx, apiMessages, Tools())
		if err != nil {
			log.Error().Err(err).Int("round", rounds+1).Msg("model request failed")
			return "", err
		}
		rounds++
		metrics.ModelRoundsTotal.Inc()

		if len(message.ToolCalls) == 0 {
			answer := strings.TrimSpace(message.Content)
			if answer == "" {
				answer = fallbackAnswer
			}
			return answer, e.finishTurn(ctx, convID, answer, emit)
		}

		if message.Content != "" {
			for _, chunk := range chunked(message.Content) {
				emit(Event{Type: EventReasoningToken, Content: chunk})
			}
			if reasoning.Len() > 0 {
				reasoning.WriteString("\n\n")
			}
			reasoning.WriteString(message.Content)
			emit(Event{Type: EventReasoning, Content: reasoning.String()})
		}

		state = stateExecutingTool
		assistantMsg := conversation.Message{
			Role:        conversation.RoleAssistant,
			Content:     optionalText(message.Content),
			Invocations: toInvocations(message.ToolCalls),
			Timestamp:   e.clock(),
		}

		// Tool calls run one at a time, in the order requested. Each
		// round's request depends on the prior round's results, so there is
		// nothing to fan out.
		toolMessages := make([]conversation.Message, 0, len(message.ToolCalls))
		for _, call := range message.ToolCalls {
			record := e.executeToolCall(ctx, call, emit)
			assistantMsg.Records = append(assistantMsg.Records, record)
			toolMessages = append(toolMessages, conversation.Message{
				Role:       conversation.RoleTool,
				Content:    conversation.TextPtr(record.Result),
				ToolCallID: call.ID,
				Timestamp:  e.clock(),
			})
			log.Debug().
				Str("query", record.Query).
				Bool("success", record.Success).
				Dur("duration", record.Duration).
				Msg("tool call executed")
		}

		if err := e.store.AppendMessage(ctx, convID, assistantMsg); err != nil {
			return "", err
		}
		apiMessages = append(apiMessages, toAPIMessage(assistantMsg))
		for _, tm := range toolMessages {
			if err := e.store.AppendMessage(ctx, convID, tm); err != nil {
				return "", err
			}
			apiMessages = append(apiMessages, toAPIMessage(tm))
		}
		state = stateAwaitingModel
	}

	// Unreachable: the loop exits through finishTurn.
	return "", errors.New("turn ended without a terminal state")
}

// finishTurn persists the final assistant message and replays the answer as
// token events. The terminal done/error event is the caller's job so that
// exactly one is ever emitted.
func (e *Engine) finishTurn(ctx context.Context, convID, answer string, emit func(Event)) error {
	msg := conversation.Message{
		Role:      conversation.RoleAssistant,
		Content:   conversation.TextPtr(answer),
		Timestamp: e.clock(),
	}
	if err := e.store.AppendMessage(ctx, convID, msg); err != nil {
		return err
	}
	for _, chunk := range chunked(answer) {
		emit(Event{Type: EventToken, Content: chunk})
	}
	return nil
}

// executeToolCall gates one model-proposed query through the validator and
// executor. Failures of either are recoverable: they become a failed tool
// result the model can react to, never an aborted turn.
func (e *Engine) executeToolCall(ctx context.Context, call openai.ToolCall, emit func(Event)) conversation.ToolCallRecord {
	if call.Function.Name != ToolName {
		payload := errorPayload(fmt.Sprintf("unknown tool: %s", call.Function.Name))
		emit(toolResultEvent("", false, payload))
		return conversation.ToolCallRecord{
			Status: "rejected: unknown tool",
			Result: payload,
		}
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		payload := errorPayload(fmt.Sprintf("malformed tool arguments: %v", err))
		emit(toolResultEvent("", false, payload))
		return conversation.ToolCallRecord{
			Status: "rejected: malformed arguments",
			Result: payload,
		}
	}

	query := sqlguard.Normalize(args.Query)
	emit(statusEvent(statusQuerying))
	emit(toolCallEvent(query))

	if err := sqlguard.Validate(query); err != nil {
		payload := errorPayload(err.Error())
		emit(toolResultEvent(query, false, payload))
		metrics.RecordToolCall("rejected")
		return conversation.ToolCallRecord{
			Query:  query,
			Status: "rejected: " + validationReason(err),
			Result: payload,
		}
	}

	result, err := e.runner.Execute(ctx, query)
	if err != nil {
		payload := errorPayload(err.Error())
		emit(toolResultEvent(query, false, payload))
		metrics.RecordToolCall("failed")
		return conversation.ToolCallRecord{
			Query:  query,
			Status: "failed",
			Result: payload,
		}
	}

	payload := resultPayload(result)
	emit(toolResultEvent(query, true, payload))
	metrics.RecordToolCall("executed")
	return conversation.ToolCallRecord{
		Query:    query,
		Status:   fmt.Sprintf("returned %d rows", len(result.Rows)),
		Success:  true,
		Result:   payload,
		Duration: result.Duration,
	}
}

func validationReason(err error) string {
	var verr *sqlguard.ValidationError
	if errors.As(err, &verr) {
		return string(verr.Reason)
	}
	return "invalid query"
}

// errorPayload serializes a failure the way the model expects tool results.
func errorPayload(message string) string {
	raw, _ := json.Marshal(map[string]string{"error": message})
	return string(raw)
}

func resultPayload(result *database.QueryResult) string {
	payload := struct {
		Results   [][]any `json:"results"`
		RowCount  int     `json:"row_count"`
		Truncated bool    `json:"truncated,omitempty"`
	}{
		Results:   result.Rows,
		RowCount:  len(result.Rows),
		Truncated: result.Truncated,
	}
	if payload.Results == nil {
		payload.Results = [][]any{}
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func newConversationID() string {
	id := uuid.New()
	return "conv_" + hex.EncodeToString(id[:])
}

func optionalText(s string) *string {
	if s == "" {
		return nil
	}
	return conversation.TextPtr(s)
}

func toInvocations(calls []openai.ToolCall) []conversation.ToolInvocation {
	invocations := make([]conversation.ToolInvocation, 0, len(calls))
	for _, call := range calls {
		invocations = append(invocations, conversation.ToolInvocation{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return invocations
}

func toAPIMessages(messages []conversation.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, toAPIMessage(m))
	}
	return out
}

func toAPIMessage(m conversation.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:    string(m.Role),
		Content: m.Text(),
	}
	if m.Role == conversation.RoleTool {
		msg.ToolCallID = m.ToolCallID
	}
	for _, inv := range m.Invocations {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   inv.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      inv.Name,
				Arguments: inv.Arguments,
			},
		})
	}
	return msg
}
