package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumohq/ops-assistant/internal/domain/conversation"
	"github.com/lumohq/ops-assistant/internal/infrastructure/database"
)

// scriptedModel replays a fixed sequence of responses. When repeatLast is
// set it keeps returning the final scripted response forever, which
// simulates a model that never stops requesting tools.
type scriptedModel struct {
	responses  []openai.ChatCompletionMessage
	errs       []error
	repeatLast bool
	calls      int
	seen       [][]openai.ChatCompletionMessage
}

func (m *scriptedModel) Complete(_ context.Context, messages []openai.ChatCompletionMessage, _ []openai.Tool) (openai.ChatCompletionMessage, error) {
	m.seen = append(m.seen, messages)
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return openai.ChatCompletionMessage{}, m.errs[i]
	}
	if i >= len(m.responses) {
		if m.repeatLast && len(m.responses) > 0 {
			return m.responses[len(m.responses)-1], nil
		}
		return openai.ChatCompletionMessage{}, fmt.Errorf("scripted model exhausted after %d calls", i)
	}
	return m.responses[i], nil
}

type stubRunner struct {
	results map[string]*database.QueryResult
	err     error
}

func (r *stubRunner) Execute(_ context.Context, query string) (*database.QueryResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	if res, ok := r.results[query]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("query execution failed: no such table")
}

func finalMsg(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}
}

func toolMsg(content string, queries ...string) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}
	for i, q := range queries {
		args, _ := json.Marshal(map[string]string{"query": q})
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   fmt.Sprintf("call_%d", i+1),
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      ToolName,
				Arguments: string(args),
			},
		})
	}
	return msg
}

func newTestEngine(t *testing.T, model ModelClient, runner QueryRunner, opts ...Option) (*Engine, *conversation.Conversation) {
	t.Helper()
	store := conversation.NewMemoryStore()
	opts = append(opts, WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}))
	engine := NewEngine(model, runner, store, opts...)
	conv, err := engine.CreateConversation(context.Background())
	require.NoError(t, err)
	return engine, conv
}

func collect(ch <-chan Event) []Event {
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func eventsOfType(events []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestCreateConversationSeedsSystemPrompt(t *testing.T) {
	engine, conv := newTestEngine(t, &scriptedModel{}, &stubRunner{})
	_ = engine

	require.Len(t, conv.Messages, 1)
	assert.Equal(t, conversation.RoleSystem, conv.Messages[0].Role)
	assert.Contains(t, conv.Messages[0].Text(), "2025-06-01 12:00:00",
		"system prompt must carry the creation timestamp")
	assert.Contains(t, conv.ID, "conv_")
}

func TestTurnWithSingleToolCall(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionMessage{
		toolMsg("", "SELECT COUNT(*) FROM zones"),
		finalMsg("There are 3 zones."),
	}}
	runner := &stubRunner{results: map[string]*database.QueryResult{
		"SELECT COUNT(*) FROM zones": {Columns: []string{"COUNT(*)"}, Rows: [][]any{{int64(3)}}, Duration: time.Millisecond},
	}}
	engine, conv := newTestEngine(t, model, runner)

	answer, err := engine.ProcessMessage(context.Background(), conv.ID, "How many zones are there?")
	require.NoError(t, err)
	assert.Equal(t, "There are 3 zones.", answer)
	assert.Equal(t, 2, model.calls)

	// History: system, user, assistant(tool call), tool result, assistant(final).
	stored, err := engine.store.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 5)
	assert.Equal(t, conversation.RoleUser, stored.Messages[1].Role)
	assert.Equal(t, conversation.RoleAssistant, stored.Messages[2].Role)
	assert.Nil(t, stored.Messages[2].Content, "tool-call-only assistant message has no text")
	require.Len(t, stored.Messages[2].Records, 1)
	record := stored.Messages[2].Records[0]
	assert.True(t, record.Success)
	assert.Equal(t, "SELECT COUNT(*) FROM zones", record.Query)
	assert.Contains(t, record.Result, `"results":[[3]]`)
	assert.Equal(t, conversation.RoleTool, stored.Messages[3].Role)
	assert.Equal(t, "call_1", stored.Messages[3].ToolCallID)
	assert.Equal(t, "There are 3 zones.", stored.Messages[4].Text())

	// The follow-up model request must include the tool result.
	secondRequest := model.seen[1]
	last := secondRequest[len(secondRequest)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Contains(t, last.Content, `"results"`)
}

func TestStreamEventOrdering(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionMessage{
		toolMsg("Checking the zones table.", "SELECT COUNT(*) FROM zones"),
		finalMsg("There are 3 zones."),
	}}
	runner := &stubRunner{results: map[string]*database.QueryResult{
		"SELECT COUNT(*) FROM zones": {Rows: [][]any{{int64(3)}}},
	}}
	engine, conv := newTestEngine(t, model, runner)

	events := collect(engine.ProcessMessageStream(context.Background(), conv.ID, "How many zones are there?"))

	var sequence []EventType
	for _, ev := range events {
		sequence = append(sequence, ev.Type)
	}
	// Round 1: status, reasoning tokens + batch, tool announcement and
	// result. Round 2: status, answer tokens, terminal done.
	assert.Equal(t, EventStatus, sequence[0])
	reasoningTokens := eventsOfType(events, EventReasoningToken)
	require.NotEmpty(t, reasoningTokens)
	reasoning := eventsOfType(events, EventReasoning)
	require.Len(t, reasoning, 1)
	assert.Equal(t, "Checking the zones table.", reasoning[0].Content)

	toolCalls := eventsOfType(events, EventToolCall)
	require.Len(t, toolCalls, 1)
	assert.Equal(t, "SELECT COUNT(*) FROM zones", toolCalls[0].Query)
	toolResults := eventsOfType(events, EventToolResult)
	require.Len(t, toolResults, 1)
	assert.Equal(t, toolCalls[0].Query, toolResults[0].Query, "tool_result keyed by matching query text")
	require.NotNil(t, toolResults[0].Success)
	assert.True(t, *toolResults[0].Success)

	tokens := eventsOfType(events, EventToken)
	require.NotEmpty(t, tokens)
	var rebuilt string
	for _, tok := range tokens {
		rebuilt += tok.Content
	}
	assert.Equal(t, "There are 3 zones.", rebuilt, "token events must reassemble the final answer")

	// Exactly one terminal event, and it is the last one.
	assert.Equal(t, EventDone, events[len(events)-1].Type)
	assert.Len(t, eventsOfType(events, EventDone), 1)
	assert.Empty(t, eventsOfType(events, EventError))
	assert.Equal(t, "There are 3 zones.", events[len(events)-1].Content)
}

func TestRejectedWriteStatementIsRecoverable(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionMessage{
		toolMsg("", "DROP TABLE zones"),
		finalMsg("I can only run read-only SELECT queries, so nothing was dropped."),
	}}
	engine, conv := newTestEngine(t, model, &stubRunner{})

	events := collect(engine.ProcessMessageStream(context.Background(), conv.ID, "Drop the zones table"))

	toolResults := eventsOfType(events, EventToolResult)
	require.Len(t, toolResults, 1)
	require.NotNil(t, toolResults[0].Success)
	assert.False(t, *toolResults[0].Success, "validator rejection emits a failed tool_result")
	assert.Contains(t, toolResults[0].Result, "SELECT")

	// The loop continued to a final answer instead of aborting.
	done := eventsOfType(events, EventDone)
	require.Len(t, done, 1)
	assert.NotContains(t, done[0].Content, "dropped successfully")

	stored, err := engine.store.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	record := stored.Messages[2].Records[0]
	assert.False(t, record.Success)
	assert.Contains(t, record.Status, "rejected")
}

func TestExecutionErrorFedBackToModel(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionMessage{
		toolMsg("", "SELECT wrong_column FROM zones"),
		finalMsg("That column does not exist in the schema."),
	}}
	engine, conv := newTestEngine(t, model, &stubRunner{})

	answer, err := engine.ProcessMessage(context.Background(), conv.ID, "whats in wrong_column?")
	require.NoError(t, err, "database-level failure must not abort the turn")
	assert.Equal(t, "That column does not exist in the schema.", answer)

	secondRequest := model.seen[1]
	last := secondRequest[len(secondRequest)-1]
	assert.Contains(t, last.Content, `"error"`)
}

func TestRoundCapForcesTermination(t *testing.T) {
	model := &scriptedModel{
		responses:  []openai.ChatCompletionMessage{toolMsg("", "SELECT 1")},
		repeatLast: true,
	}
	runner := &stubRunner{results: map[string]*database.QueryResult{
		"SELECT 1": {Rows: [][]any{{int64(1)}}},
	}}
	engine, conv := newTestEngine(t, model, runner, WithMaxRounds(4))

	answer, err := engine.ProcessMessage(context.Background(), conv.ID, "loop forever")
	require.NoError(t, err)
	assert.Equal(t, 4, model.calls, "loop must stop at the round cap")
	assert.NotEmpty(t, answer, "fallback answer when no narration accumulated")
	assert.Equal(t, fallbackAnswer, answer)
}

func TestRoundCapReturnsAccumulatedNarration(t *testing.T) {
	model := &scriptedModel{
		responses: []openai.ChatCompletionMessage{
			toolMsg("Looking at pings first.", "SELECT 1"),
			toolMsg("", "SELECT 1"),
		},
		repeatLast: true,
	}
	runner := &stubRunner{results: map[string]*database.QueryResult{
		"SELECT 1": {Rows: [][]any{{int64(1)}}},
	}}
	engine, conv := newTestEngine(t, model, runner, WithMaxRounds(3))

	answer, err := engine.ProcessMessage(context.Background(), conv.ID, "anything")
	require.NoError(t, err)
	assert.Equal(t, "Looking at pings first.", answer,
		"narration from earlier rounds survives later empty rounds")
}

func TestReasoningAccumulatesAcrossRounds(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionMessage{
		toolMsg("First, counting zones.", "SELECT 1"),
		toolMsg("Now cross-checking entities.", "SELECT 1"),
		finalMsg("All checks passed."),
	}}
	runner := &stubRunner{results: map[string]*database.QueryResult{
		"SELECT 1": {Rows: [][]any{{int64(1)}}},
	}}
	engine, conv := newTestEngine(t, model, runner)

	events := collect(engine.ProcessMessageStream(context.Background(), conv.ID, "run your checks"))
	reasoning := eventsOfType(events, EventReasoning)
	require.Len(t, reasoning, 2)
	assert.Equal(t, "First, counting zones.", reasoning[0].Content)
	assert.Equal(t, "First, counting zones.\n\nNow cross-checking entities.", reasoning[1].Content,
		"reasoning concatenates, never replaces")
}

func TestMultipleToolCallsInOneRoundRunSerialized(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionMessage{
		toolMsg("", "SELECT 1", "SELECT 2"),
		finalMsg("done"),
	}}
	runner := &stubRunner{results: map[string]*database.QueryResult{
		"SELECT 1": {Rows: [][]any{{int64(1)}}},
		"SELECT 2": {Rows: [][]any{{int64(2)}}},
	}}
	engine, conv := newTestEngine(t, model, runner)

	events := collect(engine.ProcessMessageStream(context.Background(), conv.ID, "two queries"))
	toolCalls := eventsOfType(events, EventToolCall)
	require.Len(t, toolCalls, 2)
	assert.Equal(t, "SELECT 1", toolCalls[0].Query, "tool calls execute in request order")
	assert.Equal(t, "SELECT 2", toolCalls[1].Query)

	stored, err := engine.store.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages[2].Records, 2)
}

func TestModelFailureIsFatal(t *testing.T) {
	model := &scriptedModel{errs: []error{errors.New("upstream timeout")}}
	engine, conv := newTestEngine(t, model, &stubRunner{})

	_, err := engine.ProcessMessage(context.Background(), conv.ID, "hello")
	require.Error(t, err)

	// Streaming surfaces the same failure as a single terminal error event.
	engine2, conv2 := newTestEngine(t, &scriptedModel{errs: []error{errors.New("upstream timeout")}}, &stubRunner{})
	events := collect(engine2.ProcessMessageStream(context.Background(), conv2.ID, "hello"))
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, GenericFailureUserMessage, last.Message)
	assert.Empty(t, eventsOfType(events, EventDone))
}

func TestContextLengthFailureHasDistinctMessage(t *testing.T) {
	model := &scriptedModel{errs: []error{fmt.Errorf("chat completion: %w", ErrContextLengthExceeded)}}
	engine, conv := newTestEngine(t, model, &stubRunner{})

	events := collect(engine.ProcessMessageStream(context.Background(), conv.ID, "hello"))
	last := events[len(events)-1]
	require.Equal(t, EventError, last.Type)
	assert.Equal(t, ContextLengthUserMessage, last.Message)
}

func TestUnknownConversationFailsTurn(t *testing.T) {
	engine := NewEngine(&scriptedModel{}, &stubRunner{}, conversation.NewMemoryStore())
	_, err := engine.ProcessMessage(context.Background(), "conv_missing", "hello")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}
