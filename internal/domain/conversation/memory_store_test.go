package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConv(id string, at time.Time) *Conversation {
	return &Conversation{ID: id, CreatedAt: at, LastMessage: at}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, newConv("c1", now)))
	require.NoError(t, s.Create(ctx, newConv("c2", now.Add(time.Minute))))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID, "list ordered by creation time")

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	require.NoError(t, s.Delete(ctx, "c1"))
	_, err = s.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "c1"), ErrNotFound)
}

func TestMemoryStoreAppendUpdatesLastActivity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, newConv("c1", created)))

	later := created.Add(5 * time.Minute)
	msg := Message{Role: RoleUser, Content: TextPtr("hello"), Timestamp: later}
	require.NoError(t, s.AppendMessage(ctx, "c1", msg))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, later, got.LastMessage)
	assert.Equal(t, "hello", got.Messages[0].Text())

	assert.ErrorIs(t, s.AppendMessage(ctx, "missing", msg), ErrNotFound)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	require.NoError(t, s.Create(ctx, newConv("c1", now)))
	require.NoError(t, s.AppendMessage(ctx, "c1", Message{Role: RoleUser, Content: TextPtr("a"), Timestamp: now}))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	got.Messages[0].Content = TextPtr("mutated")

	again, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Messages[0].Text(), "stored history must not be mutable through Get")
}

func TestTurnGuardSerializesPerConversation(t *testing.T) {
	g := NewTurnGuard()

	require.True(t, g.TryAcquire("c1"))
	assert.False(t, g.TryAcquire("c1"), "second in-flight turn on same conversation must be rejected")
	assert.True(t, g.TryAcquire("c2"), "different conversations run concurrently")

	g.Release("c1")
	assert.True(t, g.TryAcquire("c1"))
}
