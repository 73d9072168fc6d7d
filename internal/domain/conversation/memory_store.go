package conversation

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps conversations in process memory. It is the default
// store; history is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*Conversation)}
}

func (s *MemoryStore) Create(_ context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ID] = conv
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]Summary, 0, len(s.convs))
	for _, c := range s.convs {
		summaries = append(summaries, Summary{
			ID:          c.ID,
			CreatedAt:   c.CreatedAt,
			LastMessage: c.LastMessage,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	// Copy so callers cannot mutate stored history in place.
	out := &Conversation{
		ID:          conv.ID,
		CreatedAt:   conv.CreatedAt,
		LastMessage: conv.LastMessage,
		Messages:    make([]Message, len(conv.Messages)),
	}
	copy(out.Messages, conv.Messages)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return ErrNotFound
	}
	delete(s.convs, id)
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	conv.Messages = append(conv.Messages, msg)
	conv.LastMessage = msg.Timestamp
	return nil
}
