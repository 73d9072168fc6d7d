package conversation

import "sync"

// TurnGuard serializes turns at the conversation level: at most one
// in-flight turn per conversation id, while turns on different
// conversations proceed concurrently. A second concurrent send to the same
// conversation is rejected, never interleaved.
type TurnGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewTurnGuard() *TurnGuard {
	return &TurnGuard{inFlight: make(map[string]struct{})}
}

// TryAcquire reports whether the caller now owns the conversation's turn
// slot. On true the caller must Release when the turn ends.
func (g *TurnGuard) TryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[id]; busy {
		return false
	}
	g.inFlight[id] = struct{}{}
	return true
}

func (g *TurnGuard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, id)
}
