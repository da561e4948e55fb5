package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

// ConversationStore keeps the most recent turns per user in process memory.
type ConversationStore struct {
	mu    sync.Mutex
	turns map[string][]domain.ConversationTurn
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{turns: make(map[string][]domain.ConversationTurn)}
}

// AppendTurn appends and evicts the oldest turns beyond window.
func (s *ConversationStore) AppendTurn(_ context.Context, turn domain.ConversationTurn, window int) error {
	if window <= 0 {
		window = domain.ConversationWindow
	}
	userID := strings.TrimSpace(turn.UserID)
	turn.ResolvedFilters = turn.ResolvedFilters.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.turns[userID], turn)
	if len(turns) > window {
		turns = append([]domain.ConversationTurn(nil), turns[len(turns)-window:]...)
	}
	s.turns[userID] = turns
	return nil
}

// RecentTurns returns up to limit turns, oldest first.
func (s *ConversationStore) RecentTurns(_ context.Context, userID string, limit int) ([]domain.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.turns[strings.TrimSpace(userID)]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]domain.ConversationTurn, 0, len(turns))
	for _, turn := range turns {
		turn.ResolvedFilters = turn.ResolvedFilters.Clone()
		out = append(out, turn)
	}
	return out, nil
}

func (s *ConversationStore) ClearTurns(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, strings.TrimSpace(userID))
	return nil
}
