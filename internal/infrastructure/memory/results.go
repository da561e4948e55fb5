package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

// ResultStore keeps the last successful result set per user.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.SearchResults
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.SearchResults)}
}

func (s *ResultStore) SaveLastResults(_ context.Context, results domain.SearchResults) error {
	results.Products = append([]domain.ProductRecord(nil), results.Products...)
	results.AppliedFilters = results.AppliedFilters.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[results.UserID] = results
	return nil
}

func (s *ResultStore) GetLastResults(_ context.Context, userID string) (*domain.SearchResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, ok := s.results[userID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get last results", errors.New("no search results for user"))
	}
	results.Products = append([]domain.ProductRecord(nil), results.Products...)
	return &results, nil
}
