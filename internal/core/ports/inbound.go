package ports

import (
	"context"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

// ProductSearcher is the inbound contract for the query-to-results pipeline.
type ProductSearcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
}

// IntentResolver turns a user query into a filter set using the user's recent turns.
type IntentResolver interface {
	Resolve(ctx context.Context, userID, apiKey, query string) domain.Resolution
}

// ConversationReader exposes and resets the retained turns of a user.
type ConversationReader interface {
	Turns(ctx context.Context, userID string) ([]domain.ConversationTurn, error)
	Reset(ctx context.Context, userID string) error
}

// CredentialManager validates and stores per-user inference keys.
type CredentialManager interface {
	Save(ctx context.Context, userID, apiKey string) (domain.CredentialStatus, error)
	Status(ctx context.Context, userID string) (domain.CredentialStatus, error)
	ResolveKey(ctx context.Context, userID string) (string, error)
}

// SearchHistoryReader returns the last stored result set of a user.
type SearchHistoryReader interface {
	LastResults(ctx context.Context, userID string) (*domain.SearchResults, error)
}
