package ports

import (
	"context"
	"io"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

// InferenceClient calls the external natural-language inference service.
type InferenceClient interface {
	CompleteJSON(ctx context.Context, req domain.InferenceRequest) (string, error)
	ProbeKey(ctx context.Context, apiKey string) error
}

// ConversationStore keeps a bounded window of turns per user.
type ConversationStore interface {
	AppendTurn(ctx context.Context, turn domain.ConversationTurn, window int) error
	RecentTurns(ctx context.Context, userID string, limit int) ([]domain.ConversationTurn, error)
	ClearTurns(ctx context.Context, userID string) error
}

// CredentialStore persists per-user inference keys.
type CredentialStore interface {
	SaveCredential(ctx context.Context, cred domain.Credential) error
	GetCredential(ctx context.Context, userID string) (*domain.Credential, error)
}

// SearchResultStore keeps the last successful result set per user.
type SearchResultStore interface {
	SaveLastResults(ctx context.Context, results domain.SearchResults) error
	GetLastResults(ctx context.Context, userID string) (*domain.SearchResults, error)
}

// RateLimiter gates every provider fetch.
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// QueryBuilder encodes a filter set for the provider.
type QueryBuilder interface {
	Build(filters domain.FilterSet) domain.ProviderQuery
}

// Browser opens transient browsing surfaces on the provider.
type Browser interface {
	Open(ctx context.Context, url string) (Page, error)
}

// Page is one opened result page. Close must be called exactly once.
type Page interface {
	Snapshot(ctx context.Context) (string, error)
	URL() string
	Close() error
}

// ResultExtractor parses page content into candidate product records.
type ResultExtractor interface {
	Ready(content string) bool
	Extract(content, baseURL string, opts domain.ExtractOptions) ([]domain.ProductRecord, error)
}

// SearchEventPublisher announces completed searches.
type SearchEventPublisher interface {
	PublishSearchCompleted(ctx context.Context, event domain.SearchCompleted) error
}

// ResultExporter renders product records into a downloadable document.
type ResultExporter interface {
	Export(results domain.SearchResults, w io.Writer) error
	ContentType() string
}
