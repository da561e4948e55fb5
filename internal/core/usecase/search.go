package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/core/ports"
)

type SearchOptions struct {
	Timeout  time.Duration
	Settings domain.Settings
}

// SearchUseCase runs the query-to-results pipeline under a hard deadline.
type SearchUseCase struct {
	credentials ports.CredentialManager
	intents     ports.IntentResolver
	builder     ports.QueryBuilder
	limiter     ports.RateLimiter
	fetcher     *ResultFetcher
	results     ports.SearchResultStore
	events      ports.SearchEventPublisher
	opts        SearchOptions
	now         func() time.Time
}

func NewSearchUseCase(
	credentials ports.CredentialManager,
	intents ports.IntentResolver,
	builder ports.QueryBuilder,
	limiter ports.RateLimiter,
	fetcher *ResultFetcher,
	results ports.SearchResultStore,
	events ports.SearchEventPublisher,
	opts SearchOptions,
) *SearchUseCase {
	if opts.Timeout <= 0 {
		opts.Timeout = domain.DefaultSearchTimeout
	}
	if opts.Settings == (domain.Settings{}) {
		opts.Settings = domain.DefaultSettings()
	}
	opts.Settings = opts.Settings.Clamped()

	return &SearchUseCase{
		credentials: credentials,
		intents:     intents,
		builder:     builder,
		limiter:     limiter,
		fetcher:     fetcher,
		results:     results,
		events:      events,
		opts:        opts,
		now:         time.Now,
	}
}

// searchSession is the transient state of one search request.
type searchSession struct {
	id       string
	userID   string
	apiKey   string
	query    string
	limit    int
	filters  domain.FilterSet
	provider domain.ProviderQuery
	attempts int
}

type searchResult struct {
	resp       *domain.SearchResponse
	resolution domain.Resolution
	err        error
}

// Search returns exactly one outcome: the ranked products, a typed error, or
// ErrSearchTimeout when the deadline elapses first.
func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	session, err := uc.newSession(ctx, req)
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, uc.opts.Timeout)
	defer cancel()

	done := make(chan searchResult, 1)
	go func() {
		done <- uc.run(searchCtx, session)
	}()

	select {
	case <-searchCtx.Done():
		// A run that finished in the same instant still wins.
		select {
		case result := <-done:
			if result.err == nil && ctx.Err() == nil {
				return uc.complete(ctx, session, result), nil
			}
		default:
		}
		return nil, uc.deadlineError(ctx, searchCtx, session)
	case result := <-done:
		if result.err != nil && errors.Is(result.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, uc.deadlineError(ctx, searchCtx, session)
		}
		if result.err != nil {
			return nil, result.err
		}
		return uc.complete(ctx, session, result), nil
	}
}

// complete records a result the caller is about to receive; a timed-out search
// records nothing.
func (uc *SearchUseCase) complete(ctx context.Context, session *searchSession, result searchResult) *domain.SearchResponse {
	uc.record(ctx, session, result.resolution, result.resp)
	return result.resp
}

func (uc *SearchUseCase) newSession(ctx context.Context, req domain.SearchRequest) (*searchSession, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	apiKey, err := uc.credentials.ResolveKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.ErrQueryRequired
	}

	limit := uc.opts.Settings.MaxResults
	if req.RequestedItemCount != nil {
		limit = domain.ClampResults(*req.RequestedItemCount)
	}
	return &searchSession{
		id:     uuid.NewString(),
		userID: userID,
		apiKey: apiKey,
		query:  query,
		limit:  limit,
	}, nil
}

func (uc *SearchUseCase) run(ctx context.Context, session *searchSession) searchResult {
	resolution := uc.intents.Resolve(ctx, session.userID, session.apiKey, session.query)
	session.filters = resolution.Filters

	if err := uc.limiter.Acquire(ctx); err != nil {
		return searchResult{err: err}
	}
	session.provider = uc.builder.Build(session.filters)

	outcome, err := uc.fetcher.Fetch(ctx, session.provider.URL, domain.ExtractOptions{
		MaxResults:    session.limit,
		SkipSponsored: uc.opts.Settings.SkipSponsored,
		Filters:       session.filters,
	})
	session.attempts = outcome.Attempts
	if err != nil {
		return searchResult{err: err}
	}

	products := ValidateAndRank(outcome.Candidates, session.filters, session.limit)
	if len(products) == 0 {
		return searchResult{err: domain.WrapError(domain.ErrNoProductsFound, "validate results", errors.New("all candidates rejected"))}
	}

	resp := &domain.SearchResponse{
		Products:       products,
		AppliedFilters: session.filters,
		ResultPageURL:  session.provider.URL,
	}
	if err := ctx.Err(); err != nil {
		return searchResult{err: err}
	}
	return searchResult{resp: resp, resolution: resolution}
}

func (uc *SearchUseCase) record(ctx context.Context, session *searchSession, resolution domain.Resolution, resp *domain.SearchResponse) {
	completedAt := uc.now().UTC()
	slog.Info("search_completed",
		"session_id", session.id,
		"user_id", session.userID,
		"intent_source", resolution.Source,
		"products", len(resp.Products),
		"attempts", session.attempts,
	)

	if uc.results != nil {
		err := uc.results.SaveLastResults(ctx, domain.SearchResults{
			UserID:         session.userID,
			Query:          session.query,
			Products:       resp.Products,
			AppliedFilters: resp.AppliedFilters,
			ResultPageURL:  resp.ResultPageURL,
			CreatedAt:      completedAt,
		})
		if err != nil {
			slog.Warn("last_results_save_failed", "user_id", session.userID, "error", err)
		}
	}
	if uc.events != nil {
		err := uc.events.PublishSearchCompleted(ctx, domain.SearchCompleted{
			SessionID:      session.id,
			UserID:         session.userID,
			Query:          session.query,
			Products:       resp.Products,
			AppliedFilters: resp.AppliedFilters,
			ResultPageURL:  resp.ResultPageURL,
			Attempts:       session.attempts,
			CompletedAt:    completedAt,
		})
		if err != nil {
			slog.Warn("search_event_publish_failed", "session_id", session.id, "error", err)
		}
	}
}

func (uc *SearchUseCase) deadlineError(parent, searchCtx context.Context, session *searchSession) error {
	if err := parent.Err(); err != nil {
		return err
	}
	slog.Warn("search_timeout", "session_id", session.id, "user_id", session.userID, "timeout", uc.opts.Timeout.String())
	return domain.WrapError(domain.ErrSearchTimeout, "search", searchCtx.Err())
}

// LastResults returns the last stored result set of a user.
func (uc *SearchUseCase) LastResults(ctx context.Context, userID string) (*domain.SearchResults, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	if uc.results == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "last results", errors.New("no result store configured"))
	}
	return uc.results.GetLastResults(ctx, userID)
}
