package domain

import (
	"net/url"
	"time"
)

const (
	MinResults           = 1
	MaxResults           = 10
	DefaultResults       = 3
	MinRequestDelay      = 3 * time.Second
	MaxRequestDelay      = 30 * time.Second
	DefaultSearchTimeout = 25 * time.Second
)

type SearchRequest struct {
	Query              string `json:"query"`
	UserID             string `json:"userId"`
	RequestedItemCount *int   `json:"requestedItemCount,omitempty"`
}

type SearchResponse struct {
	Products       []ProductRecord `json:"products"`
	AppliedFilters FilterSet       `json:"appliedFilters"`
	ResultPageURL  string          `json:"resultPageUrl"`
}

// Settings are the read-only user preferences consumed by the search pipeline.
type Settings struct {
	MaxResults    int
	SkipSponsored bool
	RequestDelay  time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		MaxResults:    DefaultResults,
		SkipSponsored: true,
		RequestDelay:  MinRequestDelay,
	}
}

// Clamped forces every setting into its allowed range.
func (s Settings) Clamped() Settings {
	s.MaxResults = ClampResults(s.MaxResults)
	if s.RequestDelay < MinRequestDelay {
		s.RequestDelay = MinRequestDelay
	}
	if s.RequestDelay > MaxRequestDelay {
		s.RequestDelay = MaxRequestDelay
	}
	return s
}

func ClampResults(n int) int {
	if n < MinResults {
		return MinResults
	}
	if n > MaxResults {
		return MaxResults
	}
	return n
}

// ProviderQuery is the provider encoding of a FilterSet.
type ProviderQuery struct {
	Params           url.Values
	Refinements      []string
	CorrelationToken string
	URL              string
}

type FetchState string

const (
	FetchIdle         FetchState = "idle"
	FetchPageOpening  FetchState = "page_opening"
	FetchPollingReady FetchState = "polling_ready"
	FetchExtracting   FetchState = "extracting"
	FetchDone         FetchState = "done"
	FetchFailed       FetchState = "failed"
)

// SearchCompleted is published after every successful search.
type SearchCompleted struct {
	SessionID      string          `json:"sessionId"`
	UserID         string          `json:"userId"`
	Query          string          `json:"query"`
	Products       []ProductRecord `json:"products"`
	AppliedFilters FilterSet       `json:"appliedFilters"`
	ResultPageURL  string          `json:"resultPageUrl"`
	Attempts       int             `json:"attempts"`
	CompletedAt    time.Time       `json:"completedAt"`
}

// Credential is a per-user inference key.
type Credential struct {
	UserID    string    `json:"userId"`
	APIKey    string    `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CredentialStatus struct {
	UserID     string `json:"userId"`
	Configured bool   `json:"configured"`
	Valid      bool   `json:"valid"`
	Source     string `json:"source"`
	Reason     string `json:"reason,omitempty"`
}
