package domain

import "time"

// ConversationWindow is the number of turns retained per user.
const ConversationWindow = 5

type ConversationTurn struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Query           string    `json:"query"`
	ResolvedFilters FilterSet `json:"resolvedFilters"`
	Timestamp       time.Time `json:"timestamp"`
}

type ResolutionSource string

const (
	ResolutionInference ResolutionSource = "inference"
	ResolutionRules     ResolutionSource = "rules"
)

// Resolution is the outcome of intent resolution. FallbackReason is set only
// when Source is ResolutionRules.
type Resolution struct {
	Filters        FilterSet        `json:"filters"`
	Source         ResolutionSource `json:"source"`
	FallbackReason string           `json:"fallbackReason,omitempty"`
}
