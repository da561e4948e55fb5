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

type IntentOptions struct {
	ContextTurns      int
	Timeout           time.Duration
	AppendMustInclude bool
}

// IntentUseCase resolves shopping intent through the inference service and falls
// back to the rule-based parser whenever that service cannot produce a valid
// filter set.
type IntentUseCase struct {
	inference ports.InferenceClient
	turns     ports.ConversationStore
	opts      IntentOptions
	now       func() time.Time
}

func NewIntentUseCase(inference ports.InferenceClient, turns ports.ConversationStore, opts IntentOptions) *IntentUseCase {
	if opts.ContextTurns <= 0 {
		opts.ContextTurns = domain.ConversationWindow
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &IntentUseCase{
		inference: inference,
		turns:     turns,
		opts:      opts,
		now:       time.Now,
	}
}

// Resolve never fails. When inference is unavailable the rule-based parse is
// returned with the reason recorded, and the turn is remembered either way.
func (uc *IntentUseCase) Resolve(ctx context.Context, userID, apiKey, query string) domain.Resolution {
	query = strings.TrimSpace(query)
	history := uc.recentTurns(ctx, userID)

	resolution, err := uc.resolveWithInference(ctx, apiKey, query, history)
	if err != nil {
		slog.Warn("intent_fallback",
			"user_id", userID,
			"reason", err.Error(),
			"context_turns", len(history),
		)
		resolution = domain.Resolution{
			Filters:        ParseQuery(query),
			Source:         domain.ResolutionRules,
			FallbackReason: fallbackReason(err),
		}
	}

	uc.remember(ctx, userID, query, resolution.Filters)
	return resolution
}

func (uc *IntentUseCase) Turns(ctx context.Context, userID string) ([]domain.ConversationTurn, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list turns", errors.New("user id is required"))
	}
	if uc.turns == nil {
		return []domain.ConversationTurn{}, nil
	}
	return uc.turns.RecentTurns(ctx, userID, uc.opts.ContextTurns)
}

func (uc *IntentUseCase) Reset(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "reset turns", errors.New("user id is required"))
	}
	if uc.turns == nil {
		return nil
	}
	return uc.turns.ClearTurns(ctx, userID)
}

func (uc *IntentUseCase) resolveWithInference(
	ctx context.Context,
	apiKey string,
	query string,
	history []domain.ConversationTurn,
) (domain.Resolution, error) {
	if uc.inference == nil {
		return domain.Resolution{}, domain.ErrInferenceNotConfigured
	}
	if strings.TrimSpace(apiKey) == "" {
		return domain.Resolution{}, domain.ErrInferenceNotConfigured
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.opts.Timeout)
	defer cancel()

	raw, err := uc.inference.CompleteJSON(callCtx, domain.InferenceRequest{
		APIKey:   apiKey,
		Messages: buildIntentMessages(query, history),
	})
	if err != nil {
		return domain.Resolution{}, err
	}
	fs, err := decodeInferenceFilters(raw)
	if err != nil {
		return domain.Resolution{}, err
	}
	fs.SearchTerm = expandSearchTerm(fs, uc.opts.AppendMustInclude)
	return domain.Resolution{Filters: fs, Source: domain.ResolutionInference}, nil
}

func buildIntentMessages(query string, history []domain.ConversationTurn) []domain.InferenceMessage {
	messages := make([]domain.InferenceMessage, 0, 2+2*len(history))
	messages = append(messages, domain.InferenceMessage{Role: domain.RoleSystem, Content: intentSystemPrompt})
	for _, turn := range history {
		messages = append(messages,
			domain.InferenceMessage{Role: domain.RoleUser, Content: turn.Query},
			domain.InferenceMessage{Role: domain.RoleAssistant, Content: encodeInferenceFilters(turn.ResolvedFilters)},
		)
	}
	messages = append(messages, domain.InferenceMessage{Role: domain.RoleUser, Content: query})
	return messages
}

// expandSearchTerm appends attribute values and, optionally, must-include terms
// to the search term.
func expandSearchTerm(fs domain.FilterSet, appendMustInclude bool) string {
	parts := []string{fs.SearchTerm}
	parts = append(parts, fs.AttributeValues()...)
	if appendMustInclude {
		parts = append(parts, fs.MustIncludeTerms...)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func (uc *IntentUseCase) recentTurns(ctx context.Context, userID string) []domain.ConversationTurn {
	if uc.turns == nil || strings.TrimSpace(userID) == "" {
		return nil
	}
	turns, err := uc.turns.RecentTurns(ctx, userID, uc.opts.ContextTurns)
	if err != nil {
		slog.Warn("conversation_read_failed", "user_id", userID, "error", err)
		return nil
	}
	return turns
}

func (uc *IntentUseCase) remember(ctx context.Context, userID, query string, fs domain.FilterSet) {
	if uc.turns == nil || strings.TrimSpace(userID) == "" {
		return
	}
	turn := domain.ConversationTurn{
		ID:              uuid.NewString(),
		UserID:          userID,
		Query:           query,
		ResolvedFilters: fs.Clone(),
		Timestamp:       uc.now().UTC(),
	}
	if err := uc.turns.AppendTurn(ctx, turn, domain.ConversationWindow); err != nil {
		slog.Warn("conversation_append_failed", "user_id", userID, "error", err)
	}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInferenceNotConfigured):
		return "inference not configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "inference timed out"
	default:
		return err.Error()
	}
}
