package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

func TestConversationStoreKeepsSlidingWindow(t *testing.T) {
	s := NewConversationStore()
	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		turn := domain.ConversationTurn{ID: fmt.Sprintf("t%d", i), UserID: "u1", Query: fmt.Sprintf("q%d", i), ResolvedFilters: domain.NewFilterSet("q")}
		if err := s.AppendTurn(ctx, turn, domain.ConversationWindow); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	turns, err := s.RecentTurns(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 5 || turns[0].ID != "t3" || turns[4].ID != "t7" {
		t.Fatalf("expected t3..t7, got %+v", turns)
	}

	turns, _ = s.RecentTurns(ctx, "u1", 2)
	if len(turns) != 2 || turns[0].ID != "t6" {
		t.Fatalf("expected last two turns oldest first, got %+v", turns)
	}

	if err := s.ClearTurns(ctx, "u1"); err != nil {
		t.Fatalf("ClearTurns() error = %v", err)
	}
	turns, _ = s.RecentTurns(ctx, "u1", 5)
	if len(turns) != 0 {
		t.Fatalf("expected empty history after reset, got %d", len(turns))
	}
}

func TestConversationStoreIsolatesStoredFilters(t *testing.T) {
	s := NewConversationStore()
	ctx := context.Background()
	filters := domain.NewFilterSet("lamp")
	filters.ExcludeTerms = []string{"cheap"}
	_ = s.AppendTurn(ctx, domain.ConversationTurn{ID: "t1", UserID: "u1", ResolvedFilters: filters}, 5)

	filters.ExcludeTerms[0] = "mutated"
	turns, _ := s.RecentTurns(ctx, "u1", 5)
	if turns[0].ResolvedFilters.ExcludeTerms[0] != "cheap" {
		t.Fatalf("expected stored filters to be isolated from caller")
	}
}

func TestCredentialAndResultStoresReportMissingAsNotFound(t *testing.T) {
	ctx := context.Background()
	creds := NewCredentialStore()
	if _, err := creds.GetCredential(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_ = creds.SaveCredential(ctx, domain.Credential{UserID: "u1", APIKey: "sk-1"})
	cred, err := creds.GetCredential(ctx, "u1")
	if err != nil || cred.APIKey != "sk-1" {
		t.Fatalf("unexpected credential %+v (%v)", cred, err)
	}

	results := NewResultStore()
	if _, err := results.GetLastResults(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_ = results.SaveLastResults(ctx, domain.SearchResults{UserID: "u1", Products: []domain.ProductRecord{{ID: "B1"}}})
	got, err := results.GetLastResults(ctx, "u1")
	if err != nil || len(got.Products) != 1 {
		t.Fatalf("unexpected results %+v (%v)", got, err)
	}
}
