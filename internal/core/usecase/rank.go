package usecase

import (
	"sort"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

// ValidateAndRank re-checks candidates against the resolved filters, orders them
// by ascending price when a price bound is active and truncates to limit.
func ValidateAndRank(candidates []domain.ProductRecord, filters domain.FilterSet, limit int) []domain.ProductRecord {
	out := make([]domain.ProductRecord, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if !passesFilters(candidate, filters) {
			continue
		}
		if _, dup := seen[candidate.ID]; dup {
			continue
		}
		seen[candidate.ID] = struct{}{}
		out = append(out, candidate)
	}

	if filters.HasPriceFilter() {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Price.Value < out[j].Price.Value
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func passesFilters(p domain.ProductRecord, filters domain.FilterSet) bool {
	if p.ID == "" || p.Title == "" || p.URL == "" {
		return false
	}
	if filters.HasPriceFilter() && !filters.PriceWithin(p.Price.Value) {
		return false
	}
	if filters.MinReviewCount != nil && p.ReviewCount < *filters.MinReviewCount {
		return false
	}
	if filters.MinRating != nil && p.Rating < *filters.MinRating {
		return false
	}
	return true
}
