package domain

import (
	"math"
	"sort"
	"strings"
)

type DeliverySpeed string

const (
	DeliveryNone    DeliverySpeed = "none"
	DeliveryNextDay DeliverySpeed = "next-day"
	DeliveryTwoDay  DeliverySpeed = "two-day"
)

type Condition string

const (
	ConditionNone        Condition = "none"
	ConditionNew         Condition = "new"
	ConditionUsed        Condition = "used"
	ConditionRefurbished Condition = "refurbished"
)

// FilterSet is the structured form of a shopping request. Nullable fields are
// pointers and are serialized as null rather than omitted.
type FilterSet struct {
	SearchTerm       string             `json:"searchTerm"`
	ProductType      *string            `json:"productType"`
	MinPrice         *float64           `json:"minPrice"`
	MaxPrice         *float64           `json:"maxPrice"`
	MinRating        *float64           `json:"minRating"`
	MinReviewCount   *int               `json:"minReviewCount"`
	Prime            bool               `json:"prime"`
	FreeShipping     bool               `json:"freeShipping"`
	DeliverySpeed    DeliverySpeed      `json:"deliverySpeed"`
	Condition        Condition          `json:"condition"`
	Brand            *string            `json:"brand"`
	Attributes       map[string]*string `json:"attributes"`
	ExcludeTerms     []string           `json:"excludeTerms"`
	MustIncludeTerms []string           `json:"mustIncludeTerms"`
}

// DefaultAttributeKeys are always present in Attributes.
var DefaultAttributeKeys = []string{"color", "size", "material", "storage", "format"}

// NewFilterSet returns a schema-complete filter set for the given term.
func NewFilterSet(term string) FilterSet {
	fs := FilterSet{SearchTerm: term}
	fs.Normalize()
	return fs
}

// Normalize fills missing fields with defaults and repairs out-of-range values.
func (f *FilterSet) Normalize() {
	f.SearchTerm = strings.TrimSpace(f.SearchTerm)
	if f.DeliverySpeed != DeliveryNextDay && f.DeliverySpeed != DeliveryTwoDay {
		f.DeliverySpeed = DeliveryNone
	}
	switch f.Condition {
	case ConditionNew, ConditionUsed, ConditionRefurbished:
	default:
		f.Condition = ConditionNone
	}
	if f.Attributes == nil {
		f.Attributes = make(map[string]*string, len(DefaultAttributeKeys))
	}
	for _, key := range DefaultAttributeKeys {
		if _, ok := f.Attributes[key]; !ok {
			f.Attributes[key] = nil
		}
	}
	f.ExcludeTerms = dedupTerms(f.ExcludeTerms)
	f.MustIncludeTerms = dedupTerms(f.MustIncludeTerms)

	f.ProductType = nonBlank(f.ProductType)
	f.Brand = nonBlank(f.Brand)
	f.MinPrice = nonNegative(f.MinPrice)
	f.MaxPrice = nonNegative(f.MaxPrice)
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		f.MinPrice, f.MaxPrice = f.MaxPrice, f.MinPrice
	}
	if f.MinRating != nil {
		if math.IsNaN(*f.MinRating) {
			f.MinRating = nil
		} else {
			v := math.Min(5, math.Max(0, *f.MinRating))
			f.MinRating = &v
		}
	}
	if f.MinReviewCount != nil && *f.MinReviewCount < 0 {
		v := 0
		f.MinReviewCount = &v
	}
}

func (f FilterSet) HasPriceFilter() bool {
	return f.MinPrice != nil || f.MaxPrice != nil
}

// PriceWithin reports whether value satisfies the price bounds.
func (f FilterSet) PriceWithin(value float64) bool {
	if f.MinPrice != nil && value < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && value > *f.MaxPrice {
		return false
	}
	return true
}

// AttributeValues returns the non-null attribute values ordered by attribute name.
func (f FilterSet) AttributeValues() []string {
	keys := make([]string, 0, len(f.Attributes))
	for key, value := range f.Attributes {
		if value != nil && strings.TrimSpace(*value) != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, strings.TrimSpace(*f.Attributes[key]))
	}
	return out
}

// Clone returns a deep copy.
func (f FilterSet) Clone() FilterSet {
	out := f
	out.ProductType = clonePtr(f.ProductType)
	out.MinPrice = clonePtr(f.MinPrice)
	out.MaxPrice = clonePtr(f.MaxPrice)
	out.MinRating = clonePtr(f.MinRating)
	out.MinReviewCount = clonePtr(f.MinReviewCount)
	out.Brand = clonePtr(f.Brand)
	if f.Attributes != nil {
		out.Attributes = make(map[string]*string, len(f.Attributes))
		for key, value := range f.Attributes {
			out.Attributes[key] = clonePtr(value)
		}
	}
	out.ExcludeTerms = append([]string(nil), f.ExcludeTerms...)
	out.MustIncludeTerms = append([]string(nil), f.MustIncludeTerms...)
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func nonBlank(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nonNegative(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	c := math.Max(0, *v)
	return &c
}

func dedupTerms(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, term := range in {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}

// NormalizeSearchTerm lower-cases, collapses whitespace and drops repeated words,
// keeping the first occurrence of each.
func NormalizeSearchTerm(term string) string {
	words := strings.Fields(strings.ToLower(term))
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, word := range words {
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return strings.Join(out, " ")
}

func Ptr[T any](v T) *T {
	return &v
}
