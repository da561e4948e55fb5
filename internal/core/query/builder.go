package query

import (
	"math"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

const correlationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Builder is the SearchQueryBuilder: a deterministic mapping from a filter set
// to provider parameters, apart from the correlation token.
type Builder struct {
	vocab Vocabulary
	token func(n int) string
}

func NewBuilder(vocab Vocabulary) *Builder {
	return &Builder{vocab: vocab, token: RandomToken}
}

// WithTokenSource replaces the correlation token generator.
func (b *Builder) WithTokenSource(fn func(n int) string) *Builder {
	if fn != nil {
		b.token = fn
	}
	return b
}

func (b *Builder) Build(filters domain.FilterSet) domain.ProviderQuery {
	params := url.Values{}
	refinements := make([]string, 0, 8)

	term := domain.NormalizeSearchTerm(filters.SearchTerm)
	params.Set("k", term)

	if token, low, high := b.priceRefinement(filters); token != "" {
		if low != "" {
			params.Set("low-price", low)
		}
		if high != "" {
			params.Set("high-price", high)
		}
		refinements = append(refinements, token)
		if b.vocab.Price.Sort != "" {
			params.Set("s", b.vocab.Price.Sort)
		}
	}

	if filters.ProductType != nil {
		if index, ok := b.vocab.SearchIndex[strings.ToLower(strings.TrimSpace(*filters.ProductType))]; ok && index != "" {
			params.Set("i", index)
		}
	}

	if filters.Prime && b.vocab.Prime != "" {
		refinements = append(refinements, b.vocab.Prime)
	}
	if filters.MinRating != nil && *filters.MinRating > 0 {
		bucket := int(math.Ceil(*filters.MinRating))
		if code, ok := b.vocab.Rating[bucket]; ok && code != "" {
			refinements = append(refinements, code)
		}
	}
	if filters.FreeShipping && b.vocab.FreeShipping != "" {
		refinements = append(refinements, b.vocab.FreeShipping)
	}
	if filters.Brand != nil && b.vocab.BrandKey != "" {
		if brand := b.refinementValue(*filters.Brand); brand != "" {
			refinements = append(refinements, b.vocab.BrandKey+":"+brand)
		}
	}
	if code, ok := b.vocab.Condition[string(filters.Condition)]; ok && code != "" {
		refinements = append(refinements, code)
	}
	if code, ok := b.vocab.Delivery[string(filters.DeliverySpeed)]; ok && code != "" {
		refinements = append(refinements, code)
	}

	if len(refinements) > 0 {
		params.Set(b.vocab.RefinementParam, strings.Join(refinements, b.vocab.RefinementDelimiter))
	}
	for key, value := range b.vocab.StaticParams {
		params.Set(key, value)
	}
	correlation := b.token(b.vocab.CorrelationLength)
	params.Set("qid", correlation)
	params.Set("sprefix", alphanumeric(term))

	return domain.ProviderQuery{
		Params:           params,
		Refinements:      refinements,
		CorrelationToken: correlation,
		URL:              b.vocab.BaseURL + "?" + params.Encode(),
	}
}

// refinementValue keeps a free-text value inside a single refinement token.
func (b *Builder) refinementValue(v string) string {
	if d := b.vocab.RefinementDelimiter; d != "" {
		v = strings.ReplaceAll(v, d, " ")
	}
	return strings.Join(strings.Fields(v), " ")
}

// priceRefinement returns the price range token with the low/high params.
// Non-positive bounds count as absent.
func (b *Builder) priceRefinement(filters domain.FilterSet) (string, string, string) {
	var low, high string
	if filters.MinPrice != nil && *filters.MinPrice > 0 {
		low = strconv.FormatInt(int64(math.Floor(*filters.MinPrice)), 10)
	}
	if filters.MaxPrice != nil && *filters.MaxPrice > 0 {
		high = strconv.FormatInt(int64(math.Ceil(*filters.MaxPrice)), 10)
	}
	if low == "" && high == "" {
		return "", "", ""
	}
	suffix := b.vocab.Price.CentsSuffix
	var lowToken, highToken string
	if low != "" {
		lowToken = low + suffix
	}
	if high != "" {
		highToken = high + suffix
	}
	return b.vocab.Price.Key + ":" + lowToken + "-" + highToken, low, high
}

// RandomToken returns a uniform random alphanumeric string of length n.
func RandomToken(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = correlationAlphabet[rand.IntN(len(correlationAlphabet))]
	}
	return string(buf)
}

func alphanumeric(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
