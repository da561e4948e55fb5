package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

const (
	amount         = `(\d[\d,]*(?:\.\d+)?)`
	currencySuffix = `(?:\s*(?:dollars|usd|bucks))?`
)

// ruleExtractor is one filter category of the rule-based parser. Patterns run
// in order; each match is removed from the working text whether or not it set
// a field, so a category never leaves a phrase a later parse would extract.
type ruleExtractor struct {
	name     string
	patterns []*regexp.Regexp
	guard    func(rest string) bool
	apply    func(fs *domain.FilterSet, pattern int, groups []string)
}

var (
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bbetween\s*\$?\s*` + amount + `\s*(?:and|to|-)\s*\$?\s*` + amount + currencySuffix),
		regexp.MustCompile(`(?i)\$\s*` + amount + `\s*(?:-|to)\s*\$\s*` + amount),
		regexp.MustCompile(`(?i)\b(?:under|below|less\s+than|cheaper\s+than|up\s+to|no\s+more\s+than)\s*\$?\s*` + amount + currencySuffix),
		regexp.MustCompile(`(?i)\$\s*` + amount + `\s*(?:or\s+less|or\s+under|and\s+under|max(?:imum)?)\b`),
		regexp.MustCompile(`(?i)\b(?:over|above|more\s+than|at\s+least)\s*\$?\s*` + amount + currencySuffix),
		regexp.MustCompile(`(?i)\$\s*` + amount + `\s*(?:or\s+more|and\s+(?:up|above|over)|\+)`),
	}
	reviewPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:more\s+than|over|at\s+least)\s+(\d[\d,]*)\+?\s+reviews?\b`),
		regexp.MustCompile(`(?i)\b(?:with|has|having)\s+(?:at\s+least\s+)?(\d[\d,]*)\+?\s+reviews?\b`),
		regexp.MustCompile(`(?i)(\d[\d,]*)\+?\s+reviews?\b`),
	}
	primePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:with\s+)?prime(?:\s+shipping)?\b`),
	}
	ratingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:\b(?:over|above|more\s+than|at\s+least|rated)\s+)?(\d+(?:\.\d+)?)\+?\s*stars?\b`),
	}
	freeShippingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bfree\s+shipping\b`),
	}
	deliveryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:next|one)\s*-?\s*day\s*(?:delivery|shipping)\b`),
		regexp.MustCompile(`(?i)\btwo\s*-?\s*day\s*(?:delivery|shipping)\b`),
	}
	conditionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bnew\b`),
		regexp.MustCompile(`(?i)\bused\b`),
		regexp.MustCompile(`(?i)\brefurbished\b`),
	}
	brandPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bby\s+([a-z0-9\s]+?)(?:\s+(?:brand|company))?\b`),
	}

	connectorPattern = regexp.MustCompile(`(?i)\b(?:at\s+least|or\s+(?:more|better|higher)|and\s+up|with|and|having|rated|minimum)\b`)
	whitespace       = regexp.MustCompile(`\s+`)
)

var ruleExtractors = []ruleExtractor{
	{
		name:     "price",
		patterns: pricePatterns,
		guard:    notFollowedByRatingWords,
		apply: func(fs *domain.FilterSet, pattern int, groups []string) {
			switch pattern {
			case 0, 1:
				low, okLow := parseAmount(groups[1])
				high, okHigh := parseAmount(groups[2])
				if okLow && okHigh && fs.MinPrice == nil && fs.MaxPrice == nil {
					fs.MinPrice, fs.MaxPrice = &low, &high
				}
			case 2, 3:
				if v, ok := parseAmount(groups[1]); ok && fs.MaxPrice == nil {
					fs.MaxPrice = &v
				}
			default:
				if v, ok := parseAmount(groups[1]); ok && fs.MinPrice == nil {
					fs.MinPrice = &v
				}
			}
		},
	},
	{
		name:     "reviews",
		patterns: reviewPatterns,
		apply: func(fs *domain.FilterSet, _ int, groups []string) {
			if fs.MinReviewCount != nil {
				return
			}
			if v, err := strconv.Atoi(strings.ReplaceAll(groups[1], ",", "")); err == nil {
				fs.MinReviewCount = &v
			}
		},
	},
	{
		name:     "prime",
		patterns: primePatterns,
		apply: func(fs *domain.FilterSet, _ int, _ []string) {
			fs.Prime = true
		},
	},
	{
		name:     "rating",
		patterns: ratingPatterns,
		apply: func(fs *domain.FilterSet, _ int, groups []string) {
			if fs.MinRating != nil {
				return
			}
			if v, err := strconv.ParseFloat(groups[1], 64); err == nil {
				fs.MinRating = &v
			}
		},
	},
	{
		name:     "free_shipping",
		patterns: freeShippingPatterns,
		apply: func(fs *domain.FilterSet, _ int, _ []string) {
			fs.FreeShipping = true
		},
	},
	{
		name:     "delivery",
		patterns: deliveryPatterns,
		apply: func(fs *domain.FilterSet, pattern int, _ []string) {
			if fs.DeliverySpeed != domain.DeliveryNone {
				return
			}
			if pattern == 0 {
				fs.DeliverySpeed = domain.DeliveryNextDay
				return
			}
			fs.DeliverySpeed = domain.DeliveryTwoDay
		},
	},
	{
		name:     "condition",
		patterns: conditionPatterns,
		apply: func(fs *domain.FilterSet, pattern int, _ []string) {
			if fs.Condition != domain.ConditionNone {
				return
			}
			fs.Condition = []domain.Condition{domain.ConditionNew, domain.ConditionUsed, domain.ConditionRefurbished}[pattern]
		},
	},
	{
		name:     "brand",
		patterns: brandPatterns,
		apply: func(fs *domain.FilterSet, _ int, groups []string) {
			if fs.Brand != nil {
				return
			}
			if brand := strings.TrimSpace(groups[1]); brand != "" {
				fs.Brand = &brand
			}
		},
	},
}

// ParseQuery is the deterministic rule-based fallback parser. It never fails:
// with no recognizable filter the normalized text becomes the search term.
// Extractors run once in order over word-deduplicated text, so the residual
// term has no repeated words to collapse into a new filter phrase.
func ParseQuery(query string) domain.FilterSet {
	fs := domain.NewFilterSet("")
	text := uniqueWords(query)
	for _, extractor := range ruleExtractors {
		text = extractor.run(&fs, text)
	}
	text = connectorPattern.ReplaceAllString(text, " ")
	fs.SearchTerm = domain.NormalizeSearchTerm(whitespace.ReplaceAllString(text, " "))
	fs.Normalize()
	return fs
}

// uniqueWords collapses whitespace and drops case-insensitive repeats of a
// word, keeping the first spelling for brand capture.
func uniqueWords(text string) string {
	words := strings.Fields(text)
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, word := range words {
		key := strings.ToLower(word)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, word)
	}
	return strings.Join(out, " ")
}

func (e ruleExtractor) run(fs *domain.FilterSet, text string) string {
	for idx, pattern := range e.patterns {
		locs := pattern.FindAllStringSubmatchIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		var sb strings.Builder
		last := 0
		for _, loc := range locs {
			if e.guard != nil && !e.guard(text[loc[1]:]) {
				continue
			}
			groups := make([]string, len(loc)/2)
			for g := range groups {
				if loc[2*g] >= 0 {
					groups[g] = text[loc[2*g]:loc[2*g+1]]
				}
			}
			e.apply(fs, idx, groups)
			sb.WriteString(text[last:loc[0]])
			sb.WriteString(" ")
			last = loc[1]
		}
		sb.WriteString(text[last:])
		text = sb.String()
	}
	return text
}

// notFollowedByRatingWords rejects numbers that belong to a rating or review
// phrase such as "over 4 stars".
func notFollowedByRatingWords(rest string) bool {
	rest = strings.ToLower(strings.TrimLeft(rest, " +"))
	for _, prefix := range []string{"star", "review", "rating"} {
		if strings.HasPrefix(rest, prefix) {
			return false
		}
	}
	return true
}

func parseAmount(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
