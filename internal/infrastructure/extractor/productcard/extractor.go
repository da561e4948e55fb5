package productcard

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

var (
	numberPattern = regexp.MustCompile(`[\d,]+\.?\d*`)
	pricePattern  = regexp.MustCompile(`\$?([\d,]+\.?\d*)`)
)

// Extractor turns provider result pages into candidate product records using
// ordered locator strategies.
type Extractor struct {
	sel      Selectors
	prefixes *regexp.Regexp
}

func NewExtractor(sel Selectors) *Extractor {
	e := &Extractor{sel: sel}
	if len(sel.PricePrefixes) > 0 {
		quoted := make([]string, 0, len(sel.PricePrefixes))
		for _, prefix := range sel.PricePrefixes {
			quoted = append(quoted, regexp.QuoteMeta(prefix))
		}
		e.prefixes = regexp.MustCompile(`(?i)^(` + strings.Join(quoted, "|") + `)\s*`)
	}
	return e
}

// Ready reports whether the page already renders at least one product card.
func (e *Extractor) Ready(content string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return false
	}
	return doc.Find(e.sel.readySelector()).Length() > 0
}

// Extract scans at most MaxCards cards and stops once MaxResults valid records
// were produced. Cards failing validation and repeats of an already promoted id
// are skipped.
func (e *Extractor) Extract(content, baseURL string, opts domain.ExtractOptions) ([]domain.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse result page: %w", err)
	}
	if e.sel.Grid != "" && doc.Find(e.sel.Grid).Length() == 0 {
		return []domain.ProductRecord{}, nil
	}

	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = domain.MaxResults
	}

	cards := doc.Find(e.sel.Card)
	scan := cards.Length()
	if scan > e.sel.MaxCards {
		scan = e.sel.MaxCards
	}

	products := make([]domain.ProductRecord, 0, limit)
	seen := make(map[string]struct{}, limit)
	for i := 0; i < scan && len(products) < limit; i++ {
		record, ok := e.extractCard(cards.Eq(i), base, opts)
		if !ok {
			continue
		}
		if _, dup := seen[record.ID]; dup {
			continue
		}
		seen[record.ID] = struct{}{}
		products = append(products, record)
	}
	return products, nil
}

func (e *Extractor) extractCard(card *goquery.Selection, base *url.URL, opts domain.ExtractOptions) (domain.ProductRecord, bool) {
	id := strings.TrimSpace(card.AttrOr(e.sel.IDAttribute, ""))
	if id == "" {
		return domain.ProductRecord{}, false
	}

	sponsored := matchesAny(card, e.sel.Sponsored)
	if sponsored && opts.SkipSponsored {
		return domain.ProductRecord{}, false
	}

	titleEl := firstMatch(card, e.sel.Title)
	if titleEl == nil {
		return domain.ProductRecord{}, false
	}
	price, ok := e.findPrice(card, opts.Filters)
	if !ok {
		return domain.ProductRecord{}, false
	}

	record := domain.ProductRecord{
		ID:              id,
		Title:           collapseSpace(titleEl.Text()),
		URL:             resolveURL(base, linkOf(titleEl)),
		Price:           price,
		Rating:          clampRating(numberOf(firstMatch(card, e.sel.Rating))),
		ReviewCount:     int(math.Round(numberOf(firstMatch(card, e.sel.ReviewCount)))),
		IsPrimeEligible: matchesAny(card, e.sel.Prime),
		IsSponsored:     sponsored,
	}
	if imageEl := firstMatch(card, e.sel.Image); imageEl != nil {
		if src := resolveURL(base, imageEl.AttrOr("src", "")); src != "" {
			record.ImageURL = &src
		}
	}

	if !isValidProduct(record, opts.Filters) {
		return domain.ProductRecord{}, false
	}
	return record, true
}

// findPrice returns the first locator whose text parses to a price inside the
// requested bounds.
func (e *Extractor) findPrice(card *goquery.Selection, filters domain.FilterSet) (domain.Price, bool) {
	for _, locator := range e.sel.Price {
		el := card.Find(locator).First()
		if el.Length() == 0 {
			continue
		}
		if price, ok := e.cleanPrice(el.Text(), filters); ok {
			return price, true
		}
	}
	return domain.Price{}, false
}

func (e *Extractor) cleanPrice(text string, filters domain.FilterSet) (domain.Price, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Price{}, false
	}
	if e.prefixes != nil {
		text = e.prefixes.ReplaceAllString(text, "")
	}
	text = strings.TrimSpace(strings.SplitN(text, "-", 2)[0])

	match := pricePattern.FindStringSubmatch(text)
	if match == nil {
		return domain.Price{}, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return domain.Price{}, false
	}
	if !filters.PriceWithin(value) {
		return domain.Price{}, false
	}
	return domain.Price{Formatted: fmt.Sprintf("$%.2f", value), Value: value}, true
}

func isValidProduct(p domain.ProductRecord, filters domain.FilterSet) bool {
	if p.ID == "" || p.Title == "" || p.URL == "" || p.ImageURL == nil {
		return false
	}
	if p.Price.Formatted == "" || !filters.PriceWithin(p.Price.Value) {
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

func firstMatch(card *goquery.Selection, locators []string) *goquery.Selection {
	for _, locator := range locators {
		if el := card.Find(locator).First(); el.Length() > 0 {
			return el
		}
	}
	return nil
}

func matchesAny(card *goquery.Selection, locators []string) bool {
	return firstMatch(card, locators) != nil
}

// linkOf prefers the element's own href, then the closest enclosing anchor.
func linkOf(el *goquery.Selection) string {
	if href, ok := el.Attr("href"); ok && strings.TrimSpace(href) != "" {
		return href
	}
	return el.Closest("a").AttrOr("href", "")
}

func resolveURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil && base.IsAbs() {
		ref = base.ResolveReference(ref)
	}
	if !ref.IsAbs() || ref.Host == "" {
		return ""
	}
	return ref.String()
}

func numberOf(el *goquery.Selection) float64 {
	if el == nil {
		return 0
	}
	match := numberPattern.FindString(el.Text())
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	return value
}

func clampRating(v float64) float64 {
	if v > 5 {
		return 5
	}
	return v
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
