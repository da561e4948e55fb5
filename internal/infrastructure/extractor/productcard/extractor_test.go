package productcard

import (
	"strings"
	"testing"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

const baseURL = "https://www.amazon.com/s?k=headphones"

func card(asin, inner string) string {
	return `<div data-asin="` + asin + `" class="s-result-item">` + inner + `</div>`
}

func resultPage(cards ...string) string {
	return `<html><body><div class="s-main-slot">` + strings.Join(cards, "") + `</div></body></html>`
}

const (
	titleB001 = `<h2><a href="/dp/B001">Sponsored Headphones</a></h2>`
	image     = `<img class="s-image" src="https://m.media-amazon.com/images/I/x.jpg">`
)

func fullPage() string {
	return resultPage(
		card("", `<h2><a href="/dp/none">Placeholder</a></h2>`),
		card("B001", `<div data-component-type="sp-sponsored-result"></div>`+titleB001+
			`<span class="a-price"><span class="a-offscreen">$19.99</span></span>`+image),
		card("B002", `<h2><a href="/dp/B002?ref=sr_1">  Noise   Cancelling Headphones </a></h2>`+
			`<span class="a-price"><span class="a-offscreen">$1,024.50</span><span aria-hidden="true">$1,024.50</span></span>`+
			`<i class="a-icon a-icon-star-small"><span class="a-icon-alt">4.5 out of 5 stars</span></i>`+
			`<span class="a-size-base s-underline-text">1,234</span>`+
			`<i class="a-icon a-icon-prime"></i>`+image),
		card("B003", `<h2><span><a href="https://www.amazon.com/dp/B003">Budget Earbuds</a></span></h2>`+
			`<span class="a-color-price">from $5.00 - $9.00</span>`+image),
		card("B004", `<h2><a href="/dp/B004">No Image Earbuds</a></h2>`+
			`<span class="a-price"><span class="a-offscreen">$15.00</span></span>`),
		card("B005", `<h2><a href="/dp/B005">Studio Monitors</a></h2>`+
			`<span class="a-price"><span class="a-offscreen">$150.00</span></span>`+image),
	)
}

func TestExtractPromotesOnlyCompleteCards(t *testing.T) {
	e := NewExtractor(DefaultSelectors())

	got, err := e.Extract(fullPage(), baseURL, domain.ExtractOptions{MaxResults: 10, SkipSponsored: true})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	ids := make([]string, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	if strings.Join(ids, ",") != "B002,B003,B005" {
		t.Fatalf("expected B002,B003,B005, got %v", ids)
	}

	first := got[0]
	if first.Title != "Noise Cancelling Headphones" {
		t.Fatalf("unexpected title %q", first.Title)
	}
	if first.URL != "https://www.amazon.com/dp/B002?ref=sr_1" {
		t.Fatalf("expected absolute url, got %q", first.URL)
	}
	if first.Price.Formatted != "$1024.50" || first.Price.Value != 1024.5 {
		t.Fatalf("unexpected price %+v", first.Price)
	}
	if first.Rating != 4.5 || first.ReviewCount != 1234 || !first.IsPrimeEligible {
		t.Fatalf("unexpected rating/reviews/prime: %+v", first)
	}
	if first.ImageURL == nil || *first.ImageURL != "https://m.media-amazon.com/images/I/x.jpg" {
		t.Fatalf("unexpected image url %v", first.ImageURL)
	}

	second := got[1]
	if second.Price.Value != 5 || second.Price.Formatted != "$5.00" {
		t.Fatalf("expected qualifier and range stripped, got %+v", second.Price)
	}
	if second.Rating != 0 || second.ReviewCount != 0 {
		t.Fatalf("expected absent rating/reviews to default to 0, got %+v", second)
	}
}

func TestExtractSkipsRepeatedIDsWithoutSpendingTheLimit(t *testing.T) {
	e := NewExtractor(DefaultSelectors())
	entry := func(asin string) string {
		return card(asin, `<h2><a href="/dp/`+asin+`">Mouse `+asin+`</a></h2>`+
			`<span class="a-price"><span class="a-offscreen">$12.00</span></span>`+image)
	}

	got, err := e.Extract(resultPage(entry("A1"), entry("A1"), entry("B2")), baseURL, domain.ExtractOptions{MaxResults: 2})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	ids := make([]string, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	if strings.Join(ids, ",") != "A1,B2" {
		t.Fatalf("expected A1,B2, got %v", ids)
	}
}

func TestExtractKeepsSponsoredWhenAllowed(t *testing.T) {
	e := NewExtractor(DefaultSelectors())

	got, err := e.Extract(fullPage(), baseURL, domain.ExtractOptions{MaxResults: 1, SkipSponsored: false})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "B001" || !got[0].IsSponsored {
		t.Fatalf("expected sponsored B001 first, got %+v", got)
	}
}

func TestExtractAppliesPriceAndReviewFilters(t *testing.T) {
	e := NewExtractor(DefaultSelectors())
	filters := domain.NewFilterSet("headphones")
	filters.MinPrice = domain.Ptr(10.0)
	filters.MaxPrice = domain.Ptr(200.0)

	got, err := e.Extract(fullPage(), baseURL, domain.ExtractOptions{MaxResults: 10, SkipSponsored: true, Filters: filters})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "B005" {
		t.Fatalf("expected only B005 within 10..200, got %+v", got)
	}

	filters = domain.NewFilterSet("headphones")
	filters.MinReviewCount = domain.Ptr(1000)
	got, err = e.Extract(fullPage(), baseURL, domain.ExtractOptions{MaxResults: 10, SkipSponsored: true, Filters: filters})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "B002" {
		t.Fatalf("expected only B002 with 1000+ reviews, got %+v", got)
	}
}

func TestExtractScansAtMostMaxCards(t *testing.T) {
	sel := DefaultSelectors()
	sel.MaxCards = 2
	e := NewExtractor(sel)

	got, err := e.Extract(fullPage(), baseURL, domain.ExtractOptions{MaxResults: 10, SkipSponsored: true})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "B002" {
		t.Fatalf("expected scan to stop after two cards, got %+v", got)
	}
}

func TestReadyAndMissingGrid(t *testing.T) {
	e := NewExtractor(DefaultSelectors())

	if e.Ready(`<html><body><div class="s-main-slot"></div></body></html>`) {
		t.Fatalf("expected empty grid not to be ready")
	}
	if !e.Ready(fullPage()) {
		t.Fatalf("expected populated grid to be ready")
	}

	got, err := e.Extract(`<html><body>`+card("B009", titleB001+image)+`</body></html>`, baseURL, domain.ExtractOptions{MaxResults: 3})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records without result grid, got %+v", got)
	}
}

func TestParseSelectorsRequiresCoreLocators(t *testing.T) {
	if _, err := ParseSelectors([]byte("card: \"\"\ntitle: [h2]\nprice: [.a-price]\n")); err == nil {
		t.Fatalf("expected missing card selector to fail")
	}
	sel, err := ParseSelectors([]byte("card: '[data-asin]'\ntitle: [h2 a]\nprice: [.a-price]\nmax_cards: 500\n"))
	if err != nil {
		t.Fatalf("ParseSelectors() error = %v", err)
	}
	if sel.MaxCards != 100 || sel.IDAttribute != "data-asin" {
		t.Fatalf("expected defaults to apply, got %+v", sel)
	}
}
