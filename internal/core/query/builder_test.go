package query

import (
	"net/url"
	"strings"
	"testing"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

func fixedToken(n int) string {
	return strings.Repeat("x", n)
}

func TestBuildEmitsUpperBoundPrimeAndRatingTokens(t *testing.T) {
	fs := domain.NewFilterSet("wireless mouse")
	fs.MaxPrice = domain.Ptr(25.0)
	fs.Prime = true
	fs.MinRating = domain.Ptr(4.0)

	q := NewBuilder(DefaultVocabulary()).WithTokenSource(fixedToken).Build(fs)

	want := []string{"p_36:-2500", "p_85:2470955011", "p_72:1248882011"}
	if len(q.Refinements) != len(want) {
		t.Fatalf("expected refinements %v, got %v", want, q.Refinements)
	}
	for i := range want {
		if q.Refinements[i] != want[i] {
			t.Fatalf("expected refinement %d to be %s, got %s", i, want[i], q.Refinements[i])
		}
	}
	if got := q.Params.Get("rh"); got != strings.Join(want, ",") {
		t.Fatalf("expected combined refinement param, got %q", got)
	}
	if got := q.Params.Get("high-price"); got != "25" {
		t.Fatalf("expected high-price 25, got %q", got)
	}
	if q.Params.Has("low-price") {
		t.Fatalf("expected no low-price param, got %q", q.Params.Get("low-price"))
	}
	if got := q.Params.Get("s"); got != "price-asc-rank" {
		t.Fatalf("expected price sort, got %q", got)
	}
	if got := q.Params.Get("k"); got != "wireless mouse" {
		t.Fatalf("expected search term, got %q", got)
	}
	if got := q.Params.Get("sprefix"); got != "wirelessmouse" {
		t.Fatalf("expected sprefix, got %q", got)
	}
}

func TestBuildClosedAndOpenPriceRanges(t *testing.T) {
	b := NewBuilder(DefaultVocabulary()).WithTokenSource(fixedToken)

	fs := domain.NewFilterSet("desk lamp")
	fs.MinPrice = domain.Ptr(19.99)
	fs.MaxPrice = domain.Ptr(49.01)
	q := b.Build(fs)
	if q.Refinements[0] != "p_36:1900-5000" {
		t.Fatalf("expected closed range token, got %s", q.Refinements[0])
	}
	if q.Params.Get("low-price") != "19" || q.Params.Get("high-price") != "50" {
		t.Fatalf("expected floor/ceil price params, got %v", q.Params)
	}

	fs.MaxPrice = nil
	q = b.Build(fs)
	if q.Refinements[0] != "p_36:1900-" {
		t.Fatalf("expected lower bound token, got %s", q.Refinements[0])
	}
}

func TestBuildDropsUnmappedValuesSilently(t *testing.T) {
	fs := domain.NewFilterSet("tent")
	fs.MinRating = domain.Ptr(4.5)
	fs.ProductType = domain.Ptr("camping")
	q := NewBuilder(DefaultVocabulary()).WithTokenSource(fixedToken).Build(fs)

	if len(q.Refinements) != 0 {
		t.Fatalf("expected no refinements for rating bucket 5, got %v", q.Refinements)
	}
	if q.Params.Has("rh") {
		t.Fatalf("expected no refinement param, got %q", q.Params.Get("rh"))
	}
	if q.Params.Has("i") {
		t.Fatalf("expected no search index for unmapped type, got %q", q.Params.Get("i"))
	}
	if q.Params.Has("s") {
		t.Fatalf("expected no sort without price filter")
	}
}

func TestBuildMapsConditionDeliveryBrandAndIndex(t *testing.T) {
	fs := domain.NewFilterSet("Kindle Kindle paperwhite")
	fs.Condition = domain.ConditionRefurbished
	fs.DeliverySpeed = domain.DeliveryNextDay
	fs.FreeShipping = true
	fs.Brand = domain.Ptr("Amazon")
	fs.ProductType = domain.Ptr("Books")

	q := NewBuilder(DefaultVocabulary()).WithTokenSource(fixedToken).Build(fs)

	want := "p_76:1,p_89:Amazon,p_n_condition-type:6461718011,p_97:11292772011"
	if got := q.Params.Get("rh"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got := q.Params.Get("i"); got != "stripbooks" {
		t.Fatalf("expected stripbooks index, got %q", got)
	}
	if got := q.Params.Get("k"); got != "kindle paperwhite" {
		t.Fatalf("expected deduplicated lower-case term, got %q", got)
	}
}

func TestBuildKeepsBrandInsideOneRefinement(t *testing.T) {
	fs := domain.NewFilterSet("shoes")
	fs.Brand = domain.Ptr("Johnston,Murphy")

	q := NewBuilder(DefaultVocabulary()).WithTokenSource(fixedToken).Build(fs)

	if got := q.Params.Get("rh"); got != "p_89:Johnston Murphy" {
		t.Fatalf("expected delimiter removed from brand, got %q", got)
	}
	if len(q.Refinements) != 1 {
		t.Fatalf("expected one refinement, got %v", q.Refinements)
	}

	fs.Brand = domain.Ptr(" , ")
	q = NewBuilder(DefaultVocabulary()).WithTokenSource(fixedToken).Build(fs)
	if got := q.Params.Get("rh"); got != "" {
		t.Fatalf("expected no brand refinement, got %q", got)
	}
}

func TestBuildIsPureApartFromCorrelationToken(t *testing.T) {
	fs := domain.NewFilterSet("usb c hub")
	fs.MinPrice = domain.Ptr(10.0)
	fs.Prime = true
	b := NewBuilder(DefaultVocabulary())

	first := b.Build(fs)
	second := b.Build(fs)
	if len(first.CorrelationToken) != 20 {
		t.Fatalf("expected 20 character correlation token, got %q", first.CorrelationToken)
	}

	strip := func(v url.Values) string {
		c := url.Values{}
		for key, values := range v {
			if key != "qid" {
				c[key] = values
			}
		}
		return c.Encode()
	}
	if strip(first.Params) != strip(second.Params) {
		t.Fatalf("expected identical params, got %s and %s", strip(first.Params), strip(second.Params))
	}
	if !strings.HasPrefix(first.URL, "https://www.amazon.com/s?") {
		t.Fatalf("unexpected url %s", first.URL)
	}
}

func TestParseVocabularyRequiresBaseURL(t *testing.T) {
	if _, err := ParseVocabulary([]byte("price:\n  key: p_36\n")); err == nil {
		t.Fatalf("expected error for missing base_url")
	}
}

func TestRandomTokenIsAlphanumeric(t *testing.T) {
	token := RandomToken(64)
	if len(token) != 64 {
		t.Fatalf("expected 64 characters, got %d", len(token))
	}
	for _, r := range token {
		if !strings.ContainsRune(correlationAlphabet, r) {
			t.Fatalf("unexpected rune %q in token", r)
		}
	}
}
