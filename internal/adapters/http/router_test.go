package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/shopping-assistant/internal/config"
	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/observability/metrics"
)

type searchFake struct {
	resp *domain.SearchResponse
	err  error
	got  domain.SearchRequest
}

func (f *searchFake) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	f.got = req
	return f.resp, f.err
}

type intentFake struct {
	apiKey string
}

func (f *intentFake) Resolve(_ context.Context, _, apiKey, query string) domain.Resolution {
	f.apiKey = apiKey
	return domain.Resolution{
		Filters:        domain.NewFilterSet(query),
		Source:         domain.ResolutionRules,
		FallbackReason: "inference not configured",
	}
}

type conversationsFake struct {
	reset []string
}

func (f *conversationsFake) Turns(_ context.Context, userID string) ([]domain.ConversationTurn, error) {
	return []domain.ConversationTurn{{ID: "t1", UserID: userID, Query: "shoes"}}, nil
}

func (f *conversationsFake) Reset(_ context.Context, userID string) error {
	f.reset = append(f.reset, userID)
	return nil
}

type credentialsFake struct {
	resolveErr error
	saveErr    error
}

func (f credentialsFake) Save(_ context.Context, userID, _ string) (domain.CredentialStatus, error) {
	if f.saveErr != nil {
		return domain.CredentialStatus{}, f.saveErr
	}
	return domain.CredentialStatus{UserID: userID, Configured: true, Valid: true, Source: "user"}, nil
}

func (f credentialsFake) Status(_ context.Context, userID string) (domain.CredentialStatus, error) {
	return domain.CredentialStatus{UserID: userID, Source: "none"}, nil
}

func (f credentialsFake) ResolveKey(context.Context, string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return "sk-test", nil
}

type historyFake struct {
	results *domain.SearchResults
}

func (f historyFake) LastResults(_ context.Context, userID string) (*domain.SearchResults, error) {
	if f.results == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "last results", errors.New("user="+userID))
	}
	return f.results, nil
}

type exporterFake struct{}

func (exporterFake) Export(results domain.SearchResults, w io.Writer) error {
	_, err := io.WriteString(w, "rows:"+results.UserID)
	return err
}

func (exporterFake) ContentType() string { return "application/test-sheet" }

type testDeps struct {
	search        *searchFake
	intents       *intentFake
	conversations *conversationsFake
	credentials   credentialsFake
	history       historyFake
}

func newTestDeps() *testDeps {
	return &testDeps{
		search:        &searchFake{},
		intents:       &intentFake{},
		conversations: &conversationsFake{},
	}
}

func (d *testDeps) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, Services{
		Search:        d.search,
		Intents:       d.intents,
		Conversations: d.conversations,
		Credentials:   d.credentials,
		History:       d.history,
		Exporter:      exporterFake{},
	}).Handler()
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestDeps().handler(cfg)
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestSearchReturnsProducts(t *testing.T) {
	deps := newTestDeps()
	deps.search.resp = &domain.SearchResponse{
		Products:       []domain.ProductRecord{{ID: "B002", Title: "Trail shoe"}},
		AppliedFilters: domain.NewFilterSet("trail shoe"),
		ResultPageURL:  "https://provider.example/s?k=trail+shoe",
	}
	res := postJSON(t, deps.handler(config.Config{}), "/v1/search", map[string]any{
		"query":              "trail shoe",
		"userId":             "u1",
		"requestedItemCount": 2,
	})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if deps.search.got.UserID != "u1" || deps.search.got.RequestedItemCount == nil || *deps.search.got.RequestedItemCount != 2 {
		t.Fatalf("unexpected request forwarded: %+v", deps.search.got)
	}
	body := decodeBody(t, res)
	products, _ := body["products"].([]any)
	if len(products) != 1 {
		t.Fatalf("expected one product, got %v", body["products"])
	}
	if body["resultPageUrl"] != "https://provider.example/s?k=trail+shoe" {
		t.Fatalf("unexpected result page url %v", body["resultPageUrl"])
	}
}

func TestSearchMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{domain.ErrNotAuthenticated, http.StatusUnauthorized, "not authenticated"},
		{domain.ErrQueryRequired, http.StatusBadRequest, "query required"},
		{domain.ErrInferenceNotConfigured, http.StatusPreconditionFailed, "inference not configured"},
		{domain.WrapError(domain.ErrRateLimitExceeded, "acquire", errors.New("100 requests")), http.StatusTooManyRequests, "rate limit exceeded"},
		{domain.WrapError(domain.ErrNoProductsFound, "validate", errors.New("empty")), http.StatusNotFound, "no products found"},
		{domain.WrapError(domain.ErrSearchTimeout, "search", context.DeadlineExceeded), http.StatusGatewayTimeout, "search timed out"},
		{errors.New("socket exploded"), http.StatusInternalServerError, "search failed"},
	}
	for _, tc := range cases {
		deps := newTestDeps()
		deps.search.err = tc.err
		res := postJSON(t, deps.handler(config.Config{}), "/v1/search", map[string]any{"query": "shoes", "userId": "u1"})
		if res.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, res.Code)
		}
		if body := decodeBody(t, res); body["error"] != tc.message {
			t.Fatalf("%v: expected message %q, got %v", tc.err, tc.message, body["error"])
		}
	}
}

func TestSearchRejectsRequestsOutsideContract(t *testing.T) {
	deps := newTestDeps()
	handler := deps.handler(config.Config{})

	res := postJSON(t, handler, "/v1/search", map[string]any{"query": "shoes", "requestedItemCount": "three"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer count, got %d", res.Code)
	}

	res = postJSON(t, handler, "/v1/search", map[string]any{"userId": "u1"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing query field, got %d", res.Code)
	}
	if deps.search.got.UserID != "" {
		t.Fatalf("expected invalid requests not to reach the pipeline")
	}
}

func TestSearchRejectsOversizedBody(t *testing.T) {
	handler := newTestHandler(config.Config{APIRequestBodyMaxSize: 32})
	res := postJSON(t, handler, "/v1/search", map[string]any{"query": strings.Repeat("a", 200), "userId": "u1"})
	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestResolveIntentFallsBackWithoutKey(t *testing.T) {
	deps := newTestDeps()
	deps.credentials.resolveErr = domain.ErrInferenceNotConfigured
	res := postJSON(t, deps.handler(config.Config{}), "/v1/intent", map[string]any{"query": "red shoes", "userId": "u1"})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if deps.intents.apiKey != "" {
		t.Fatalf("expected empty key to reach resolver, got %q", deps.intents.apiKey)
	}
	body := decodeBody(t, res)
	if body["source"] != "rules" {
		t.Fatalf("expected rules source, got %v", body["source"])
	}
}

func TestResolveIntentRequiresUser(t *testing.T) {
	res := postJSON(t, newTestHandler(config.Config{}), "/v1/intent", map[string]any{"query": "red shoes"})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestSaveCredentialMapsInvalidKeyTo400(t *testing.T) {
	deps := newTestDeps()
	deps.credentials.saveErr = domain.WrapError(domain.ErrInvalidInput, "validate api key", errors.New("api key must start with \"sk-\""))
	body, _ := json.Marshal(map[string]any{"userId": "u1", "apiKey": "bad"})
	req := httptest.NewRequest(http.MethodPut, "/v1/credentials", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	deps.handler(config.Config{}).ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestCredentialStatusBindsPathUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/credentials/u-42", nil)
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}).ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if body := decodeBody(t, res); body["userId"] != "u-42" {
		t.Fatalf("expected user u-42, got %v", body["userId"])
	}
}

func TestLastResultsRequiresUserQuery(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/searches/last", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user_id, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/searches/last?user_id=u1", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when nothing is stored, got %d", res.Code)
	}
}

func TestExportLastResultsWritesAttachment(t *testing.T) {
	deps := newTestDeps()
	deps.history.results = &domain.SearchResults{UserID: "u1", Query: "shoes"}
	req := httptest.NewRequest(http.MethodGet, "/v1/searches/last/export.xlsx?user_id=u1", nil)
	res := httptest.NewRecorder()
	deps.handler(config.Config{}).ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "application/test-sheet" {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "attachment") {
		t.Fatalf("expected attachment disposition, got %q", res.Header().Get("Content-Disposition"))
	}
	if res.Body.String() != "rows:u1" {
		t.Fatalf("unexpected export body %q", res.Body.String())
	}
}

func TestConversationTurnsListAndReset(t *testing.T) {
	deps := newTestDeps()
	handler := deps.handler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/u1/turns", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	turns, _ := decodeBody(t, res)["turns"].([]any)
	if len(turns) != 1 {
		t.Fatalf("expected one turn, got %v", turns)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/conversations/u1/turns", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if len(deps.conversations.reset) != 1 || deps.conversations.reset[0] != "u1" {
		t.Fatalf("expected reset for u1, got %v", deps.conversations.reset)
	}
}

func TestMetricsEndpointExposesSearchCounters(t *testing.T) {
	deps := newTestDeps()
	deps.search.err = domain.ErrNoProductsFound
	handler := NewRouter(config.Config{}, Services{
		Search:        deps.search,
		Intents:       deps.intents,
		Conversations: deps.conversations,
		Credentials:   deps.credentials,
		History:       deps.history,
	}).WithMetrics(metrics.NewHTTPServerMetrics(serviceName)).Handler()

	_ = postJSON(t, handler, "/v1/search", map[string]any{"query": "shoes", "userId": "u1"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `outcome="no_products_found"`) {
		t.Fatalf("expected search outcome series in metrics output")
	}
}

func TestWriteJSONReportsUnencodablePayloadAsError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"rating": math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Fatalf("expected error body, got %q", rec.Body.String())
	}
}
