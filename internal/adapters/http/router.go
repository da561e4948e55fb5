package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/shopping-assistant/internal/config"
	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/core/ports"
	"github.com/kirillkom/shopping-assistant/internal/observability/metrics"
)

const serviceName = "api"

type Services struct {
	Search        ports.ProductSearcher
	Intents       ports.IntentResolver
	Conversations ports.ConversationReader
	Credentials   ports.CredentialManager
	History       ports.SearchHistoryReader
	Exporter      ports.ResultExporter
}

type Router struct {
	cfg       config.Config
	svc       Services
	metrics   *metrics.HTTPServerMetrics
	validator *requestValidator
}

func NewRouter(cfg config.Config, svc Services) *Router {
	return &Router{
		cfg:       cfg,
		svc:       svc,
		validator: mustRequestValidator(),
	}
}

// WithMetrics mounts /metrics and records request and search metrics.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware(serviceName))
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}
	r.Get("/healthz", rt.healthz)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
		})
		v1.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
		})
		v1.Use(func(next http.Handler) http.Handler {
			return bodyLimitMiddleware(next, rt.cfg.APIRequestBodyMaxSize)
		})
		v1.Use(rt.validator.middleware)

		v1.Post("/search", rt.search)
		v1.Post("/intent", rt.resolveIntent)
		v1.Put("/credentials", rt.saveCredential)
		v1.Get("/credentials/{user_id}", rt.credentialStatus)
		v1.Get("/searches/last", rt.lastResults)
		v1.Get("/searches/last/export.xlsx", rt.exportLastResults)
		v1.Get("/conversations/{user_id}/turns", rt.listTurns)
		v1.Delete("/conversations/{user_id}/turns", rt.resetTurns)
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	resp, err := rt.svc.Search.Search(r.Context(), req)
	products := 0
	if resp != nil {
		products = len(resp.Products)
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, "/v1/search", metrics.SearchOutcome(err), products, time.Since(start))
	}
	if err != nil {
		rt.writeDomainError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) resolveIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query  string `json:"query"`
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		rt.writeDomainError(w, r, "resolve intent", domain.ErrNotAuthenticated)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		rt.writeDomainError(w, r, "resolve intent", domain.ErrQueryRequired)
		return
	}

	// A missing key is not fatal here: the resolver falls back to the rule parser.
	apiKey, err := rt.svc.Credentials.ResolveKey(r.Context(), req.UserID)
	if err != nil && !errors.Is(err, domain.ErrInferenceNotConfigured) {
		slog.Warn("intent_key_lookup_failed", "request_id", requestIDFromContext(r.Context()), "user_id", req.UserID, "error", err)
	}

	resolution := rt.svc.Intents.Resolve(r.Context(), req.UserID, apiKey, req.Query)
	if rt.metrics != nil {
		rt.metrics.RecordIntent(serviceName, string(resolution.Source))
	}
	writeJSON(w, http.StatusOK, resolution)
}

func (rt *Router) saveCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	status, err := rt.svc.Credentials.Save(r.Context(), req.UserID, req.APIKey)
	if err != nil {
		rt.writeDomainError(w, r, "save credential", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) credentialStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := bindPathUserID(w, r)
	if !ok {
		return
	}
	status, err := rt.svc.Credentials.Status(r.Context(), userID)
	if err != nil {
		rt.writeDomainError(w, r, "credential status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) lastResults(w http.ResponseWriter, r *http.Request) {
	userID, ok := bindQueryUserID(w, r)
	if !ok {
		return
	}
	results, err := rt.svc.History.LastResults(r.Context(), userID)
	if err != nil {
		rt.writeDomainError(w, r, "last results", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (rt *Router) exportLastResults(w http.ResponseWriter, r *http.Request) {
	userID, ok := bindQueryUserID(w, r)
	if !ok {
		return
	}
	if rt.svc.Exporter == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "export is not configured"})
		return
	}
	results, err := rt.svc.History.LastResults(r.Context(), userID)
	if err != nil {
		rt.writeDomainError(w, r, "export last results", err)
		return
	}

	var buf bytes.Buffer
	if err := rt.svc.Exporter.Export(*results, &buf); err != nil {
		rt.writeDomainError(w, r, "export last results", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordExport(serviceName, "xlsx")
	}
	w.Header().Set("Content-Type", rt.svc.Exporter.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="search-results.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) listTurns(w http.ResponseWriter, r *http.Request) {
	userID, ok := bindPathUserID(w, r)
	if !ok {
		return
	}
	turns, err := rt.svc.Conversations.Turns(r.Context(), userID)
	if err != nil {
		rt.writeDomainError(w, r, "list turns", err)
		return
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "turns": turns})
}

func (rt *Router) resetTurns(w http.ResponseWriter, r *http.Request) {
	userID, ok := bindPathUserID(w, r)
	if !ok {
		return
	}
	if err := rt.svc.Conversations.Reset(r.Context(), userID); err != nil {
		rt.writeDomainError(w, r, "reset turns", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bindPathUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var userID string
	err := runtime.BindStyledParameterWithOptions("simple", "user_id", chi.URLParam(r, "user_id"), &userID, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil || strings.TrimSpace(userID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid parameter \"user_id\""})
		return "", false
	}
	return userID, true
}

func bindQueryUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var userID string
	if err := runtime.BindQueryParameter("form", true, true, "user_id", r.URL.Query(), &userID); err != nil || strings.TrimSpace(userID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid parameter \"user_id\""})
		return "", false
	}
	return userID, true
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed", "request_id", requestIDFromContext(r.Context()), "operation", operation, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": domain.PublicMessage(err)})
}

// writeJSON encodes before writing the status so an unencodable payload still
// yields an error body.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("http_response_encode_failed", "error", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"search failed"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
