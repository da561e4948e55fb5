package mcpadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/core/ports"
)

const (
	toolSearchProducts = "search_products"
	toolResolveIntent  = "resolve_intent"
)

// Tools exposes the search pipeline and intent resolution as MCP tools.
type Tools struct {
	search      ports.ProductSearcher
	intents     ports.IntentResolver
	credentials ports.CredentialManager
}

func NewTools(search ports.ProductSearcher, intents ports.IntentResolver, credentials ports.CredentialManager) *Tools {
	return &Tools{
		search:      search,
		intents:     intents,
		credentials: credentials,
	}
}

func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"shopping-assistant",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	tools.Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool(toolSearchProducts,
		mcp.WithDescription("Search the product catalog with a natural-language shopping request and return ranked products."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Shopping request, e.g. \"wireless earbuds under $50 with 4+ stars\"")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Caller identity used for credentials and conversation context")),
		mcp.WithNumber("count", mcp.Description("Number of products to return"), mcp.Min(domain.MinResults), mcp.Max(domain.MaxResults)),
	), t.SearchProducts)

	s.AddTool(mcp.NewTool(toolResolveIntent,
		mcp.WithDescription("Resolve a shopping request into structured filters without fetching results."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Shopping request")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Caller identity")),
		mcp.WithReadOnlyHintAnnotation(true),
	), t.ResolveIntent)
}

func (t *Tools) SearchProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := domain.SearchRequest{
		Query:  request.GetString("query", ""),
		UserID: request.GetString("user_id", ""),
	}
	if _, ok := request.GetArguments()["count"]; ok {
		count := request.GetInt("count", domain.DefaultResults)
		req.RequestedItemCount = &count
	}

	resp, err := t.search.Search(ctx, req)
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", toolSearchProducts, "user_id", req.UserID, "error", err)
		return mcp.NewToolResultError(domain.PublicMessage(err)), nil
	}
	return mcp.NewToolResultStructured(resp, summarizeProducts(resp)), nil
}

func (t *Tools) ResolveIntent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError(domain.ErrQueryRequired.Error()), nil
	}
	userID, err := request.RequireString("user_id")
	if err != nil || strings.TrimSpace(userID) == "" {
		return mcp.NewToolResultError(domain.ErrNotAuthenticated.Error()), nil
	}

	apiKey := ""
	if t.credentials != nil {
		key, err := t.credentials.ResolveKey(ctx, userID)
		switch {
		case err == nil:
			apiKey = key
		case !errors.Is(err, domain.ErrInferenceNotConfigured):
			slog.Warn("mcp_key_lookup_failed", "user_id", userID, "error", err)
		}
	}

	resolution := t.intents.Resolve(ctx, userID, apiKey, query)
	text := fmt.Sprintf("search term %q (source: %s)", resolution.Filters.SearchTerm, resolution.Source)
	return mcp.NewToolResultStructured(resolution, text), nil
}

func summarizeProducts(resp *domain.SearchResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d products for %q\n", len(resp.Products), resp.AppliedFilters.SearchTerm)
	for i, p := range resp.Products {
		fmt.Fprintf(&b, "%d. %s, %s, %.1f stars (%d reviews)", i+1, p.Title, p.Price.Formatted, p.Rating, p.ReviewCount)
		if p.IsPrimeEligible {
			b.WriteString(", prime")
		}
		fmt.Fprintf(&b, "\n   %s\n", p.URL)
	}
	if resp.ResultPageURL != "" {
		fmt.Fprintf(&b, "all results: %s\n", resp.ResultPageURL)
	}
	return b.String()
}
