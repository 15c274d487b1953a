package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leafwise/budtender/internal/guidance"
	"github.com/leafwise/budtender/internal/products"
	"github.com/leafwise/budtender/internal/session"
)

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	svc := session.NewService(handlerFunc(func(_ context.Context, req guidance.Request) (guidance.Response, error) {
		return okResponse(req.RawQuery), nil
	}), newMemCache())
	t.Cleanup(svc.Close)

	return MCPDeps{
		Sessions: svc,
		Search: searchFunc(func(_ context.Context, _ string, _ products.ExperienceLevel) []products.Product {
			return []products.Product{{ID: "p1", Name: "Calm Drops"}}
		}),
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPAskGuidance(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpAskGuidance(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_guidance", map[string]any{
		"query":            "something for sleep",
		"experience_level": "casual",
	}))
	if err != nil {
		t.Fatalf("ask_guidance: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var resp guidance.Response
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Query != "something for sleep" {
		t.Errorf("query = %q, want %q", resp.Query, "something for sleep")
	}
}

func TestMCPAskGuidance_RequiresQuery(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpAskGuidance(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_guidance", map[string]any{}))
	if err != nil {
		t.Fatalf("ask_guidance: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing query")
	}
}

func TestMCPSearchProducts(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSearchProducts(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_products", map[string]any{
		"query": "sleep",
	}))
	if err != nil {
		t.Fatalf("search_products: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var found []products.Product
	if err := json.Unmarshal([]byte(toolText(t, result)), &found); err != nil {
		t.Fatalf("decoding products: %v", err)
	}
	if len(found) != 1 || found[0].Name != "Calm Drops" {
		t.Errorf("unexpected products: %+v", found)
	}
}

func TestMCPReadLast(t *testing.T) {
	deps := newTestMCPDeps(t)

	// Cold session first.
	result, err := mcpReadLast(deps)(context.Background(), makeCallToolRequest("read_last_response", map[string]any{
		"session_id": "sess-mcp",
	}))
	if err != nil {
		t.Fatalf("read_last_response: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for cold session")
	}

	// Warm it via a full ask, then re-read.
	if _, err := deps.Sessions.Ask(context.Background(), "sess-mcp", "something for sleep", products.LevelNew); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	result, err = mcpReadLast(deps)(context.Background(), makeCallToolRequest("read_last_response", map[string]any{
		"session_id": "sess-mcp",
	}))
	if err != nil {
		t.Fatalf("read_last_response: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "something for sleep") {
		t.Errorf("cached response missing query: %s", toolText(t, result))
	}
}

func TestMCPResourceStatus(t *testing.T) {
	deps := newTestMCPDeps(t)

	contents, err := mcpResourceStatus(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "guidance://status"},
	})
	if err != nil {
		t.Fatalf("status resource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if !strings.Contains(tc.Text, "budtender") {
		t.Errorf("status missing service name: %s", tc.Text)
	}
}
