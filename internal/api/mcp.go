package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leafwise/budtender/internal/products"
	"github.com/leafwise/budtender/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Sessions *session.Service
	Search   ProductSearcher
	Catalog  CatalogCounter // nil when no embedded store is configured
}

// NewMCPServer creates an MCP server exposing the guidance pipeline as
// tools. ask_guidance runs a full request synchronously; presentation
// tooling that wants status streaming should use the HTTP surface instead.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"budtender",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("budtender — hemp product guidance: ask questions, search the catalog, re-read the last answer."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_guidance",
			mcp.WithDescription("Ask a product guidance question and wait for the assembled answer (AI text, benefit notes, product suggestions)."),
			mcp.WithString("query", mcp.Description("The guidance question"), mcp.Required()),
			mcp.WithString("experience_level", mcp.Description("One of: new, casual, experienced (default new)")),
			mcp.WithString("session_id", mcp.Description("Session identity; omit to start a fresh session")),
		),
		mcpAskGuidance(deps),
	)

	s.AddTool(
		mcp.NewTool("search_products",
			mcp.WithDescription("Search the product catalog directly, without generation."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("experience_level", mcp.Description("One of: new, casual, experienced (default new)")),
		),
		mcpSearchProducts(deps),
	)

	s.AddTool(
		mcp.NewTool("read_last_response",
			mcp.WithDescription("Return the session's last cached guidance response, if still valid."),
			mcp.WithString("session_id", mcp.Description("Session identity"), mcp.Required()),
		),
		mcpReadLast(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"guidance://status",
			"Pipeline Status",
			mcp.WithResourceDescription("Catalog size and service identity as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStatus(deps),
	)

	return s
}

func mcpAskGuidance(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		level := products.ParseExperienceLevel(req.GetString("experience_level", ""))
		sessionID := req.GetString("session_id", "")
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		resp, err := deps.Sessions.Ask(ctx, sessionID, query, level)
		if err != nil {
			return mcpError(fmt.Sprintf("guidance failed: %v", err)), nil
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchProducts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		level := products.ParseExperienceLevel(req.GetString("experience_level", ""))

		found := deps.Search.Search(ctx, query, level)
		if len(found) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(found)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpReadLast(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		resp, ok := deps.Sessions.ReadLast(ctx, sessionID)
		if !ok {
			return mcpError("no valid cached response for this session"), nil
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStatus(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		status := map[string]any{"service": "budtender"}
		if deps.Catalog != nil {
			n, err := deps.Catalog.CountItems()
			if err != nil {
				return nil, fmt.Errorf("failed to count catalog items: %w", err)
			}
			status["catalog_items"] = n
		}

		b, err := json.Marshal(status)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal status: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
