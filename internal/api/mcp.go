package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agrolab/hydrochat/internal/retrieval"
)

// MCPSearcher abstracts similarity search for the MCP layer.
type MCPSearcher interface {
	Search(ctx context.Context, query string, k int) ([]retrieval.Document, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Answerer Answerer
	Searcher MCPSearcher
}

// NewMCPServer creates an MCP server exposing the cultivation assistant as
// tools: grounded question answering and raw context search.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"hydrochat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("hydrochat — retrieval-grounded assistant for hydroponic lettuce cultivation monitoring."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a question about the indexed cultivation data, grounded in retrieved context."),
			mcp.WithString("question", mcp.Description("Free-text question, any language"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("search_context",
			mcp.WithDescription("Semantically search the indexed cultivation documents and return the raw matches."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchContext(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		result := deps.Answerer.Answer(ctx, question)
		if result.Error != "" {
			return mcpError(result.Error), nil
		}
		return mcpText(result.Response), nil
	}
}

func mcpSearchContext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", retrieval.DefaultTopK)
		if limit <= 0 {
			limit = retrieval.DefaultTopK
		}
		if limit > 50 {
			limit = 50
		}

		docs, err := deps.Searcher.Search(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(docs) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(docs)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
