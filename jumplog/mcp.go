// CLAUDE:SUMMARY Registers gjump MCP tools: list, jump, excerpt, clear.
package jumplog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/gjump/kit"
)

// NewMCPServer returns an MCP server exposing nav's tools.
func NewMCPServer(nav Navigator, logger *slog.Logger) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "gjump", Version: Version}, nil)
	RegisterMCP(srv, nav, logger)
	return srv
}

// RegisterMCP registers the gjump tools on srv.
func RegisterMCP(srv *mcp.Server, nav Navigator, logger *slog.Logger) {
	registerListTool(srv, nav, logger)
	registerJumpTool(srv, nav, logger)
	registerExcerptTool(srv, nav, logger)
	registerClearTool(srv, nav, logger)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var errClearUnconfirmed = errors.New("clear not confirmed: pass confirm=true")

type idRequest struct {
	ID string `json:"id"`
}

func decodeID(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r idRequest
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

// --- list ---

type listRequest struct {
	Query string `json:"query,omitempty"`
}

func registerListTool(srv *mcp.Server, nav Navigator, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "gjump_list",
		Description: "List captured chat queries, oldest first. Optionally filter by a case-insensitive substring.",
		InputSchema: inputSchema(map[string]any{
			"query": map[string]any{"type": "string", "description": "Substring filter"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		entries, err := nav.Entries(ctx, req.(*listRequest).Query)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": entries, "count": len(entries)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r listRequest
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(logger, tool.Name)(endpoint), decode)
}

// --- jump ---

func registerJumpTool(srv *mcp.Server, nav Navigator, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "gjump_jump",
		Description: "Scroll the chat page to a captured query and highlight it briefly.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Entry ID from gjump_list"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		id := req.(*idRequest).ID
		if err := nav.Jump(ctx, id); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok", "id": id}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(logger, tool.Name)(endpoint), decodeID)
}

// --- excerpt ---

func registerExcerptTool(srv *mcp.Server, nav Navigator, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "gjump_excerpt",
		Description: "Return a captured query with the current rendering of its message as markdown.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Entry ID from gjump_list"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return nav.Excerpt(ctx, req.(*idRequest).ID)
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(logger, tool.Name)(endpoint), decodeID)
}

// --- clear ---

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

func registerClearTool(srv *mcp.Server, nav Navigator, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "gjump_clear",
		Description: "Delete every captured query. Requires confirm=true.",
		InputSchema: inputSchema(map[string]any{
			"confirm": map[string]any{"type": "boolean", "description": "Must be true"},
		}, []string{"confirm"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		if !req.(*clearRequest).Confirm {
			return nil, errClearUnconfirmed
		}
		if err := nav.Clear(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"status": "cleared"}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r clearRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(logger, tool.Name)(endpoint), decode)
}
