package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/reqgraph/internal/requirements"
	"github.com/mark3labs/mcp-go/mcp"
)

// DeleteTool handles the req_delete MCP tool.
type DeleteTool struct {
	service *requirements.Service
	project string
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(service *requirements.Service, project string) *DeleteTool {
	return &DeleteTool{service: service, project: project}
}

// Definition returns the MCP tool definition for registration.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("req_delete",
		mcp.WithDescription(
			"Delete a business or system requirement. Its verification records go with it, "+
				"its ID is removed from the mirror field of every counterpart, "+
				"and typed links touching it are retired. Not reversible.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("One of: business, system"),
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Requirement ID, e.g. 'BR-T1-001'"),
		),
		withProject(),
	)
}

// Handle processes the req_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := projectArg(req, t.project)
	kind := strings.ToLower(strings.TrimSpace(req.GetString("kind", "")))
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	var (
		res *requirements.DeleteResult
		err error
	)
	switch kind {
	case "business":
		res, err = t.service.DeleteBusinessRequirement(ctx, project, id)
	case "system":
		res, err = t.service.DeleteSystemRequirement(ctx, project, id)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"invalid kind %q: must be one of: business, system", kind,
		)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	unlinked := "none"
	if len(res.Unlinked) > 0 {
		unlinked = strings.Join(res.Unlinked, ", ")
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Deleted `%s`.\n\n- Unlinked from: %s\n- Retired links: %d",
		res.ID, unlinked, res.RetiredLinks,
	)), nil
}
