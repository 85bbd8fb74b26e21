package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/reqgraph/internal/criteria"
	"github.com/HendryAvila/reqgraph/internal/requirements"
	"github.com/mark3labs/mcp-go/mcp"
)

// ListTaskTool handles the req_list_task MCP tool.
type ListTaskTool struct {
	store         requirements.Store
	verifications criteria.VerificationStore
	project       string
}

// NewListTaskTool creates a ListTaskTool.
func NewListTaskTool(store requirements.Store, verifications criteria.VerificationStore, project string) *ListTaskTool {
	return &ListTaskTool{store: store, verifications: verifications, project: project}
}

// Definition returns the MCP tool definition for registration.
func (t *ListTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("req_list_task",
		mcp.WithDescription(
			"List the business and system requirements of a task with their links, "+
				"acceptance criteria and current versions. Use before editing with req_save_batch.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task to list"),
		),
		mcp.WithBoolean("include_verifications",
			mcp.Description("Also return the verification state of each criterion (default: false)"),
		),
		withProject(),
	)
}

type taskListing struct {
	Business      []requirements.BusinessRequirement `json:"business"`
	System        []requirements.SystemRequirement   `json:"system"`
	Verifications map[string][]criteria.Verification `json:"verifications,omitempty"`
}

// Handle processes the req_list_task tool call.
func (t *ListTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := strings.TrimSpace(req.GetString("task_id", ""))
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}
	project := projectArg(req, t.project)
	f := requirements.Filter{TaskID: taskID}

	brs, err := t.store.ListBusinessRequirements(ctx, project, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	srs, err := t.store.ListSystemRequirements(ctx, project, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := taskListing{Business: brs, System: srs}

	if boolArg(req, "include_verifications", false) && t.verifications != nil {
		out.Verifications = map[string][]criteria.Verification{}
		ids := make([]string, 0, len(brs)+len(srs))
		for _, br := range brs {
			ids = append(ids, br.ID)
		}
		for _, sr := range srs {
			ids = append(ids, sr.ID)
		}
		for _, id := range ids {
			vs, err := t.verifications.ListVerifications(ctx, project, id)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if len(vs) > 0 {
				out.Verifications[id] = vs
			}
		}
	}

	if len(brs) == 0 && len(srs) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No requirements for task %s in project %s.", taskID, project)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Task %s: %d business, %d system requirement(s)\n\n", taskID, len(brs), len(srs))
	b.WriteString(jsonBlock(out))
	return mcp.NewToolResultText(b.String()), nil
}
