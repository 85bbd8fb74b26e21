package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/reqgraph/internal/idalloc"
	"github.com/HendryAvila/reqgraph/internal/requirements"
	"github.com/mark3labs/mcp-go/mcp"
)

// NextIDTool handles the req_next_id MCP tool.
// It previews the next free requirement or criterion ID without reserving it.
type NextIDTool struct {
	store     requirements.Store
	project   string
	padLength int
}

// NewNextIDTool creates a NextIDTool.
func NewNextIDTool(store requirements.Store, project string, padLength int) *NextIDTool {
	return &NextIDTool{store: store, project: project, padLength: padLength}
}

// Definition returns the MCP tool definition for registration.
func (t *NextIDTool) Definition() mcp.Tool {
	return mcp.NewTool("req_next_id",
		mcp.WithDescription(
			"Preview the next free ID for a business requirement (BR-<task>-NNN), "+
				"system requirement (SR-<task>-NNN) or acceptance criterion (AC-<owner>-NNN). "+
				"Nothing is reserved: req_save_batch allocates IDs itself when records have none.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("One of: business, system, criterion"),
		),
		mcp.WithString("task_id",
			mcp.Description("Task that owns the requirement. Required for business and system."),
		),
		mcp.WithString("owner_id",
			mcp.Description("Requirement that owns the criterion. Required for criterion."),
		),
		withProject(),
	)
}

// Handle processes the req_next_id tool call.
func (t *NextIDTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := projectArg(req, t.project)
	kind := strings.ToLower(strings.TrimSpace(req.GetString("kind", "")))
	taskID := strings.TrimSpace(req.GetString("task_id", ""))
	ownerID := strings.TrimSpace(req.GetString("owner_id", ""))

	var (
		prefix   string
		existing []string
		pad      = t.padLength
	)
	switch kind {
	case "business":
		if taskID == "" {
			return mcp.NewToolResultError("'task_id' is required for kind=business"), nil
		}
		brs, err := t.store.ListBusinessRequirements(ctx, project, requirements.Filter{TaskID: taskID})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		prefix = idalloc.BusinessRequirementPrefix(taskID)
		existing = make([]string, 0, len(brs))
		for _, br := range brs {
			existing = append(existing, br.ID)
		}
	case "system":
		if taskID == "" {
			return mcp.NewToolResultError("'task_id' is required for kind=system"), nil
		}
		srs, err := t.store.ListSystemRequirements(ctx, project, requirements.Filter{TaskID: taskID})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		prefix = idalloc.SystemRequirementPrefix(taskID)
		existing = make([]string, 0, len(srs))
		for _, sr := range srs {
			existing = append(existing, sr.ID)
		}
	case "criterion":
		if ownerID == "" {
			return mcp.NewToolResultError("'owner_id' is required for kind=criterion"), nil
		}
		ids, err := t.criterionIDs(ctx, project, ownerID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		prefix = idalloc.CriterionPrefix(ownerID)
		existing = ids
		pad = idalloc.DefaultPad
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"invalid kind %q: must be one of: business, system, criterion", kind,
		)), nil
	}

	next := idalloc.NextSequentialID(prefix, existing, pad)
	return mcp.NewToolResultText(fmt.Sprintf(
		"Next ID: `%s`\n\n(%d existing ID(s) under `%s`)", next, len(existing), prefix,
	)), nil
}

// criterionIDs returns the criterion IDs of the owning requirement, which
// may be either a business or a system requirement.
func (t *NextIDTool) criterionIDs(ctx context.Context, project, ownerID string) ([]string, error) {
	var ids []string
	brs, err := t.store.GetBusinessRequirementsByIDs(ctx, project, []string{ownerID})
	if err != nil {
		return nil, err
	}
	for _, br := range brs {
		for _, c := range br.AcceptanceCriteriaJSON {
			ids = append(ids, c.ID)
		}
	}
	srs, err := t.store.GetSystemRequirementsByIDs(ctx, project, []string{ownerID})
	if err != nil {
		return nil, err
	}
	for _, sr := range srs {
		for _, c := range sr.AcceptanceCriteriaJSON {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}
