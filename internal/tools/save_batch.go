package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/reqgraph/internal/criteria"
	"github.com/HendryAvila/reqgraph/internal/requirements"
	"github.com/HendryAvila/reqgraph/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// businessInput accepts acceptance_criteria_json in any shape the
// normalizer understands (list, JSON text, snake_case keys).
type businessInput struct {
	requirements.BusinessRequirement
	AcceptanceCriteriaJSON any `json:"acceptance_criteria_json"`
}

type systemInput struct {
	requirements.SystemRequirement
	AcceptanceCriteriaJSON any `json:"acceptance_criteria_json"`
}

// SaveBatchTool handles the req_save_batch MCP tool.
type SaveBatchTool struct {
	service *requirements.Service
	project string
}

// NewSaveBatchTool creates a SaveBatchTool backed by the save pipeline.
func NewSaveBatchTool(service *requirements.Service, project string) *SaveBatchTool {
	return &SaveBatchTool{service: service, project: project}
}

// Definition returns the MCP tool definition for registration.
func (t *SaveBatchTool) Definition() mcp.Tool {
	return mcp.NewTool("req_save_batch",
		mcp.WithDescription(
			"Create or update business and system requirements of a task in one batch. "+
				"Records without an id get the next BR-/SR- id. "+
				"BR.related_system_requirement_ids and SR.business_requirement_ids are kept "+
				"symmetric, including on stored requirements outside the batch. "+
				"Existing records must carry the version they were read at; a stale version "+
				"fails with a conflict.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task that owns the requirements"),
		),
		mcp.WithArray("business",
			mcp.Description("Business requirements: objects with id (optional), title, summary, goal, "+
				"constraints, owner, priority (Must|Should|Could), related_system_requirement_ids, "+
				"acceptance_criteria_json, acceptance_criteria, sort_order, version"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithArray("system",
			mcp.Description("System requirements: objects with id (optional), title, summary, "+
				"category (function|data|exception|auth|non_functional), business_requirement_ids, "+
				"srf_id, acceptance_criteria_json, acceptance_criteria, sort_order, version"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithBoolean("legacy_criteria_only",
			mcp.Description("Set when only the flat acceptance_criteria lists were edited; "+
				"they are merged position by position into the structured lists (default: false)"),
		),
		withProject(),
	)
}

// Handle processes the req_save_batch tool call.
func (t *SaveBatchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := strings.TrimSpace(req.GetString("task_id", ""))
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}

	var brIn []businessInput
	if err := decodeArg(req, "business", &brIn); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var srIn []systemInput
	if err := decodeArg(req, "system", &srIn); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(brIn) == 0 && len(srIn) == 0 {
		return mcp.NewToolResultError("provide at least one of 'business' or 'system'"), nil
	}

	batch := requirements.Batch{
		TaskID:             taskID,
		LegacyCriteriaOnly: boolArg(req, "legacy_criteria_only", false),
	}
	for _, in := range brIn {
		br := in.BusinessRequirement
		br.AcceptanceCriteriaJSON = criteria.Normalize(in.AcceptanceCriteriaJSON)
		batch.Business = append(batch.Business, br)
	}
	for _, in := range srIn {
		sr := in.SystemRequirement
		sr.AcceptanceCriteriaJSON = criteria.Normalize(in.AcceptanceCriteriaJSON)
		batch.System = append(batch.System, sr)
	}

	res, err := t.service.SaveBatch(ctx, projectArg(req, t.project), batch)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, store.ErrConflict) {
			msg += "\n\nReload the requirements with req_list_task and reapply the edit."
		}
		return mcp.NewToolResultError(msg), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Requirements saved (task %s)\n\n", taskID)
	for _, br := range res.Business {
		fmt.Fprintf(&b, "- **%s** v%d %s → %s\n", br.ID, br.Version, br.Title, idList(br.RelatedSystemRequirementIDs))
	}
	for _, sr := range res.System {
		fmt.Fprintf(&b, "- **%s** v%d %s ← %s\n", sr.ID, sr.Version, sr.Title, idList(sr.BusinessRequirementIDs))
	}
	if res.LinkedUp > 0 {
		fmt.Fprintf(&b, "\n%d stored requirement(s) outside the batch gained a reciprocal link.\n", res.LinkedUp)
	}
	b.WriteString("\n")
	b.WriteString(jsonBlock(res))
	return mcp.NewToolResultText(b.String()), nil
}

func idList(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}
