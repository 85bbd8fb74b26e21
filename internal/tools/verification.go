package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/reqgraph/internal/criteria"
	"github.com/mark3labs/mcp-go/mcp"
)

// SetVerificationTool handles the req_set_verification MCP tool.
type SetVerificationTool struct {
	store   criteria.VerificationStore
	project string
}

// NewSetVerificationTool creates a SetVerificationTool.
func NewSetVerificationTool(store criteria.VerificationStore, project string) *SetVerificationTool {
	return &SetVerificationTool{store: store, project: project}
}

// Definition returns the MCP tool definition for registration.
func (t *SetVerificationTool) Definition() mcp.Tool {
	return mcp.NewTool("req_set_verification",
		mcp.WithDescription(
			"Record the verification outcome of one acceptance criterion. "+
				"The state is keyed by criterion id and survives later edits of the criteria list "+
				"as long as the criterion keeps its id.",
		),
		mcp.WithString("criterion_id",
			mcp.Required(),
			mcp.Description("Criterion id, e.g. AC-BR-T1-001-002"),
		),
		mcp.WithString("requirement_id",
			mcp.Required(),
			mcp.Description("Requirement that owns the criterion"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("One of: unverified, verified_ok, verified_ng"),
		),
		mcp.WithString("verified_by",
			mcp.Description("Who verified"),
		),
		mcp.WithString("evidence",
			mcp.Description("Link or note backing the outcome"),
		),
		mcp.WithNumber("sort_order",
			mcp.Description("Position of the criterion in its list (default: 0)"),
		),
		withProject(),
	)
}

// Handle processes the req_set_verification tool call.
func (t *SetVerificationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	criterionID := strings.TrimSpace(req.GetString("criterion_id", ""))
	requirementID := strings.TrimSpace(req.GetString("requirement_id", ""))
	if criterionID == "" {
		return mcp.NewToolResultError("'criterion_id' is required"), nil
	}
	if requirementID == "" {
		return mcp.NewToolResultError("'requirement_id' is required"), nil
	}
	status := criteria.Status(strings.TrimSpace(req.GetString("status", "")))
	if err := criteria.ValidateStatus(status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	v := criteria.Verification{
		CriterionID:   criterionID,
		RequirementID: requirementID,
		Status:        status,
		SortOrder:     intArg(req, "sort_order", 0),
	}
	if by := strings.TrimSpace(req.GetString("verified_by", "")); by != "" {
		v.VerifiedBy = &by
	}
	if ev := strings.TrimSpace(req.GetString("evidence", "")); ev != "" {
		v.Evidence = &ev
	}

	saved, err := t.store.SetVerification(ctx, projectArg(req, t.project), v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Criterion `%s` of %s is now **%s**.", saved.CriterionID, saved.RequirementID, saved.Status,
	)), nil
}
