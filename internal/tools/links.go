package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/reqgraph/internal/links"
	"github.com/mark3labs/mcp-go/mcp"
)

const nodeTypesHelp = "business_requirement, system_requirement, system_function, concept, deliverable"

func nodeArg(req mcp.CallToolRequest, typeKey, idKey string) links.NodeRef {
	return links.NodeRef{
		Type: links.NodeType(strings.TrimSpace(req.GetString(typeKey, ""))),
		ID:   strings.TrimSpace(req.GetString(idKey, "")),
	}
}

func formatLink(l links.Link) string {
	state := "ok"
	if l.Suspect {
		state = "SUSPECT"
	}
	line := fmt.Sprintf("- `%s` %s -[%s]-> %s (%s, updated %s)", l.ID, l.Source, l.LinkType, l.Target, state, l.UpdatedAt)
	if l.SuspectReason != nil {
		line += fmt.Sprintf("\n  reason: %s", *l.SuspectReason)
	}
	return line
}

// ─── LinkCreateTool ─────────────────────────────────────────────────────────

// LinkCreateTool handles the link_create MCP tool.
type LinkCreateTool struct {
	registry *links.Registry
	project  string
}

// NewLinkCreateTool creates a LinkCreateTool.
func NewLinkCreateTool(registry *links.Registry, project string) *LinkCreateTool {
	return &LinkCreateTool{registry: registry, project: project}
}

// Definition returns the MCP tool definition for link_create.
func (t *LinkCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("link_create",
		mcp.WithDescription(
			"Create a traceability link between two nodes. New links are not suspect. "+
				"Node types: "+nodeTypesHelp+".",
		),
		mcp.WithString("source_type", mcp.Required(), mcp.Description("Source node type")),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Source node id")),
		mcp.WithString("target_type", mcp.Required(), mcp.Description("Target node type")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Target node id")),
		mcp.WithString("link_type",
			mcp.Description("Relation name, e.g. derives, implements, verifies (default: relates_to)"),
		),
		withProject(),
	)
}

// Handle processes the link_create tool call.
func (t *LinkCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	l, err := t.registry.Create(ctx, projectArg(req, t.project), links.CreateParams{
		Source:   nodeArg(req, "source_type", "source_id"),
		Target:   nodeArg(req, "target_type", "target_id"),
		LinkType: req.GetString("link_type", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Link created:\n" + formatLink(*l)), nil
}

// ─── LinkFlagTool ───────────────────────────────────────────────────────────

// LinkFlagTool handles the link_flag MCP tool.
type LinkFlagTool struct {
	registry *links.Registry
	project  string
}

// NewLinkFlagTool creates a LinkFlagTool.
func NewLinkFlagTool(registry *links.Registry, project string) *LinkFlagTool {
	return &LinkFlagTool{registry: registry, project: project}
}

// Definition returns the MCP tool definition for link_flag.
func (t *LinkFlagTool) Definition() mcp.Tool {
	return mcp.NewTool("link_flag",
		mcp.WithDescription(
			"Mark a link suspect because one of its endpoints changed. "+
				"Suspect links stay listed by link_list_suspect until confirmed.",
		),
		mcp.WithString("link_id", mcp.Required(), mcp.Description("Link id")),
		mcp.WithString("reason", mcp.Description("What changed; kept after confirmation for audit")),
		withProject(),
	)
}

// Handle processes the link_flag tool call.
func (t *LinkFlagTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("link_id", ""))
	if id == "" {
		return mcp.NewToolResultError("'link_id' is required"), nil
	}
	l, err := t.registry.Flag(ctx, id, projectArg(req, t.project), req.GetString("reason", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Link flagged:\n" + formatLink(*l)), nil
}

// ─── LinkListSuspectTool ────────────────────────────────────────────────────

// LinkListSuspectTool handles the link_list_suspect MCP tool.
type LinkListSuspectTool struct {
	registry *links.Registry
	project  string
}

// NewLinkListSuspectTool creates a LinkListSuspectTool.
func NewLinkListSuspectTool(registry *links.Registry, project string) *LinkListSuspectTool {
	return &LinkListSuspectTool{registry: registry, project: project}
}

// Definition returns the MCP tool definition for link_list_suspect.
func (t *LinkListSuspectTool) Definition() mcp.Tool {
	return mcp.NewTool("link_list_suspect",
		mcp.WithDescription(
			"List links awaiting re-confirmation, oldest change first. "+
				"With node_type and node_id, list every link touching that node instead.",
		),
		mcp.WithString("node_type", mcp.Description("Optional node type filter: "+nodeTypesHelp)),
		mcp.WithString("node_id", mcp.Description("Optional node id filter")),
		withProject(),
	)
}

// Handle processes the link_list_suspect tool call.
func (t *LinkListSuspectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := projectArg(req, t.project)
	node := nodeArg(req, "node_type", "node_id")

	var (
		ls    []links.Link
		err   error
		title string
	)
	if node.ID != "" {
		ls, err = t.registry.ListForNode(ctx, project, node)
		title = fmt.Sprintf("Links of %s", node)
	} else {
		ls, err = t.registry.ListSuspect(ctx, project)
		title = "Suspect links"
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(ls) == 0 {
		return mcp.NewToolResultText(title + ": none."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%d)\n\n", title, len(ls))
	for _, l := range ls {
		b.WriteString(formatLink(l))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── LinkConfirmTool ────────────────────────────────────────────────────────

// LinkConfirmTool handles the link_confirm MCP tool.
type LinkConfirmTool struct {
	registry *links.Registry
	project  string
}

// NewLinkConfirmTool creates a LinkConfirmTool.
func NewLinkConfirmTool(registry *links.Registry, project string) *LinkConfirmTool {
	return &LinkConfirmTool{registry: registry, project: project}
}

// Definition returns the MCP tool definition for link_confirm.
func (t *LinkConfirmTool) Definition() mcp.Tool {
	return mcp.NewTool("link_confirm",
		mcp.WithDescription(
			"Confirm a suspect link after reviewing it: clears the suspect flag. "+
				"Confirming a link that is not suspect is harmless.",
		),
		mcp.WithString("link_id", mcp.Required(), mcp.Description("Link id")),
		withProject(),
	)
}

// Handle processes the link_confirm tool call.
func (t *LinkConfirmTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("link_id", ""))
	if id == "" {
		return mcp.NewToolResultError("'link_id' is required"), nil
	}
	l, err := t.registry.Confirm(ctx, id, projectArg(req, t.project))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Link confirmed:\n" + formatLink(*l)), nil
}

// ─── LinkBatchConfirmTool ───────────────────────────────────────────────────

// LinkBatchConfirmTool handles the link_batch_confirm MCP tool.
type LinkBatchConfirmTool struct {
	registry *links.Registry
	project  string
}

// NewLinkBatchConfirmTool creates a LinkBatchConfirmTool.
func NewLinkBatchConfirmTool(registry *links.Registry, project string) *LinkBatchConfirmTool {
	return &LinkBatchConfirmTool{registry: registry, project: project}
}

// Definition returns the MCP tool definition for link_batch_confirm.
func (t *LinkBatchConfirmTool) Definition() mcp.Tool {
	return mcp.NewTool("link_batch_confirm",
		mcp.WithDescription(
			"Confirm several links in order. Not atomic: a failing id is reported and "+
				"the remaining ids are still confirmed.",
		),
		mcp.WithArray("link_ids",
			mcp.Required(),
			mcp.Description("Link ids to confirm"),
			mcp.WithStringItems(),
		),
		withProject(),
	)
}

// Handle processes the link_batch_confirm tool call.
func (t *LinkBatchConfirmTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := stringsArg(req, "link_ids")
	if len(ids) == 0 {
		return mcp.NewToolResultError("'link_ids' is required"), nil
	}

	res := t.registry.BatchConfirm(ctx, ids, projectArg(req, t.project))
	msg := fmt.Sprintf("Confirmed %d of %d link(s).", res.ConfirmedCount, res.Requested)
	if res.FirstError != nil {
		msg += fmt.Sprintf("\n\nFailed: %s\nFirst error: %s", strings.Join(res.FailedIDs, ", "), res.FirstError.Error())
		if res.ConfirmedCount == 0 {
			return mcp.NewToolResultError(msg), nil
		}
	}
	return mcp.NewToolResultText(msg), nil
}

// ─── LinkRetireNodeTool ─────────────────────────────────────────────────────

// LinkRetireNodeTool handles the link_retire_node MCP tool.
type LinkRetireNodeTool struct {
	registry *links.Registry
	project  string
}

// NewLinkRetireNodeTool creates a LinkRetireNodeTool.
func NewLinkRetireNodeTool(registry *links.Registry, project string) *LinkRetireNodeTool {
	return &LinkRetireNodeTool{registry: registry, project: project}
}

// Definition returns the MCP tool definition for link_retire_node.
func (t *LinkRetireNodeTool) Definition() mcp.Tool {
	return mcp.NewTool("link_retire_node",
		mcp.WithDescription(
			"Delete every link whose source or target is the given node. "+
				"Call after deleting the node itself.",
		),
		mcp.WithString("node_type", mcp.Required(), mcp.Description("Node type: "+nodeTypesHelp)),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
		withProject(),
	)
}

// Handle processes the link_retire_node tool call.
func (t *LinkRetireNodeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	node := nodeArg(req, "node_type", "node_id")
	if node.ID == "" {
		return mcp.NewToolResultError("'node_id' is required"), nil
	}
	n, err := t.registry.RetireNode(ctx, projectArg(req, t.project), node)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed %d link(s) of %s.", n, node)), nil
}
