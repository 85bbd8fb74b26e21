// Package resources implements MCP resource handlers for reqgraph.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (reqgraph://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/reqgraph/internal/links"
	"github.com/mark3labs/mcp-go/mcp"
)

// SuspectURI is the address of the suspect-link listing.
const SuspectURI = "reqgraph://links/suspect"

// SuspectLister is the read side of the link registry.
type SuspectLister interface {
	ListSuspect(ctx context.Context, projectID string) ([]links.Link, error)
}

// Handler manages reqgraph resource endpoints.
type Handler struct {
	links   SuspectLister
	project string
}

// NewHandler creates a resource Handler for the given project.
func NewHandler(l SuspectLister, project string) *Handler {
	return &Handler{links: l, project: project}
}

// SuspectResource returns the MCP resource definition for the suspect links.
func (h *Handler) SuspectResource() mcp.Resource {
	return mcp.NewResource(
		SuspectURI,
		"Suspect links",
		mcp.WithResourceDescription("Traceability links of the configured project awaiting re-confirmation"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleSuspect returns the suspect links as JSON.
func (h *Handler) HandleSuspect(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	ls, err := h.links.ListSuspect(ctx, h.project)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"project": h.project,
		"count":   len(ls),
		"links":   ls,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling suspect links: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
