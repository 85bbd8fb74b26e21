package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewSuspectsPrompt handles the reqgraph-review-suspects MCP prompt.
// It instructs the AI to walk the user through the suspect links.
type ReviewSuspectsPrompt struct{}

// NewReviewSuspectsPrompt creates a ReviewSuspectsPrompt.
func NewReviewSuspectsPrompt() *ReviewSuspectsPrompt {
	return &ReviewSuspectsPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewSuspectsPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("reqgraph-review-suspects",
		mcp.WithPromptDescription(
			"Review traceability links that became suspect after a change "+
				"and confirm the ones that still hold.",
		),
	)
}

// Handle processes the reqgraph-review-suspects prompt request.
func (p *ReviewSuspectsPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Review suspect links",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `link_list_suspect` to find links whose endpoints changed.\n\n" +
						"Then, for each suspect link:\n" +
						"1. Show both endpoints and the recorded reason\n" +
						"2. Tell me whether the relation still looks valid\n" +
						"3. Collect the ones I approve and confirm them together with `link_batch_confirm`\n" +
						"4. Report how many were confirmed and any that failed",
				),
			},
		},
	}, nil
}
