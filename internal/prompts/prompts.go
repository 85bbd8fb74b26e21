// Package prompts implements MCP prompt handlers for reqgraph.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// EditTaskPrompt handles the reqgraph-edit-task MCP prompt.
// It walks the AI through a safe read-modify-write of a task's requirements.
type EditTaskPrompt struct{}

// NewEditTaskPrompt creates an EditTaskPrompt.
func NewEditTaskPrompt() *EditTaskPrompt {
	return &EditTaskPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *EditTaskPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("reqgraph-edit-task",
		mcp.WithPromptDescription(
			"Edit the business and system requirements of a task. "+
				"Loads the current state first so the save carries the right versions.",
		),
		mcp.WithArgument("task_id",
			mcp.ArgumentDescription("Task whose requirements to edit"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the reqgraph-edit-task prompt request.
func (p *EditTaskPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	taskID := req.Params.Arguments["task_id"]
	if taskID == "" {
		taskID = "<ask me which task>"
	}

	return &mcp.GetPromptResult{
		Description: "Edit task requirements",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to edit the requirements of task %s.\n\n"+
						"1. Call `req_list_task` with task_id=%s and show me the business and system requirements.\n"+
						"2. Ask me what to change. Keep every `id` and `version` exactly as listed.\n"+
						"3. Send only the changed records to `req_save_batch`. Leave `id` empty for new ones.\n"+
						"4. If the save reports a version conflict, reload with `req_list_task` and reapply my change.\n"+
						"5. Show me the saved records and any links that were added on other requirements.",
					taskID, taskID,
				)),
			},
		},
	}, nil
}
