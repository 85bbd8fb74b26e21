// Package tools implements the MCP tool handlers of reqgraph.
//
// Each tool is a struct that receives its dependencies through the
// constructor, exposes Definition() for registration and Handle() with
// mcp-go's CallToolRequest signature. Validation problems and store
// failures are returned as tool error results; the Go error return is
// reserved for failures of the tool itself.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringsArg extracts a list of strings. A single string is accepted as a
// one-element list, a comma-separated string as several. Blank entries are
// dropped.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	switch v := req.GetArguments()[key].(type) {
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

// decodeArg re-encodes an argument and decodes it into dst, so loosely
// typed JSON objects from the host land in typed structs. A missing key
// leaves dst untouched.
func decodeArg(req mcp.CallToolRequest, key string, dst any) error {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("'%s': %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("'%s' has the wrong shape: %w", key, err)
	}
	return nil
}

// projectArg returns the "project" argument or the server default.
func projectArg(req mcp.CallToolRequest, defaultProject string) string {
	if p := strings.TrimSpace(req.GetString("project", "")); p != "" {
		return p
	}
	return defaultProject
}

// withProject is the shared "project" parameter.
func withProject() mcp.ToolOption {
	return mcp.WithString("project",
		mcp.Description("Project scope. Defaults to the server's configured project."),
	)
}

// jsonBlock renders v as an indented JSON code block for tool output.
func jsonBlock(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("(unrenderable: %v)", err)
	}
	return "```json\n" + string(data) + "\n```"
}
