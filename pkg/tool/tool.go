// Package tool defines the tool contract shared by built-in tools
// (pkg/tool/builtin), MCP-backed remote tools (pkg/mcp), and the router
// that federates both under one name-keyed registry — grounded on the
// teacher's pkg/tools/interfaces.go (Tool/ToolInfo/ToolResult), trimmed
// of the streaming-tool and tool-source variants spec.md's C7/C10 never
// describe.
package tool

import (
	"context"
	"time"
)

// ParameterSchema describes one named tool input for JSON-Schema
// generation and router-side validation.
type ParameterSchema struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// Info describes a tool to the LLM adapter layer and the router's
// validation step.
type Info struct {
	Name        string
	Description string
	Parameters  []ParameterSchema
}

// Status is the outcome of one tool execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the uniform outcome every tool (built-in or remote) and the
// router return — spec.md §4.7/§4.10: never a thrown error, always this
// shape, so the orchestrator can relay it to the LLM as a tool-result
// message.
type Result struct {
	Status      Status
	Output      string
	Error       string
	Metadata    map[string]any
	StartedAt   time.Time
	CompletedAt time.Time
	DurationMS  int64
}

// Tool is one callable capability, built-in or MCP-remote.
type Tool interface {
	Info() Info
	Execute(ctx context.Context, args map[string]any) Result
}
