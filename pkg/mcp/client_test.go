package mcp

import (
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	"github.com/agentflow/core/pkg/tool"
)

func TestParseCallResultJoinsMultipleTextBlocks(t *testing.T) {
	resp := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "first"},
			mcp.TextContent{Type: "text", Text: "second"},
		},
	}
	result := parseCallResult(resp, time.Now(), time.Now())
	assert.Equal(t, tool.StatusSuccess, result.Status)
	assert.Equal(t, "first\nsecond", result.Output)
}

func TestParseCallResultSingleTextBlock(t *testing.T) {
	resp := &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "only"}},
	}
	result := parseCallResult(resp, time.Now(), time.Now())
	assert.Equal(t, "only", result.Output)
}

func TestParseCallResultErrorFlagYieldsErrorStatus(t *testing.T) {
	resp := &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "boom"}},
	}
	result := parseCallResult(resp, time.Now(), time.Now())
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Equal(t, "boom", result.Error)
}

func TestParseCallResultErrorWithoutTextUsesFallbackMessage(t *testing.T) {
	resp := &mcp.CallToolResult{IsError: true}
	result := parseCallResult(resp, time.Now(), time.Now())
	assert.Equal(t, "unknown error", result.Error)
}

func TestSchemaToParametersMarksRequiredFields(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type:     "object",
		Required: []string{"path"},
		Properties: map[string]any{
			"path":    map[string]any{"type": "string", "description": "target path"},
			"recurse": map[string]any{"type": "boolean"},
		},
	}
	params := schemaToParameters(schema)
	byName := map[string]tool.ParameterSchema{}
	for _, p := range params {
		byName[p.Name] = p
	}
	assert.True(t, byName["path"].Required)
	assert.Equal(t, "target path", byName["path"].Description)
	assert.False(t, byName["recurse"].Required)
}
