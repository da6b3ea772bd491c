// Package mcp implements the MCP (Model Context Protocol) stdio client
// (C8) and multi-server manager (C9), grounded on the teacher's
// pkg/tool/mcptoolset/mcptoolset.go connectStdio/mcpToolWrapper path —
// the teacher's own stdio transport, generalized from a lazily-connected
// Toolset into an explicit connect/call/disconnect lifecycle matching
// spec.md §4.8's request-level timeout and disconnect-grace-window
// requirements, which the teacher's lazy toolset does not itself need
// since it never tears a connection down mid-run.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentflow/core/pkg/apierr"
	"github.com/agentflow/core/pkg/tool"
)

const (
	// defaultCallTimeout bounds one tools/call round-trip without
	// tearing down the connection — spec.md §4.8's "a per-request
	// timeout that does not kill the underlying connection".
	defaultCallTimeout = 30 * time.Second

	// disconnectGrace is how long Disconnect waits for a clean
	// shutdown before giving up and returning — spec.md §4.8's
	// "disconnect has a grace window, not an immediate kill".
	disconnectGrace = 5 * time.Second
)

// ServerConfig describes how to spawn one MCP stdio server.
type ServerConfig struct {
	ID      string
	Command string
	Args    []string
	Env     map[string]string

	// CallTimeout overrides defaultCallTimeout when positive.
	CallTimeout time.Duration
}

// Client owns one spawned MCP server subprocess over stdio. The
// underlying stdio connection is NOT reentrancy-safe, so call holds mu
// for the whole round-trip: requests to one server are serialized.
type Client struct {
	cfg    ServerConfig
	client *client.Client
	tools  map[string]mcp.Tool

	mu sync.Mutex
}

// Connect spawns the server process, performs the MCP initialize
// handshake, and fetches its tool list — grounded on the teacher's
// connectStdio: NewStdioMCPClient → Start → Initialize → ListTools.
func Connect(ctx context.Context, cfg ServerConfig) (*Client, error) {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	mcpClient, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, apierr.New(apierr.TransportError, "mcp", "failed to create stdio client", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, apierr.New(apierr.TransportError, "mcp", "failed to start server process", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentflow", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, apierr.New(apierr.TransportError, "mcp", "initialize handshake failed", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return nil, apierr.New(apierr.TransportError, "mcp", "tools/list failed", err)
	}

	tools := make(map[string]mcp.Tool, len(listResp.Tools))
	for _, t := range listResp.Tools {
		tools[t.Name] = t
	}

	return &Client{cfg: cfg, client: mcpClient, tools: tools}, nil
}

// Tools returns one tool.Tool wrapper per remote tool this server
// exposes.
func (c *Client) Tools() []tool.Tool {
	tools := make([]tool.Tool, 0, len(c.tools))
	for name, t := range c.tools {
		tools = append(tools, &remoteTool{client: c, name: name, mcpTool: t})
	}
	return tools
}

// call invokes one remote tool under a bounded request timeout that
// never tears down the underlying connection on expiry — only the
// individual call fails.
func (c *Client) call(ctx context.Context, name string, args map[string]any) tool.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	started := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := c.client.CallTool(callCtx, req)
	completed := time.Now()
	if err != nil {
		return tool.Result{
			Status: tool.StatusError, Error: fmt.Sprintf("mcp call %q failed: %v", name, err),
			StartedAt: started, CompletedAt: completed,
		}
	}

	return parseCallResult(resp, started, completed)
}

func parseCallResult(resp *mcp.CallToolResult, started, completed time.Time) tool.Result {
	if resp.IsError {
		msg := "unknown error"
		for _, content := range resp.Content {
			if text, ok := content.(mcp.TextContent); ok {
				msg = text.Text
				break
			}
		}
		return tool.Result{Status: tool.StatusError, Error: msg, StartedAt: started, CompletedAt: completed}
	}

	var texts []string
	for _, content := range resp.Content {
		if text, ok := content.(mcp.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}

	output := ""
	switch len(texts) {
	case 0:
	case 1:
		output = texts[0]
	default:
		for i, t := range texts {
			if i > 0 {
				output += "\n"
			}
			output += t
		}
	}

	return tool.Result{Status: tool.StatusSuccess, Output: output, StartedAt: started, CompletedAt: completed}
}

// Disconnect closes the underlying connection, waiting up to
// disconnectGrace for a clean shutdown before returning regardless —
// spec.md §4.8's grace-window-then-give-up semantics.
func (c *Client) Disconnect() error {
	done := make(chan error, 1)
	go func() {
		done <- c.client.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(disconnectGrace):
		return fmt.Errorf("mcp server %s did not shut down within %s grace window", c.cfg.ID, disconnectGrace)
	}
}

// remoteTool adapts one MCP tool into the shared tool.Tool contract.
type remoteTool struct {
	client  *Client
	name    string
	mcpTool mcp.Tool
}

func (r *remoteTool) Info() tool.Info {
	params := schemaToParameters(r.mcpTool.InputSchema)
	return tool.Info{Name: r.name, Description: r.mcpTool.Description, Parameters: params}
}

func (r *remoteTool) Execute(ctx context.Context, args map[string]any) tool.Result {
	return r.client.call(ctx, r.name, args)
}

var _ tool.Tool = (*remoteTool)(nil)

// schemaToParameters flattens an MCP JSON-Schema input schema into the
// flat ParameterSchema list the router's validation step expects.
func schemaToParameters(schema mcp.ToolInputSchema) []tool.ParameterSchema {
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	params := make([]tool.ParameterSchema, 0, len(schema.Properties))
	for name, raw := range schema.Properties {
		prop, _ := raw.(map[string]any)
		typ, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		params = append(params, tool.ParameterSchema{
			Name: name, Type: typ, Description: desc, Required: required[name],
		})
	}
	return params
}
