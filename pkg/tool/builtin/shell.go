package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/agentflow/core/pkg/tool"
)

// ShellConfig bounds a ShellTool's allowed commands and execution time,
// grounded on the teacher's config.CommandToolsConfig.
type ShellConfig struct {
	Allow            []string // base-command allowlist; empty = allow all
	Deny             []string // base-command denylist, checked first
	DefaultTimeout   time.Duration
	WorkingDirectory string
}

// ShellTool spawns a subprocess for the given command string, per
// spec.md §4.7.
type ShellTool struct {
	cfg ShellConfig
}

// NewShellTool constructs a ShellTool from cfg, applying the spec's
// default 60s timeout.
func NewShellTool(cfg ShellConfig) *ShellTool {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}
	if cfg.WorkingDirectory == "" {
		cfg.WorkingDirectory = "."
	}
	return &ShellTool{cfg: cfg}
}

func (t *ShellTool) Info() tool.Info {
	return tool.Info{
		Name:        "shell",
		Description: "Execute a shell command and capture stdout/stderr separately, subject to a timeout and command allow/deny lists.",
		Parameters: []tool.ParameterSchema{
			{Name: "command", Type: "string", Description: "Command to execute", Required: true},
			{Name: "working_dir", Type: "string", Description: "Working directory override", Required: false},
			{Name: "timeout_seconds", Type: "number", Description: "Execution timeout in seconds (default 60)", Required: false},
		},
	}
}

func (t *ShellTool) Execute(ctx context.Context, args map[string]any) tool.Result {
	started := time.Now()

	command, _ := args["command"].(string)
	if command == "" {
		return tool.Result{Status: tool.StatusError, Error: "command parameter is required", StartedAt: started, CompletedAt: time.Now()}
	}

	if err := t.validateCommand(command); err != nil {
		return tool.Result{Status: tool.StatusError, Error: err.Error(), StartedAt: started, CompletedAt: time.Now()}
	}

	workingDir := t.cfg.WorkingDirectory
	if wd, ok := args["working_dir"].(string); ok && wd != "" {
		workingDir = wd
	}

	timeout := t.cfg.DefaultTimeout
	if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = workingDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	completed := time.Now()

	if execCtx.Err() == context.DeadlineExceeded {
		return tool.Result{
			Status: tool.StatusError, Error: fmt.Sprintf("command timed out after %s", timeout),
			Output: stdout.String(), StartedAt: started, CompletedAt: completed,
		}
	}
	if err != nil {
		return tool.Result{
			Status: tool.StatusError, Error: fmt.Sprintf("command failed: %v: %s", err, stderr.String()),
			Output: stdout.String(), StartedAt: started, CompletedAt: completed,
		}
	}

	return tool.Result{
		Status: tool.StatusSuccess, Output: stdout.String(),
		Metadata:  map[string]any{"stderr": stderr.String()},
		StartedAt: started, CompletedAt: completed,
	}
}

func (t *ShellTool) validateCommand(command string) error {
	base := baseCommand(command)
	for _, deny := range t.cfg.Deny {
		if base == deny {
			return fmt.Errorf("command not allowed: %s is denylisted", base)
		}
	}
	if len(t.cfg.Allow) == 0 {
		return nil
	}
	for _, allow := range t.cfg.Allow {
		if base == allow {
			return nil
		}
	}
	return fmt.Errorf("command not allowed: %s (allowed: %v)", base, t.cfg.Allow)
}

func baseCommand(command string) string {
	parts := strings.FieldsFunc(command, func(r rune) bool {
		return r == '|' || r == '>' || r == '<' || r == ';'
	})
	if len(parts) == 0 {
		return ""
	}
	fields := strings.Fields(parts[0])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
