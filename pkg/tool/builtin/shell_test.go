package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/agentflow/core/pkg/tool"
	"github.com/stretchr/testify/assert"
)

func TestShellToolRunsAllowedCommand(t *testing.T) {
	st := NewShellTool(ShellConfig{})
	result := st.Execute(context.Background(), map[string]any{"command": "echo hi"})
	assert.Equal(t, tool.StatusSuccess, result.Status)
	assert.Contains(t, result.Output, "hi")
}

func TestShellToolDeniesDenylistedBaseCommand(t *testing.T) {
	st := NewShellTool(ShellConfig{Deny: []string{"rm"}})
	result := st.Execute(context.Background(), map[string]any{"command": "rm -rf /tmp/x"})
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Contains(t, result.Error, "denylisted")
}

func TestShellToolAllowlistRejectsOtherCommands(t *testing.T) {
	st := NewShellTool(ShellConfig{Allow: []string{"echo"}})
	result := st.Execute(context.Background(), map[string]any{"command": "cat /etc/passwd"})
	assert.Equal(t, tool.StatusError, result.Status)
}

func TestShellToolTimesOutLongRunningCommand(t *testing.T) {
	st := NewShellTool(ShellConfig{DefaultTimeout: 20 * time.Millisecond})
	result := st.Execute(context.Background(), map[string]any{"command": "sleep 5"})
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Contains(t, result.Error, "timed out")
}

func TestBaseCommandExtractsFirstTokenBeforePipe(t *testing.T) {
	assert.Equal(t, "ls", baseCommand("ls -la | grep foo"))
	assert.Equal(t, "echo", baseCommand("echo hi > out.txt"))
}
