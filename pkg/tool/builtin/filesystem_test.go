package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentflow/core/pkg/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemToolWriteThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	ft := NewFilesystemTool(FilesystemConfig{Allow: []string{dir}})

	target := filepath.Join(dir, "note.txt")
	write := ft.Execute(context.Background(), map[string]any{
		"operation": "write_file", "path": target, "content": "hello",
	})
	require.Equal(t, tool.StatusSuccess, write.Status)

	read := ft.Execute(context.Background(), map[string]any{
		"operation": "read_file", "path": target,
	})
	require.Equal(t, tool.StatusSuccess, read.Status)
	assert.Equal(t, "hello", read.Output)
}

func TestFilesystemToolDeniesPathOutsideAllowlist(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	ft := NewFilesystemTool(FilesystemConfig{Allow: []string{dir}})

	result := ft.Execute(context.Background(), map[string]any{
		"operation": "read_file", "path": filepath.Join(other, "x.txt"),
	})
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Contains(t, result.Error, "outside the allowed paths")
}

func TestFilesystemToolDenylistTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "secret")
	require.NoError(t, os.Mkdir(secret, 0o755))
	ft := NewFilesystemTool(FilesystemConfig{Allow: []string{dir}, Deny: []string{secret}})

	result := ft.Execute(context.Background(), map[string]any{
		"operation": "list_directory", "path": secret,
	})
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Contains(t, result.Error, "denied prefix")
}

func TestFilesystemToolDeleteFileRefusesDirectories(t *testing.T) {
	dir := t.TempDir()
	ft := NewFilesystemTool(FilesystemConfig{Allow: []string{dir}})

	result := ft.Execute(context.Background(), map[string]any{
		"operation": "delete_file", "path": dir,
	})
	assert.Equal(t, tool.StatusError, result.Status)
}

func TestFilesystemToolRejectsFileOverMaxSize(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(target, make([]byte, 100), 0o644))
	ft := NewFilesystemTool(FilesystemConfig{Allow: []string{dir}, MaxFileSize: 10})

	result := ft.Execute(context.Background(), map[string]any{
		"operation": "read_file", "path": target,
	})
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Contains(t, result.Error, "too large")
}
