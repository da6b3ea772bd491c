// Package builtin implements the runtime's built-in tools (C7):
// filesystem, shell, and HTTP fetch, grounded on the teacher's
// pkg/tools/read_file.go, file_writer.go, command.go, web_request.go —
// same sandboxing idiom (resolved-path allow/deny, result helpers),
// adapted to the shared pkg/tool.Tool contract and the single
// multi-operation shape spec.md §4.7 describes for the filesystem tool.
package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentflow/core/pkg/tool"
)

// FilesystemConfig bounds a FilesystemTool to a set of resolved path
// prefixes spec.md §4.7 calls the allowlist/denylist.
type FilesystemConfig struct {
	Allow       []string
	Deny        []string
	MaxFileSize int64 // bytes, default 10MiB
}

// FilesystemTool implements read_file | write_file | list_directory |
// create_directory | delete_file | file_exists | get_file_info behind
// one "operation" argument.
type FilesystemTool struct {
	cfg FilesystemConfig
}

// NewFilesystemTool constructs a FilesystemTool from cfg, applying the
// teacher's 10MiB default file-size cap.
func NewFilesystemTool(cfg FilesystemConfig) *FilesystemTool {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	return &FilesystemTool{cfg: cfg}
}

func (t *FilesystemTool) Info() tool.Info {
	return tool.Info{
		Name:        "filesystem",
		Description: "Read, write, and inspect files and directories within configured allowlisted paths.",
		Parameters: []tool.ParameterSchema{
			{Name: "operation", Type: "string", Description: "One of read_file, write_file, list_directory, create_directory, delete_file, file_exists, get_file_info", Required: true,
				Enum: []string{"read_file", "write_file", "list_directory", "create_directory", "delete_file", "file_exists", "get_file_info"}},
			{Name: "path", Type: "string", Description: "Filesystem path to operate on", Required: true},
			{Name: "content", Type: "string", Description: "Content to write (write_file only)", Required: false},
			{Name: "create_parents", Type: "boolean", Description: "Create missing parent directories (write_file, create_directory)", Required: false},
		},
	}
}

func (t *FilesystemTool) Execute(ctx context.Context, args map[string]any) tool.Result {
	started := time.Now()

	operation, _ := args["operation"].(string)
	path, _ := args["path"].(string)
	if path == "" {
		return errResult(started, "path parameter is required")
	}

	resolved, err := t.resolveAndAuthorize(path)
	if err != nil {
		return errResult(started, err.Error())
	}

	var result tool.Result
	switch operation {
	case "read_file":
		result = t.readFile(resolved)
	case "write_file":
		content, _ := args["content"].(string)
		createParents, _ := args["create_parents"].(bool)
		result = t.writeFile(resolved, content, createParents)
	case "list_directory":
		result = t.listDirectory(resolved)
	case "create_directory":
		createParents, _ := args["create_parents"].(bool)
		result = t.createDirectory(resolved, createParents)
	case "delete_file":
		result = t.deleteFile(resolved)
	case "file_exists":
		result = t.fileExists(resolved)
	case "get_file_info":
		result = t.getFileInfo(resolved)
	default:
		return errResult(started, fmt.Sprintf("unknown operation %q", operation))
	}

	result.StartedAt = started
	result.CompletedAt = time.Now()
	result.DurationMS = result.CompletedAt.Sub(started).Milliseconds()
	return result
}

// resolveAndAuthorize follows symlinks and checks the result against
// the configured allow/deny prefix lists — spec.md §4.7's "every path
// is resolved (symlinks followed) and checked against an allowlist and
// denylist of resolved prefixes".
func (t *FilesystemTool) resolveAndAuthorize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = abs
		} else {
			return "", fmt.Errorf("invalid path: %w", err)
		}
	}

	for _, deny := range t.cfg.Deny {
		if withinPrefix(resolved, deny) {
			return "", fmt.Errorf("access denied: %s is within denied prefix %s", resolved, deny)
		}
	}

	if len(t.cfg.Allow) == 0 {
		return resolved, nil
	}
	for _, allow := range t.cfg.Allow {
		if withinPrefix(resolved, allow) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("access denied: %s is outside the allowed paths", resolved)
}

func withinPrefix(path, prefix string) bool {
	absPrefix, err := filepath.Abs(prefix)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absPrefix, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

func (t *FilesystemTool) readFile(path string) tool.Result {
	info, err := os.Stat(path)
	if err != nil {
		return errResult(time.Time{}, fmt.Sprintf("stat failed: %v", err))
	}
	if info.IsDir() {
		return errResult(time.Time{}, "path is a directory")
	}
	if info.Size() > t.cfg.MaxFileSize {
		return errResult(time.Time{}, fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), t.cfg.MaxFileSize))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return errResult(time.Time{}, fmt.Sprintf("read failed: %v", err))
	}

	if !isValidUTF8Text(raw) {
		return tool.Result{Status: tool.StatusSuccess, Output: fmt.Sprintf("<binary, %d bytes>", len(raw))}
	}
	return tool.Result{Status: tool.StatusSuccess, Output: string(raw)}
}

func (t *FilesystemTool) writeFile(path, content string, createParents bool) tool.Result {
	if createParents {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errResult(time.Time{}, fmt.Sprintf("create parents failed: %v", err))
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errResult(time.Time{}, fmt.Sprintf("write failed: %v", err))
	}
	return tool.Result{Status: tool.StatusSuccess, Output: fmt.Sprintf("wrote %d bytes to %s", len(content), path)}
}

func (t *FilesystemTool) listDirectory(path string) tool.Result {
	entries, err := os.ReadDir(path)
	if err != nil {
		return errResult(time.Time{}, fmt.Sprintf("list failed: %v", err))
	}
	var b strings.Builder
	for _, e := range entries {
		kind := "file"
		if e.IsDir() {
			kind = "dir"
		}
		fmt.Fprintf(&b, "%s\t%s\n", kind, e.Name())
	}
	return tool.Result{Status: tool.StatusSuccess, Output: b.String(), Metadata: map[string]any{"count": len(entries)}}
}

func (t *FilesystemTool) createDirectory(path string, createParents bool) tool.Result {
	var err error
	if createParents {
		err = os.MkdirAll(path, 0o755)
	} else {
		err = os.Mkdir(path, 0o755)
	}
	if err != nil {
		return errResult(time.Time{}, fmt.Sprintf("mkdir failed: %v", err))
	}
	return tool.Result{Status: tool.StatusSuccess, Output: fmt.Sprintf("created directory %s", path)}
}

func (t *FilesystemTool) deleteFile(path string) tool.Result {
	info, err := os.Stat(path)
	if err != nil {
		return errResult(time.Time{}, fmt.Sprintf("stat failed: %v", err))
	}
	if info.IsDir() {
		return errResult(time.Time{}, "delete_file refuses directories")
	}
	if err := os.Remove(path); err != nil {
		return errResult(time.Time{}, fmt.Sprintf("delete failed: %v", err))
	}
	return tool.Result{Status: tool.StatusSuccess, Output: fmt.Sprintf("deleted %s", path)}
}

func (t *FilesystemTool) fileExists(path string) tool.Result {
	_, err := os.Stat(path)
	exists := err == nil
	return tool.Result{Status: tool.StatusSuccess, Output: fmt.Sprintf("%v", exists), Metadata: map[string]any{"exists": exists}}
}

func (t *FilesystemTool) getFileInfo(path string) tool.Result {
	info, err := os.Stat(path)
	if err != nil {
		return errResult(time.Time{}, fmt.Sprintf("stat failed: %v", err))
	}
	return tool.Result{
		Status: tool.StatusSuccess,
		Output: fmt.Sprintf("size=%d mode=%s modified=%s is_dir=%v", info.Size(), info.Mode(), info.ModTime(), info.IsDir()),
		Metadata: map[string]any{
			"size": info.Size(), "is_dir": info.IsDir(), "modified": info.ModTime(),
		},
	}
}

func isValidUTF8Text(b []byte) bool {
	for _, r := range string(b) {
		if r == '�' {
			return false
		}
	}
	return true
}

func errResult(started time.Time, msg string) tool.Result {
	r := tool.Result{Status: tool.StatusError, Error: msg}
	if !started.IsZero() {
		r.StartedAt = started
	}
	return r
}
