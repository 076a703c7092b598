// Package files provides workspace-scoped file tools for the agent loop.
// All paths are resolved inside a single root directory; escapes via
// absolute paths or parent references are rejected.
package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/denker-ai/denker/pkg/tools"
)

// defaultMaxReadBytes caps file content fed back to the model.
const defaultMaxReadBytes = 200 * 1024

// Config adjusts the file tools.
type Config struct {
	// Root is the workspace directory the tools operate in. Required.
	Root string

	// MaxReadBytes caps read_file output. Zero selects 200KiB.
	MaxReadBytes int
}

// New returns the read_file and write_file tools sharing one workspace.
func New(cfg Config) ([]tools.Tool, error) {
	if cfg.Root == "" {
		return nil, errors.New("files: workspace root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("files: resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("files: workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("files: workspace root %s is not a directory", root)
	}
	if cfg.MaxReadBytes <= 0 {
		cfg.MaxReadBytes = defaultMaxReadBytes
	}

	ws := &workspace{root: root, maxRead: cfg.MaxReadBytes}
	return []tools.Tool{&readTool{ws}, &writeTool{ws}}, nil
}

type workspace struct {
	root    string
	maxRead int
}

// resolve maps a tool-supplied relative path onto the workspace, rejecting
// anything that would land outside the root.
func (w *workspace) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("path %q must be relative to the workspace", path)
	}

	full := filepath.Join(w.root, path)
	rel, err := filepath.Rel(w.root, full)
	if err != nil {
		return "", fmt.Errorf("path %q is invalid", path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", path)
	}
	return full, nil
}

type readTool struct {
	ws *workspace
}

var _ tools.Tool = (*readTool)(nil)

func (t *readTool) Name() string { return "read_file" }

func (t *readTool) Description() string {
	return "Read a file from the workspace and return its content."
}

func (t *readTool) Schema() json.RawMessage {
	return json.RawMessage(`{
	"type": "object",
	"required": ["path"],
	"properties": {
		"path": {
			"type": "string",
			"description": "Path relative to the workspace root"
		},
		"offset": {
			"type": "integer",
			"minimum": 0,
			"description": "Byte offset to start reading from"
		},
		"max_bytes": {
			"type": "integer",
			"minimum": 1,
			"description": "Maximum number of bytes to return"
		}
	}
}`)
}

func (t *readTool) Execute(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Path     string `json:"path"`
		Offset   int    `json:"offset"`
		MaxBytes int    `json:"max_bytes"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %v", err)
	}
	if args.Offset < 0 || args.MaxBytes < 0 {
		return "", errors.New("offset and max_bytes must not be negative")
	}

	full, err := t.ws.resolve(args.Path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("reading %s: %v", args.Path, err)
	}
	if args.Offset >= len(data) {
		return "", nil
	}
	data = data[args.Offset:]

	limit := t.ws.maxRead
	if args.MaxBytes > 0 && args.MaxBytes < limit {
		limit = args.MaxBytes
	}
	if len(data) > limit {
		return string(data[:limit]) +
			fmt.Sprintf("\n... (%d bytes truncated)", len(data)-limit), nil
	}
	return string(data), nil
}

type writeTool struct {
	ws *workspace
}

var _ tools.Tool = (*writeTool)(nil)

func (t *writeTool) Name() string { return "write_file" }

func (t *writeTool) Description() string {
	return "Write content to a file in the workspace, creating parent directories as needed."
}

func (t *writeTool) Schema() json.RawMessage {
	return json.RawMessage(`{
	"type": "object",
	"required": ["path", "content"],
	"properties": {
		"path": {
			"type": "string",
			"description": "Path relative to the workspace root"
		},
		"content": {
			"type": "string",
			"description": "Content to write"
		}
	}
}`)
}

func (t *writeTool) Execute(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %v", err)
	}

	full, err := t.ws.resolve(args.Path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating directories for %s: %v", args.Path, err)
	}
	if err := os.WriteFile(full, []byte(args.Content), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %v", args.Path, err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path), nil
}
