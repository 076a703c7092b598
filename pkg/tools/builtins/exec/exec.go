// Package exec provides a shell command tool for the agent loop.
package exec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/denker-ai/denker/pkg/tools"
)

const (
	defaultTimeout = 30 * time.Second
	maxTimeout     = 300 * time.Second

	// defaultMaxOutput caps combined stdout/stderr fed back to the model.
	defaultMaxOutput = 64 * 1024
)

var schema = json.RawMessage(`{
	"type": "object",
	"required": ["command"],
	"properties": {
		"command": {
			"type": "string",
			"description": "Shell command to execute"
		},
		"timeout_seconds": {
			"type": "integer",
			"description": "Timeout in seconds (1-300)",
			"minimum": 1,
			"maximum": 300
		}
	}
}`)

// Config adjusts the command tool.
type Config struct {
	// WorkDir is the working directory commands run in. Empty means the
	// process working directory.
	WorkDir string

	// Timeout is the default per-command bound when the call does not set
	// one. Zero selects 30s.
	Timeout time.Duration

	// MaxOutputBytes caps the output returned to the model. Zero selects
	// 64KiB.
	MaxOutputBytes int
}

// Tool executes shell commands with a bounded runtime and bounded output.
type Tool struct {
	cfg    Config
	logger *slog.Logger
}

var _ tools.Tool = (*Tool)(nil)

// New creates the command tool.
func New(cfg Config, logger *slog.Logger) *Tool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutput
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{cfg: cfg, logger: logger}
}

func (t *Tool) Name() string { return "exec" }

func (t *Tool) Description() string {
	return "Execute a shell command and return its combined stdout and stderr."
}

func (t *Tool) Schema() json.RawMessage { return schema }

type execArgs struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Execute runs the command under /bin/sh with a deadline. Failures are
// reported as errors so the loop can surface them to the model.
func (t *Tool) Execute(ctx context.Context, arguments string) (string, error) {
	var args execArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %v", err)
	}
	if strings.TrimSpace(args.Command) == "" {
		return "", errors.New("command is required")
	}

	timeout := t.cfg.Timeout
	if args.TimeoutSeconds > 0 {
		timeout = time.Duration(args.TimeoutSeconds) * time.Second
	}
	if timeout > maxTimeout {
		timeout = maxTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", args.Command)
	cmd.Dir = t.cfg.WorkDir

	start := time.Now()
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	text := truncate(string(output), t.cfg.MaxOutputBytes)

	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s\npartial output:\n%s", timeout, text)
	}
	if err != nil {
		return "", fmt.Errorf("command failed: %v\noutput:\n%s", err, text)
	}

	t.logger.Debug("command completed",
		slog.String("command", args.Command),
		slog.Duration("elapsed", elapsed),
		slog.Int("output_bytes", len(output)))

	if text == "" {
		return "(no output)", nil
	}
	return text, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + fmt.Sprintf("\n... (%d bytes truncated)", len(s)-limit)
}
