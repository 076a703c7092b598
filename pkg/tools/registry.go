package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/engine"
)

// Registry holds the tools offered to the agent loop. Schemas are compiled
// at registration time so malformed tools fail at startup and arguments
// can be validated before dispatch.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registeredTool
	order   []string
	logger  *slog.Logger
}

type registeredTool struct {
	tool   Tool
	schema *jsonschema.Schema
}

var _ engine.ToolRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*registeredTool),
		logger:  logger,
	}
}

// Register adds a tool. The schema must be a compilable JSON Schema. Tool
// names are resolved first-come, first-served: a second registration under
// an existing name is skipped with a warning.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tools: tool has empty name")
	}

	var schema *jsonschema.Schema
	if raw := tool.Schema(); len(raw) > 0 {
		compiled, err := jsonschema.CompileString(name+".schema.json", string(raw))
		if err != nil {
			return fmt.Errorf("tools: compiling schema for %q: %w", name, err)
		}
		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		r.logger.Warn("tool name conflict, keeping first registration",
			slog.String("tool", name))
		return nil
	}
	r.entries[name] = &registeredTool{tool: tool, schema: schema}
	r.order = append(r.order, name)

	r.logger.Info("registered tool", slog.String("tool", name))
	return nil
}

// List returns the tool catalogue in registration order.
func (r *Registry) List() []api.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]api.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		entry := r.entries[name]
		defs = append(defs, api.ToolDefinition{
			Name:        name,
			Description: entry.tool.Description(),
			Parameters:  entry.tool.Schema(),
		})
	}
	return defs
}

// Execute validates the arguments against the tool's schema and dispatches
// the call. A panicking tool is converted into an error return.
func (r *Registry) Execute(ctx context.Context, name, arguments string) (result string, err error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	if entry.schema != nil {
		var decoded any
		if uerr := json.Unmarshal([]byte(arguments), &decoded); uerr != nil {
			return "", fmt.Errorf("tool %s: arguments are not valid JSON: %v", name, uerr)
		}
		if verr := entry.schema.Validate(decoded); verr != nil {
			return "", fmt.Errorf("tool %s: invalid arguments: %v", name, verr)
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				slog.String("tool", name),
				slog.Any("panic", rec))
			result = ""
			err = fmt.Errorf("tool %s panicked: %v", name, rec)
		}
	}()

	return entry.tool.Execute(ctx, arguments)
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Close closes every registered tool that holds resources, returning the
// last error encountered.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, name := range r.order {
		closer, ok := r.entries[name].tool.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			r.logger.Warn("failed to close tool", slog.String("tool", name), slog.String("error", err.Error()))
			lastErr = err
		}
	}
	return lastErr
}
