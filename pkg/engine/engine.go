package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/provider"
)

// ToolRegistry is the capability the loop uses to advertise and dispatch
// tools. Implementations must be safe for concurrent use.
type ToolRegistry interface {
	// List returns the tool catalogue offered to the model.
	List() []api.ToolDefinition

	// Execute runs the named tool with its canonical JSON arguments and
	// returns the result text.
	Execute(ctx context.Context, name, arguments string) (string, error)
}

// Engine runs agentic loops against one provider and one tool registry.
// It is safe for concurrent use; each run owns its own conversation state.
type Engine struct {
	provider provider.Provider
	registry ToolRegistry
	cfg      Config
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for loop diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine. The provider is required; a nil registry means
// no tools are offered to the model.
func New(p provider.Provider, registry ToolRegistry, cfg Config, opts ...Option) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider is required")
	}

	e := &Engine{
		provider: p,
		registry: registry,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}
