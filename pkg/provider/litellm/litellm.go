package litellm

import (
	"context"
	"fmt"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/provider"
	"github.com/denker-ai/denker/pkg/provider/openaicompat"
)

// LiteLLMProvider streams chat completions through a LiteLLM proxy. It
// supports model name mapping for multi-provider routing.
type LiteLLMProvider struct {
	cfg    Config
	client *openaicompat.Client
}

var _ provider.Provider = (*LiteLLMProvider)(nil)

// New creates a provider for the given proxy configuration.
func New(cfg Config) (*LiteLLMProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("litellm: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	client := openaicompat.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	client.MetricsLabel = "litellm"

	if len(cfg.ModelMapping) > 0 {
		mapping := cfg.ModelMapping
		client.ModelMapper = func(model string) string {
			if mapped, ok := mapping[model]; ok {
				return mapped
			}
			return model
		}
	}

	return &LiteLLMProvider{cfg: cfg, client: client}, nil
}

// Name identifies the provider in logs and metrics.
func (p *LiteLLMProvider) Name() string { return "litellm" }

// Stream opens a streaming chat completion against the Chat Completions
// endpoint.
func (p *LiteLLMProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	return p.client.Stream(ctx, req)
}

// ListModels reports the models the proxy has available.
func (p *LiteLLMProvider) ListModels(ctx context.Context) ([]api.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// Close releases provider resources.
func (p *LiteLLMProvider) Close() error {
	return p.client.Close()
}
