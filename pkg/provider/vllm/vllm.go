package vllm

import (
	"context"
	"fmt"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/provider"
	"github.com/denker-ai/denker/pkg/provider/openaicompat"
)

// VLLMProvider streams chat completions from a vLLM server.
type VLLMProvider struct {
	cfg    Config
	client *openaicompat.Client
}

var _ provider.Provider = (*VLLMProvider)(nil)

// New creates a provider for the given backend configuration.
func New(cfg Config) (*VLLMProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("vllm: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	client := openaicompat.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	client.MetricsLabel = "vllm"

	return &VLLMProvider{cfg: cfg, client: client}, nil
}

// Name identifies the provider in logs and metrics.
func (p *VLLMProvider) Name() string { return "vllm" }

// Stream opens a streaming chat completion against the Chat Completions
// endpoint.
func (p *VLLMProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	return p.client.Stream(ctx, req)
}

// ListModels reports the models the backend has available.
func (p *VLLMProvider) ListModels(ctx context.Context) ([]api.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// Close releases provider resources.
func (p *VLLMProvider) Close() error {
	return p.client.Close()
}
