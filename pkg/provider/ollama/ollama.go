package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/provider"
)

// OllamaProvider streams chat completions from an Ollama server.
type OllamaProvider struct {
	cfg    Config
	client *http.Client

	// streamClient carries no timeout: a streaming response lives as long
	// as its context, not a fixed deadline.
	streamClient *http.Client
}

var _ provider.Provider = (*OllamaProvider)(nil)

// New creates a provider for the given backend configuration.
func New(cfg Config) (*OllamaProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama: base URL is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &OllamaProvider{
		cfg:          cfg,
		client:       &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
	}, nil
}

// Name identifies the provider in logs and metrics.
func (p *OllamaProvider) Name() string { return "ollama" }

// Stream opens a streaming chat completion. The returned channel carries
// content and tool-call events and closes when the turn completes, errors,
// or ctx is canceled. A non-success HTTP status is reported as an error
// return with no channel, so callers never see a half-started stream.
func (p *OllamaProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	payload, err := json.Marshal(translateRequest(req))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("encoding chat request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("building chat request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := p.streamClient.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, mapHTTPError(resp)
	}

	ch := make(chan provider.Event, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		streamTurn(ctx, resp.Body, ch)
	}()

	return ch, nil
}

// ListModels reports the models the backend has available.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]api.ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("building tags request: %v", err))
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, api.NewBackendError(fmt.Sprintf("decoding tags response: %v", err))
	}

	models := make([]api.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, api.ModelInfo{
			Name:       m.Name,
			Size:       m.Size,
			ModifiedAt: m.ModifiedAt,
		})
	}
	return models, nil
}

// Close releases idle connections held by the HTTP clients.
func (p *OllamaProvider) Close() error {
	p.client.CloseIdleConnections()
	p.streamClient.CloseIdleConnections()
	return nil
}
