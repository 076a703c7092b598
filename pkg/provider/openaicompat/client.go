package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/provider"
)

// Client speaks the OpenAI-compatible Chat Completions API. Provider
// adapters hold a Client and delegate their Stream and ListModels calls
// to it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	// streamClient carries no timeout: a streaming response lives as long
	// as its context, not a fixed deadline.
	streamClient *http.Client

	// ModelMapper optionally rewrites the model name before dispatch. Nil
	// passes names through unchanged.
	ModelMapper func(string) string

	// MetricsLabel names the adapter in token metrics. Empty selects
	// "openai-compat".
	MetricsLabel string
}

// NewClient creates a client for an OpenAI-compatible backend. A zero
// timeout selects 120s for non-streaming calls.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		baseURL:      baseURL,
		apiKey:       apiKey,
	}
}

// Stream opens a streaming chat completion against /v1/chat/completions.
// The returned channel carries content and tool-call events and closes
// when the turn completes, errors, or ctx is canceled. A non-success HTTP
// status is reported as an error return with no channel, so callers never
// see a half-started stream.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	chatReq := TranslateRequest(req)
	if c.ModelMapper != nil {
		chatReq.Model = c.ModelMapper(chatReq.Model)
	}

	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("encoding chat request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("building chat request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, MapHTTPError(resp)
	}

	label := c.MetricsLabel
	if label == "" {
		label = "openai-compat"
	}

	ch := make(chan provider.Event, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		parseSSEStream(ctx, resp.Body, label, ch)
	}()

	return ch, nil
}

// ListModels reports the models the backend has available via /v1/models.
func (c *Client) ListModels(ctx context.Context) ([]api.ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("building models request: %v", err))
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, MapHTTPError(resp)
	}

	var modelsResp ChatModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, api.NewBackendError(fmt.Sprintf("decoding models response: %v", err))
	}

	models := make([]api.ModelInfo, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		info := api.ModelInfo{Name: m.ID}
		if m.Created > 0 {
			info.ModifiedAt = time.Unix(m.Created, 0).UTC()
		}
		models = append(models, info)
	}
	return models, nil
}

// Close releases idle connections held by the HTTP clients.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	c.streamClient.CloseIdleConnections()
	return nil
}
