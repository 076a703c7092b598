package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/denker-ai/denker/pkg/api"
)

func TestHealthEndpoint(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/healthz")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var health map[string]string
	decodeJSON(t, resp, &health)
	if health["status"] != "ok" {
		t.Errorf("status = %q, want %q", health["status"], "ok")
	}
}

func TestListModels(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/api/models")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var models struct {
		Models []api.ModelInfo `json:"models"`
	}
	decodeJSON(t, resp, &models)

	if len(models.Models) != 1 {
		t.Fatalf("model count = %d, want 1", len(models.Models))
	}
	if models.Models[0].Name != "mock-model" {
		t.Errorf("model name = %q, want %q", models.Models[0].Name, "mock-model")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	// Run one chat first so the counters have something to show.
	streamChat(t, api.ChatRequest{Message: "Say hello"})

	resp := getURL(t, testEnv.BaseURL()+"/metrics")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := readBody(t, resp)
	if !strings.Contains(body, "denker_") {
		t.Error("metrics output has no denker_ series")
	}
	if !strings.Contains(body, "denker_provider_tokens_total") {
		t.Error("metrics output missing denker_provider_tokens_total")
	}
}

func TestRequestIDHeaderEcho(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, testEnv.BaseURL()+"/healthz", nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("X-Request-ID", "req-integration-42")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "req-integration-42" {
		t.Errorf("X-Request-ID = %q, want the incoming value echoed back", got)
	}
}
