package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// setupTestServer runs an in-memory MCP server with the given tools and
// returns a connected client.
func setupTestServer(t *testing.T, serverTools map[string]mcp.ToolHandler) *Client {
	t.Helper()

	server := mcp.NewServer(
		&mcp.Implementation{Name: "test-server", Version: "1.0.0"},
		nil,
	)
	for name, handler := range serverTools {
		server.AddTool(
			&mcp.Tool{
				Name:        name,
				Description: "Test tool: " + name,
				InputSchema: map[string]any{"type": "object"},
			},
			handler,
		)
	}

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx := context.Background()
	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := NewClient(ServerConfig{Name: "test-server"})
	if err := client.ConnectWithTransport(ctx, clientTransport); err != nil {
		t.Fatalf("ConnectWithTransport failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestToolsDiscovery(t *testing.T) {
	client := setupTestServer(t, map[string]mcp.ToolHandler{
		"get_weather": func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "sunny"}}}, nil
		},
		"get_time": func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "12:00"}}}, nil
		},
	})

	discovered, err := client.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools() error: %v", err)
	}
	if len(discovered) != 2 {
		t.Fatalf("got %d tools, want 2", len(discovered))
	}

	var names []string
	for _, tool := range discovered {
		names = append(names, tool.Name())
		if len(tool.Schema()) == 0 {
			t.Errorf("tool %q has empty schema", tool.Name())
		}
		if !strings.HasPrefix(tool.Description(), "Test tool:") {
			t.Errorf("tool %q description = %q", tool.Name(), tool.Description())
		}
	}
	sort.Strings(names)
	if names[0] != "get_time" || names[1] != "get_weather" {
		t.Errorf("tool names = %v", names)
	}
}

func TestServerToolExecute(t *testing.T) {
	client := setupTestServer(t, map[string]mcp.ToolHandler{
		"echo": func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return nil, err
			}
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "echo: " + args.Text}}}, nil
		},
	})

	discovered, err := client.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools() error: %v", err)
	}

	result, err := discovered[0].Execute(context.Background(), `{"text":"hi"}`)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result != "echo: hi" {
		t.Errorf("result = %q, want %q", result, "echo: hi")
	}
}

func TestServerToolErrorResult(t *testing.T) {
	client := setupTestServer(t, map[string]mcp.ToolHandler{
		"fail": func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: "backend exploded"}},
			}, nil
		},
	})

	discovered, err := client.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools() error: %v", err)
	}

	_, err = discovered[0].Execute(context.Background(), "{}")
	if err == nil {
		t.Fatal("Execute of erroring tool succeeded, want error")
	}
	if !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("error = %v, want the server's message", err)
	}
}

func TestToolsRequiresConnection(t *testing.T) {
	client := NewClient(ServerConfig{Name: "unconnected"})
	if _, err := client.Tools(context.Background()); err == nil {
		t.Error("Tools() on unconnected client succeeded, want error")
	}
}

func TestCreateTransportRejectsUnknown(t *testing.T) {
	client := NewClient(ServerConfig{Name: "x", Transport: "carrier-pigeon", URL: "http://localhost"})
	if err := client.Connect(context.Background()); err == nil {
		t.Error("Connect with unknown transport succeeded, want error")
	}
}

func TestOAuthTokenCaching(t *testing.T) {
	var tokenCalls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.Form.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, tokenCalls)
	}))
	t.Cleanup(ts.Close)

	auth := NewOAuthClientCredentials(ts.URL, "client", "secret", []string{"mcp"})

	h1, err := auth.GetHeaders(context.Background())
	if err != nil {
		t.Fatalf("GetHeaders error: %v", err)
	}
	if h1["Authorization"] != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", h1["Authorization"])
	}

	// Within the refresh window the cached token is reused.
	h2, err := auth.GetHeaders(context.Background())
	if err != nil {
		t.Fatalf("second GetHeaders error: %v", err)
	}
	if h2["Authorization"] != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want cached token", h2["Authorization"])
	}
	if tokenCalls != 1 {
		t.Errorf("token endpoint called %d times, want 1", tokenCalls)
	}
}

func TestOAuthProactiveRefresh(t *testing.T) {
	var tokenCalls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":100}`, tokenCalls)
	}))
	t.Cleanup(ts.Close)

	auth := NewOAuthClientCredentials(ts.URL, "client", "secret", nil)

	now := time.Now()
	auth.nowFunc = func() time.Time { return now }

	if _, err := auth.GetHeaders(context.Background()); err != nil {
		t.Fatalf("GetHeaders error: %v", err)
	}

	// Past 80% of the lifetime a new token is fetched.
	now = now.Add(85 * time.Second)
	h, err := auth.GetHeaders(context.Background())
	if err != nil {
		t.Fatalf("GetHeaders after expiry window error: %v", err)
	}
	if h["Authorization"] != "Bearer tok-2" {
		t.Errorf("Authorization = %q, want refreshed token", h["Authorization"])
	}
}

func TestOAuthFallsBackToValidCachedToken(t *testing.T) {
	var tokenCalls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		if tokenCalls > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-1","token_type":"Bearer","expires_in":100}`)
	}))
	t.Cleanup(ts.Close)

	auth := NewOAuthClientCredentials(ts.URL, "client", "secret", nil)

	now := time.Now()
	auth.nowFunc = func() time.Time { return now }

	if _, err := auth.GetHeaders(context.Background()); err != nil {
		t.Fatalf("GetHeaders error: %v", err)
	}

	// Refresh fails but the token itself is still valid for 15s.
	now = now.Add(85 * time.Second)
	h, err := auth.GetHeaders(context.Background())
	if err != nil {
		t.Fatalf("GetHeaders with failing refresh error: %v", err)
	}
	if h["Authorization"] != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want cached token kept", h["Authorization"])
	}

	// Once the token has fully expired the failure propagates.
	now = now.Add(30 * time.Second)
	if _, err := auth.GetHeaders(context.Background()); err == nil {
		t.Error("GetHeaders after expiry succeeded, want error")
	}
}

func TestAuthTransportAppliesHeaders(t *testing.T) {
	var gotHeaders http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
	}))
	t.Cleanup(ts.Close)

	client := &http.Client{
		Transport: &authTransport{
			base:    http.DefaultTransport,
			headers: map[string]string{"X-Api-Key": "k123"},
			provider: staticProvider{
				"Authorization": "Bearer dynamic",
			},
		},
	}

	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()

	if gotHeaders.Get("X-Api-Key") != "k123" {
		t.Errorf("X-Api-Key = %q, want k123", gotHeaders.Get("X-Api-Key"))
	}
	if gotHeaders.Get("Authorization") != "Bearer dynamic" {
		t.Errorf("Authorization = %q, want provider header", gotHeaders.Get("Authorization"))
	}
}

type staticProvider map[string]string

func (p staticProvider) GetHeaders(ctx context.Context) (map[string]string, error) {
	return p, nil
}
