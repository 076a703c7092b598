package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/denker-ai/denker/pkg/tools"
)

// Client is one connection to an MCP server. Its discovered tools plug
// into the registry as ordinary tools.Tool values; the client itself owns
// the session and must be closed on shutdown.
type Client struct {
	cfg     ServerConfig
	client  *mcp.Client
	session *mcp.ClientSession
}

// NewClient creates a client for the given server. Call Connect before
// discovering tools.
func NewClient(cfg ServerConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect establishes the MCP session, performing the protocol handshake.
func (c *Client) Connect(ctx context.Context) error {
	return c.ConnectWithTransport(ctx, nil)
}

// ConnectWithTransport establishes the session over the given transport; a
// nil transport is built from the server configuration.
func (c *Client) ConnectWithTransport(ctx context.Context, transport mcp.Transport) error {
	c.client = mcp.NewClient(
		&mcp.Implementation{
			Name:    "denker",
			Version: "1.0.0",
		},
		&mcp.ClientOptions{
			Capabilities: &mcp.ClientCapabilities{},
		},
	)

	if transport == nil {
		t, err := c.createTransport()
		if err != nil {
			return fmt.Errorf("creating transport for %q: %w", c.cfg.Name, err)
		}
		transport = t
	}

	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connecting to MCP server %q: %w", c.cfg.Name, err)
	}
	c.session = session
	return nil
}

func (c *Client) createTransport() (mcp.Transport, error) {
	httpClient := c.buildHTTPClient()

	switch c.cfg.Transport {
	case "sse":
		transport := &mcp.SSEClientTransport{Endpoint: c.cfg.URL}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	case "streamable-http", "":
		transport := &mcp.StreamableClientTransport{Endpoint: c.cfg.URL}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.cfg.Transport)
	}
}

// buildHTTPClient returns nil when no headers or auth are configured, so
// the SDK uses its default client.
func (c *Client) buildHTTPClient() *http.Client {
	var provider AuthProvider
	if c.cfg.Auth.Type == "oauth_client_credentials" {
		provider = NewOAuthClientCredentials(
			c.cfg.Auth.TokenURL,
			c.cfg.Auth.ClientID,
			c.cfg.Auth.ClientSecret,
			c.cfg.Auth.Scopes,
		)
	}

	if len(c.cfg.Headers) == 0 && provider == nil {
		return nil
	}
	return &http.Client{
		Transport: &authTransport{
			base:     http.DefaultTransport,
			headers:  c.cfg.Headers,
			provider: provider,
		},
	}
}

// Tools discovers the server's tools and wraps each as a registry-ready
// tools.Tool.
func (c *Client) Tools(ctx context.Context) ([]tools.Tool, error) {
	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	var discovered []tools.Tool
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", c.cfg.Name, err)
		}

		var schema json.RawMessage
		if tool.InputSchema != nil {
			data, merr := json.Marshal(tool.InputSchema)
			if merr != nil {
				return nil, fmt.Errorf("marshaling schema of %q from %q: %w", tool.Name, c.cfg.Name, merr)
			}
			schema = data
		}

		discovered = append(discovered, &serverTool{
			client:      c,
			name:        tool.Name,
			description: tool.Description,
			schema:      schema,
		})
	}
	return discovered, nil
}

// callTool executes one tool call on the server and flattens the text
// content of the result.
func (c *Client) callTool(ctx context.Context, name, arguments string) (string, error) {
	if c.session == nil {
		return "", fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	var args map[string]any
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments JSON: %v", err)
		}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("MCP tool call failed: %v", err)
	}

	output := flattenContent(result)
	if result.IsError {
		return "", fmt.Errorf("%s", output)
	}
	return output, nil
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.cfg.Name }

// Close closes the MCP session.
func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func flattenContent(result *mcp.CallToolResult) string {
	var output string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			if output != "" {
				output += "\n"
			}
			output += tc.Text
		}
	}
	return output
}

// serverTool adapts one remote MCP tool to the registry's Tool interface.
type serverTool struct {
	client      *Client
	name        string
	description string
	schema      json.RawMessage
}

var _ tools.Tool = (*serverTool)(nil)

func (t *serverTool) Name() string            { return t.name }
func (t *serverTool) Description() string     { return t.description }
func (t *serverTool) Schema() json.RawMessage { return t.schema }

func (t *serverTool) Execute(ctx context.Context, arguments string) (string, error) {
	return t.client.callTool(ctx, t.name, arguments)
}
