package mcp

// Config holds the configuration for all MCP server connections.
type Config struct {
	// Servers is the list of MCP servers to connect to.
	Servers []ServerConfig `yaml:"servers"`
}

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name is the logical name for this server, used in logs and errors.
	Name string `yaml:"name"`

	// Transport selects "sse" or "streamable-http". Empty defaults to
	// "streamable-http".
	Transport string `yaml:"transport"`

	// URL is the MCP server endpoint.
	URL string `yaml:"url"`

	// Headers are sent with every request, typically API keys.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Auth configures dynamic authentication.
	Auth AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig configures how the client authenticates against a server.
type AuthConfig struct {
	// Type selects the mechanism. Empty means none; the only dynamic
	// mechanism is "oauth_client_credentials".
	Type string `yaml:"type,omitempty"`

	// TokenURL, ClientID, ClientSecret and Scopes parameterize the OAuth
	// client-credentials grant.
	TokenURL     string   `yaml:"token_url,omitempty"`
	ClientID     string   `yaml:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
}
