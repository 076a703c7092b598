// Package config provides unified configuration for the denker runtime.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (DENKER_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the denker runtime.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Storage       StorageConfig       `yaml:"storage"`
	Tools         ToolsConfig         `yaml:"tools"`
	MCP           MCPConfig           `yaml:"mcp"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Debug         DebugConfig         `yaml:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int           `yaml:"port"`                // default: 8080
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"` // default: 10s
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`    // default: 30s
	MaxBodySize       int64         `yaml:"max_body_size"`       // default: 10MiB
}

// EngineConfig holds inference backend and loop settings.
type EngineConfig struct {
	Provider      string        `yaml:"provider"`       // "ollama", "vllm" or "litellm", default: "ollama"
	BackendURL    string        `yaml:"backend_url"`    // default: http://localhost:11434
	APIKey        string        `yaml:"api_key"`        // optional, for vllm/litellm backends
	APIKeyFile    string        `yaml:"api_key_file"`   // _file variant for api_key
	Model         string        `yaml:"model"`          // default model when a request omits one
	SystemPrompt  string        `yaml:"system_prompt"`  // optional
	MaxIterations int           `yaml:"max_iterations"` // default: 10
	Timeout       time.Duration `yaml:"timeout"`        // per-request HTTP timeout, default: 120s
}

// StorageConfig holds conversation persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory", "sqlite" or "postgres", default: "sqlite"
	Path     string         `yaml:"path"`     // SQLite database file, default: "denker.db"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// ToolsConfig holds built-in tool settings.
type ToolsConfig struct {
	Workspace string          `yaml:"workspace"` // root for exec and file tools, default: "."
	Exec      ExecToolConfig  `yaml:"exec"`
	Files     FilesToolConfig `yaml:"files"`
	WebSearch SearchConfig    `yaml:"web_search"`
}

// ExecToolConfig adjusts the shell command tool.
type ExecToolConfig struct {
	Enabled        bool          `yaml:"enabled"`          // default: true
	Timeout        time.Duration `yaml:"timeout"`          // default: 60s
	MaxOutputBytes int           `yaml:"max_output_bytes"` // default: 64KiB
}

// FilesToolConfig adjusts the read_file/write_file tools.
type FilesToolConfig struct {
	Enabled      bool `yaml:"enabled"`        // default: true
	MaxReadBytes int  `yaml:"max_read_bytes"` // default: 200KiB
}

// SearchConfig adjusts the web_search tool.
type SearchConfig struct {
	Enabled    bool   `yaml:"enabled"`     // default: false
	URL        string `yaml:"url"`         // SearXNG endpoint, required when enabled
	MaxResults int    `yaml:"max_results"` // default: 5
}

// MCPConfig holds MCP (Model Context Protocol) server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "sse" or "streamable-http"
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Auth      MCPAuthConfig     `yaml:"auth"`
}

// MCPAuthConfig configures dynamic authentication against an MCP server.
type MCPAuthConfig struct {
	Type             string   `yaml:"type"` // "" or "oauth_client_credentials"
	TokenURL         string   `yaml:"token_url"`
	ClientID         string   `yaml:"client_id"`
	ClientIDFile     string   `yaml:"client_id_file"`     // _file variant for client_id
	ClientSecret     string   `yaml:"client_secret"`
	ClientSecretFile string   `yaml:"client_secret_file"` // _file variant for client_secret
	Scopes           []string `yaml:"scopes"`
}

// AuthConfig holds authentication settings for the HTTP surface.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey" or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	KeyFile     string `yaml:"key_file"` // _file variant for key
	Subject     string `yaml:"subject"`
	ServiceTier string `yaml:"service_tier"`
}

// JWTConfig holds JWT validation settings. Exactly one of secret and
// jwks_url must be set when auth.type is "jwt".
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	JWKSURL    string `yaml:"jwks_url"`
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
}

// RateLimitConfig holds per-identity request budgets.
type RateLimitConfig struct {
	Enabled    bool           `yaml:"enabled"`     // default: false
	DefaultRPM int            `yaml:"default_rpm"` // default: 60
	Tiers      map[string]int `yaml:"tiers"`       // service tier -> requests per minute
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// DebugConfig holds debug logging settings. Environment variables
// DENKER_DEBUG and DENKER_LOG_LEVEL take precedence over these.
type DebugConfig struct {
	Categories string `yaml:"categories"` // e.g. "providers,engine"
	Level      string `yaml:"level"`      // ERROR, WARN, INFO, DEBUG or TRACE, default: INFO
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			MaxBodySize:       10 << 20,
		},
		Engine: EngineConfig{
			Provider:      "ollama",
			BackendURL:    "http://localhost:11434",
			MaxIterations: 10,
			Timeout:       120 * time.Second,
		},
		Storage: StorageConfig{
			Type:    "sqlite",
			Path:    "denker.db",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Tools: ToolsConfig{
			Workspace: ".",
			Exec: ExecToolConfig{
				Enabled:        true,
				Timeout:        60 * time.Second,
				MaxOutputBytes: 64 * 1024,
			},
			Files: FilesToolConfig{
				Enabled:      true,
				MaxReadBytes: 200 * 1024,
			},
			WebSearch: SearchConfig{
				MaxResults: 5,
			},
		},
		Auth: AuthConfig{
			Type: "none",
			RateLimit: RateLimitConfig{
				DefaultRPM: 60,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
