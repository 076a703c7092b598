package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// engine.backend_url is required.
	if c.Engine.BackendURL == "" {
		errs = append(errs, fmt.Errorf("engine.backend_url is required"))
	}

	// engine.provider must be a known value if set.
	switch c.Engine.Provider {
	case "ollama", "vllm", "litellm", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("engine.provider must be \"ollama\", \"vllm\" or \"litellm\", got %q", c.Engine.Provider))
	}

	// engine.max_iterations must not be negative; zero means the default.
	if c.Engine.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("engine.max_iterations must be >= 0, got %d", c.Engine.MaxIterations))
	}

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "sqlite", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"sqlite\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "sqlite", a database path must be set.
	if c.Storage.Type == "sqlite" && c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required when storage.type is \"sqlite\""))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// tools.web_search requires a SearXNG URL when enabled.
	if c.Tools.WebSearch.Enabled && c.Tools.WebSearch.URL == "" {
		errs = append(errs, fmt.Errorf("tools.web_search.url is required when tools.web_search.enabled is true"))
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	// auth.type=jwt needs exactly one key source.
	if c.Auth.Type == "jwt" {
		hasSecret := c.Auth.JWT.Secret != "" || c.Auth.JWT.SecretFile != ""
		hasJWKS := c.Auth.JWT.JWKSURL != ""
		if hasSecret == hasJWKS {
			errs = append(errs, fmt.Errorf("auth.jwt requires exactly one of secret and jwks_url when auth.type is \"jwt\""))
		}
	}

	// mcp.servers entries need a name and a URL.
	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name is required", i))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
		switch s.Transport {
		case "", "sse", "streamable-http":
			// valid
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].transport must be \"sse\" or \"streamable-http\", got %q", i, s.Transport))
		}
	}

	return errors.Join(errs...)
}
