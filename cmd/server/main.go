// Command server runs the denker agent runtime.
//
// Configuration comes from a YAML file plus DENKER_* environment
// overrides; see pkg/config for the full schema. A minimal invocation
// needs only a reachable backend:
//
//	DENKER_BACKEND_URL=http://localhost:11434 server
//
// The -config flag names an explicit config file and takes precedence
// over the discovery order (DENKER_CONFIG, ./config.yaml,
// /etc/denker/config.yaml).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/denker-ai/denker/pkg/auth"
	"github.com/denker-ai/denker/pkg/auth/apikey"
	authjwt "github.com/denker-ai/denker/pkg/auth/jwt"
	"github.com/denker-ai/denker/pkg/auth/noop"
	"github.com/denker-ai/denker/pkg/chat"
	"github.com/denker-ai/denker/pkg/config"
	"github.com/denker-ai/denker/pkg/debug"
	"github.com/denker-ai/denker/pkg/engine"
	"github.com/denker-ai/denker/pkg/provider"
	"github.com/denker-ai/denker/pkg/provider/litellm"
	"github.com/denker-ai/denker/pkg/provider/ollama"
	"github.com/denker-ai/denker/pkg/provider/vllm"
	"github.com/denker-ai/denker/pkg/storage/memory"
	"github.com/denker-ai/denker/pkg/storage/postgres"
	"github.com/denker-ai/denker/pkg/storage/sqlite"
	"github.com/denker-ai/denker/pkg/tools"
	"github.com/denker-ai/denker/pkg/tools/builtins/exec"
	"github.com/denker-ai/denker/pkg/tools/builtins/files"
	"github.com/denker-ai/denker/pkg/tools/builtins/websearch"
	"github.com/denker-ai/denker/pkg/tools/mcp"
	"github.com/denker-ai/denker/pkg/transport"
	transporthttp "github.com/denker-ai/denker/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	debug.Init(cfg.Debug.Categories, cfg.Debug.Level)

	ctx := context.Background()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	prov, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	registry, mcpClients, err := buildTools(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating tools: %w", err)
	}
	defer func() {
		for _, c := range mcpClients {
			if cerr := c.Close(); cerr != nil {
				slog.Warn("closing MCP client", "server", c.Name(), "error", cerr)
			}
		}
	}()
	defer registry.Close()

	eng, err := engine.New(prov, registry, engine.Config{
		Model:         cfg.Engine.Model,
		MaxIterations: cfg.Engine.MaxIterations,
		SystemPrompt:  cfg.Engine.SystemPrompt,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	handler := chat.NewHandler(eng, store)

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithStore(store),
		transporthttp.WithModelLister(prov),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetrics())
	}
	authMW, err := buildAuth(cfg)
	if err != nil {
		return fmt.Errorf("creating auth: %w", err)
	}
	if authMW != nil {
		opts = append(opts, transporthttp.WithHTTPMiddleware(authMW))
	}

	srv := transporthttp.NewServer(handler, opts...)

	slog.Info("server starting",
		"port", cfg.Server.Port,
		"provider", cfg.Engine.Provider,
		"backend", cfg.Engine.BackendURL,
		"model", cfg.Engine.Model,
		"storage", cfg.Storage.Type,
		"tools", registry.Names(),
		"auth", cfg.Auth.Type)

	return srv.ListenAndServe(ctx)
}

// buildStore creates the conversation store the config selects.
func buildStore(ctx context.Context, cfg *config.Config) (transport.ConversationStore, error) {
	switch cfg.Storage.Type {
	case "memory":
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil

	case "sqlite":
		slog.Info("storage enabled", "type", "sqlite", "path", cfg.Storage.Path)
		return sqlite.New(ctx, cfg.Storage.Path)

	case "postgres":
		slog.Info("storage enabled", "type", "postgres")
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// buildProvider creates the backend provider the config selects.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Engine.Provider {
	case "ollama", "":
		return ollama.New(ollama.Config{
			BaseURL: cfg.Engine.BackendURL,
			Timeout: cfg.Engine.Timeout,
		})

	case "vllm":
		return vllm.New(vllm.Config{
			BaseURL: cfg.Engine.BackendURL,
			APIKey:  cfg.Engine.APIKey,
			Timeout: cfg.Engine.Timeout,
		})

	case "litellm":
		return litellm.New(litellm.Config{
			BaseURL: cfg.Engine.BackendURL,
			APIKey:  cfg.Engine.APIKey,
			Timeout: cfg.Engine.Timeout,
		})

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Engine.Provider)
	}
}

// buildTools assembles the tool registry from the enabled builtins and
// any configured MCP servers. The returned clients stay open for the
// server's lifetime; callers close them on shutdown.
func buildTools(ctx context.Context, cfg *config.Config) (*tools.Registry, []*mcp.Client, error) {
	registry := tools.NewRegistry(slog.Default())

	if cfg.Tools.Exec.Enabled {
		t := exec.New(exec.Config{
			WorkDir:        cfg.Tools.Workspace,
			Timeout:        cfg.Tools.Exec.Timeout,
			MaxOutputBytes: cfg.Tools.Exec.MaxOutputBytes,
		}, slog.Default())
		if err := registry.Register(t); err != nil {
			return nil, nil, err
		}
	}

	if cfg.Tools.Files.Enabled {
		fileTools, err := files.New(files.Config{
			Root:         cfg.Tools.Workspace,
			MaxReadBytes: cfg.Tools.Files.MaxReadBytes,
		})
		if err != nil {
			return nil, nil, err
		}
		for _, t := range fileTools {
			if err := registry.Register(t); err != nil {
				return nil, nil, err
			}
		}
	}

	if cfg.Tools.WebSearch.Enabled {
		t, err := websearch.New(websearch.Config{
			URL:        cfg.Tools.WebSearch.URL,
			MaxResults: cfg.Tools.WebSearch.MaxResults,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := registry.Register(t); err != nil {
			return nil, nil, err
		}
	}

	var clients []*mcp.Client
	for _, serverCfg := range cfg.MCP.Servers {
		client := mcp.NewClient(mcp.ServerConfig{
			Name:      serverCfg.Name,
			Transport: serverCfg.Transport,
			URL:       serverCfg.URL,
			Headers:   serverCfg.Headers,
			Auth: mcp.AuthConfig{
				Type:         serverCfg.Auth.Type,
				TokenURL:     serverCfg.Auth.TokenURL,
				ClientID:     serverCfg.Auth.ClientID,
				ClientSecret: serverCfg.Auth.ClientSecret,
				Scopes:       serverCfg.Auth.Scopes,
			},
		})

		if err := client.Connect(ctx); err != nil {
			closeClients(clients)
			return nil, nil, err
		}
		clients = append(clients, client)

		discovered, err := client.Tools(ctx)
		if err != nil {
			closeClients(clients)
			return nil, nil, err
		}
		for _, t := range discovered {
			if err := registry.Register(t); err != nil {
				closeClients(clients)
				return nil, nil, err
			}
		}
		slog.Info("MCP server connected", "server", serverCfg.Name, "tools", len(discovered))
	}

	return registry, clients, nil
}

func closeClients(clients []*mcp.Client) {
	for _, c := range clients {
		c.Close()
	}
}

// buildAuth builds the authentication middleware, or returns nil when
// auth is disabled and no rate limit is configured.
func buildAuth(cfg *config.Config) (func(http.Handler) http.Handler, error) {
	chain := &auth.Chain{}

	switch cfg.Auth.Type {
	case "none", "":
		if !cfg.Auth.RateLimit.Enabled {
			return nil, nil
		}
		chain.Authenticators = append(chain.Authenticators, &noop.Authenticator{})

	case "apikey":
		specs := make([]apikey.KeySpec, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			specs = append(specs, apikey.KeySpec{
				Key:         k.Key,
				Subject:     k.Subject,
				ServiceTier: k.ServiceTier,
			})
		}
		chain.Authenticators = append(chain.Authenticators, apikey.New(specs))

	case "jwt":
		a, err := authjwt.New(authjwt.Config{
			Secret:   cfg.Auth.JWT.Secret,
			JWKSURL:  cfg.Auth.JWT.JWKSURL,
			Issuer:   cfg.Auth.JWT.Issuer,
			Audience: cfg.Auth.JWT.Audience,
		})
		if err != nil {
			return nil, err
		}
		chain.Authenticators = append(chain.Authenticators, a)

	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Auth.Type)
	}

	var limiter auth.RateLimiter
	if cfg.Auth.RateLimit.Enabled {
		tiers := make(map[string]auth.TierConfig, len(cfg.Auth.RateLimit.Tiers))
		for tier, rpm := range cfg.Auth.RateLimit.Tiers {
			tiers[tier] = auth.TierConfig{RequestsPerMinute: rpm}
		}
		limiter = auth.NewInProcessLimiter(tiers, cfg.Auth.RateLimit.DefaultRPM)
	}

	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}
