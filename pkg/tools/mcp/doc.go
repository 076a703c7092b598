// Package mcp connects external Model Context Protocol servers to the
// agent loop. Each connected server's tools are exposed as individual
// tools.Tool values suitable for the registry, so MCP tools and builtins
// share one dispatch path.
//
// The package wraps the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk) over the SSE and
// streamable-http transports, with optional static headers or OAuth 2.0
// client-credentials authentication.
package mcp
