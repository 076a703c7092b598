// Command mcp-test-server runs a small MCP server for exercising the
// denker MCP client end to end. It exposes three tools over streamable
// HTTP on /mcp:
//
//	"echo" - returns the message it was given
//	"add"  - adds two numbers, exercising schema-typed arguments
//	"fail" - always returns a tool-level error (IsError result)
//
// Configuration:
//
//	MCP_PORT - Listen port (default: 9091)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type echoInput struct {
	Message string `json:"message" jsonschema_description:"The message to echo back"`
}

type addInput struct {
	A float64 `json:"a" jsonschema_description:"First addend"`
	B float64 `json:"b" jsonschema_description:"Second addend"`
}

type failInput struct {
	Reason string `json:"reason,omitempty" jsonschema_description:"Reason to report in the failure"`
}

func main() {
	port := os.Getenv("MCP_PORT")
	if port == "" {
		port = "9091"
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "denker-test-mcp", Version: "v1.0.0"},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input echoInput) (*mcp.CallToolResult, struct{}, error) {
		return textResult(fmt.Sprintf("Echo: %s", input.Message)), struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add",
		Description: "Adds two numbers",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input addInput) (*mcp.CallToolResult, struct{}, error) {
		return textResult(fmt.Sprintf("%g", input.A+input.B)), struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "fail",
		Description: "Always fails, for exercising tool error handling",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input failInput) (*mcp.CallToolResult, struct{}, error) {
		reason := input.Reason
		if reason == "" {
			reason = "requested failure"
		}
		result := textResult(reason)
		result.IsError = true
		return result, struct{}{}, nil
	})

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mcp test server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mcp test server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mcp test server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
