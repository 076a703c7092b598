// Package transport defines the handler interfaces and middleware chain for
// the denker HTTP/SSE transport layer.
//
// The transport layer bridges external clients and the agent engine. It
// deserializes incoming requests into the core types defined in pkg/api,
// dispatches them, and streams the resulting loop events back to the client
// as Server-Sent Events.
//
// # Handler Interfaces
//
// Three interfaces define the contract between the transport layer and the
// rest of the runtime:
//
//   - ChatStreamer runs one chat turn and emits its event stream.
//   - ConversationStore persists conversations and message history,
//     implemented by the adapters under pkg/storage.
//   - EventWriter abstracts the outbound stream so handlers can emit
//     events without knowing the wire protocol.
//
// # Middleware
//
// The middleware chain wraps http.Handler with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID), and structured
// logging via log/slog.
package transport
