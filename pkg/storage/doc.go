// Package storage provides utilities shared across storage adapter
// implementations, currently the sentinel errors they return.
//
// Storage adapters (memory, sqlite, postgres) implement the
// transport.ConversationStore interface defined in pkg/transport/handler.go.
// This package contains only shared types, not the interface itself.
package storage
