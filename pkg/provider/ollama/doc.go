// Package ollama implements provider.Provider against an Ollama chat
// backend. It speaks the newline-delimited JSON streaming protocol of
// POST /api/chat and separates <think>-tagged reasoning from visible text
// while the stream is in flight.
package ollama
