// Package vllm implements the Provider interface for vLLM and any other
// OpenAI-compatible Chat Completions backend. All HTTP communication is
// delegated to the shared openaicompat.Client, which handles SSE chunk
// streaming, tool-call argument buffering and think-tag splitting.
package vllm
