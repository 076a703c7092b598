// Package openaicompat provides shared streaming code for any
// OpenAI-compatible Chat Completions backend. It handles request
// serialization, SSE chunk parsing, tool-call argument buffering across
// chunks, think-tag splitting of content deltas, and error mapping.
//
// Provider adapters (vLLM, LiteLLM) hold the Client from this package and
// delegate their Stream/ListModels calls to it.
package openaicompat
