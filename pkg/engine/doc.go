// Package engine drives the agentic loop: it streams provider turns,
// forwards thinking and text deltas to the caller, dispatches tool calls
// through a registry, folds tool results back into the conversation, and
// bounds the number of turns.
//
// A run produces a channel of api.LoopEvent values. The last event on
// every completed run is done, preceded by at most one error event. The
// caller's message slice is never modified; the loop works on its own
// copy of the conversation.
package engine
