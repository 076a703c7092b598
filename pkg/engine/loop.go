package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/observability"
	"github.com/denker-ai/denker/pkg/provider"
)

// Run executes one agentic loop with the engine's configured model and
// system prompt. The returned channel delivers events in production order
// and closes after the terminal done event. Canceling ctx stops the run;
// a canceled run closes the channel without further events.
func (e *Engine) Run(ctx context.Context, messages []api.Message) <-chan api.LoopEvent {
	return e.RunWith(ctx, RunOptions{}, messages)
}

// RunWith is Run with per-run overrides.
func (e *Engine) RunWith(ctx context.Context, opts RunOptions, messages []api.Message) <-chan api.LoopEvent {
	ch := make(chan api.LoopEvent, 16)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("loop panicked", slog.Any("panic", r))
				deliver(ctx, ch, api.ErrorEvent(fmt.Sprintf("internal error: %v", r)))
				deliver(ctx, ch, api.DoneEvent())
			}
		}()
		e.run(ctx, opts, messages, ch)
	}()
	return ch
}

func (e *Engine) run(ctx context.Context, opts RunOptions, messages []api.Message, ch chan<- api.LoopEvent) {
	emit := func(ev api.LoopEvent) bool {
		return deliver(ctx, ch, ev)
	}

	maxIterations := e.cfg.maxIterations()
	if opts.MaxIterations != 0 {
		maxIterations = opts.MaxIterations
	}
	if maxIterations <= 0 {
		emit(api.ErrorEvent("Invalid maxIterations"))
		emit(api.DoneEvent())
		return
	}

	model := e.cfg.Model
	if opts.Model != "" {
		model = opts.Model
	}
	systemPrompt := e.cfg.SystemPrompt
	if opts.SystemPrompt != "" {
		systemPrompt = opts.SystemPrompt
	}

	// The conversation is built on a private slice so the caller's
	// messages stay untouched across the run.
	conversation := make([]api.Message, 0, len(messages)+1)
	if systemPrompt != "" {
		conversation = append(conversation, api.Message{Role: api.RoleSystem, Content: systemPrompt})
	}
	conversation = append(conversation, messages...)

	var tools []api.ToolDefinition
	if e.registry != nil {
		tools = e.registry.List()
	}

	turns := 0
	defer func() {
		observability.LoopIterations.WithLabelValues(model).Observe(float64(turns))
	}()

	for turns < maxIterations {
		turns++

		turnStart := time.Now()
		events, err := e.provider.Stream(ctx, &provider.Request{
			Model:    model,
			Messages: conversation,
			Tools:    tools,
		})
		if err != nil {
			observability.ProviderRequestsTotal.WithLabelValues(e.provider.Name(), model, "error").Inc()
			emit(api.ErrorEvent(api.AsAPIError(err).Message))
			emit(api.DoneEvent())
			return
		}
		observability.ProviderRequestsTotal.WithLabelValues(e.provider.Name(), model, "ok").Inc()

		var (
			accumulated  strings.Builder
			pendingCalls []api.ToolCall
			sawToolCalls bool
			streamErr    error
		)

		// tool_calls and error are terminal per the provider contract; the
		// channel is drained to completion either way so the provider
		// goroutine always winds down.
		for ev := range events {
			if sawToolCalls || streamErr != nil {
				continue
			}
			switch ev.Type {
			case provider.EventThinking:
				if !emit(api.ThinkingEvent(ev.Content)) {
					return
				}
			case provider.EventTextDelta:
				accumulated.WriteString(ev.Content)
				if !emit(api.TextDeltaEvent(ev.Content)) {
					return
				}
			case provider.EventToolCalls:
				sawToolCalls = true
				pendingCalls = ev.Calls
			case provider.EventError:
				streamErr = ev.Err
			}
		}
		observability.ProviderLatency.WithLabelValues(e.provider.Name(), model).Observe(time.Since(turnStart).Seconds())

		if streamErr != nil {
			emit(api.ErrorEvent(api.AsAPIError(streamErr).Message))
			emit(api.DoneEvent())
			return
		}

		if ctx.Err() != nil {
			return
		}

		if !sawToolCalls {
			if accumulated.Len() > 0 {
				if !emit(api.TextEvent(accumulated.String())) {
					return
				}
			}
			emit(api.DoneEvent())
			return
		}

		if len(pendingCalls) == 0 {
			emit(api.ErrorEvent("Provider returned empty tool_calls"))
			emit(api.DoneEvent())
			return
		}

		conversation = append(conversation, api.Message{
			Role:      api.RoleAssistant,
			ToolCalls: pendingCalls,
		})

		// Calls are dispatched strictly in order so the event stream and
		// the conversation accumulate deterministically.
		for _, call := range pendingCalls {
			if ctx.Err() != nil {
				return
			}
			if !emit(api.ToolCallEvent(call)) {
				return
			}
			result := e.executeTool(ctx, call)
			if !emit(api.ToolResultEvent(call.ID, result)) {
				return
			}
			conversation = append(conversation, api.Message{
				Role:       api.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	emit(api.ErrorEvent("Max iterations reached"))
	emit(api.DoneEvent())
}

// executeTool dispatches one call and always returns a result string; a
// failed execution is surfaced to the model as "Error: <message>".
func (e *Engine) executeTool(ctx context.Context, call api.ToolCall) string {
	start := time.Now()

	var (
		result string
		err    error
	)
	if e.registry == nil {
		err = fmt.Errorf("tool %q is not available", call.Name)
	} else {
		result, err = e.registry.Execute(ctx, call.Name, call.Arguments)
	}

	status := "ok"
	if err != nil {
		status = "error"
		e.logger.Warn("tool execution failed",
			slog.String("tool", call.Name),
			slog.String("call_id", call.ID),
			slog.String("error", err.Error()))
		result = "Error: " + err.Error()
	}

	observability.ToolExecutionsTotal.WithLabelValues(call.Name, status).Inc()
	observability.ToolDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())
	return result
}

func deliver(ctx context.Context, ch chan<- api.LoopEvent, ev api.LoopEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
