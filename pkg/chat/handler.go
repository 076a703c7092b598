// Package chat connects the agent engine to the transport layer. The
// handler resolves the target conversation, replays stored history into
// the run, announces the conversation id to the client before any model
// output, and mirrors the finished turn back into the store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/engine"
	"github.com/denker-ai/denker/pkg/storage"
	"github.com/denker-ai/denker/pkg/transport"
)

const (
	maxTitleRunes  = 64
	persistTimeout = 10 * time.Second
)

// Handler drives one chat request end to end. With a store it maintains
// conversation history; without one it runs stateless single turns.
type Handler struct {
	engine     *engine.Engine
	store      transport.ConversationStore // nil = stateless
	validation api.ValidationConfig
	logger     *slog.Logger
}

var _ transport.ChatStreamer = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger for persistence diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithValidation overrides the request validation limits.
func WithValidation(cfg api.ValidationConfig) Option {
	return func(h *Handler) { h.validation = cfg }
}

// NewHandler creates a chat handler. The store may be nil, in which case
// no history is kept and requests must not carry a conversation id.
func NewHandler(eng *engine.Engine, store transport.ConversationStore, opts ...Option) *Handler {
	h := &Handler{
		engine:     eng,
		store:      store,
		validation: api.DefaultValidationConfig(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// StreamChat implements transport.ChatStreamer.
func (h *Handler) StreamChat(ctx context.Context, req *api.ChatRequest, w transport.EventWriter) error {
	if verr := api.ValidateChatRequest(req, h.validation); verr != nil {
		return verr
	}
	if req.ConversationID != "" && h.store == nil {
		return api.NewValidationError("conversation_id", "conversation history requires a configured store")
	}

	var (
		convID  string
		history []api.Message
	)

	if h.store != nil {
		var err error
		convID, history, err = h.resolveConversation(ctx, req)
		if err != nil {
			return err
		}

		if _, err := h.store.SaveMessage(ctx, convID, api.Message{Role: api.RoleUser, Content: req.Message}); err != nil {
			return fmt.Errorf("failed to save user message: %w", err)
		}

		// The conversation id goes out before any model output so the
		// client can address follow-up requests and cancellation.
		if err := w.WriteEvent(ctx, api.ConversationEvent(convID)); err != nil {
			return err
		}
	}

	messages := append(history, api.Message{Role: api.RoleUser, Content: req.Message})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	events := h.engine.RunWith(runCtx, engine.RunOptions{
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
	}, messages)

	rec := &runRecorder{}
	var writeErr error
	for ev := range events {
		if writeErr != nil {
			continue // drain so the engine goroutine winds down
		}
		if err := w.WriteEvent(ctx, ev); err != nil {
			writeErr = err
			cancelRun()
			continue
		}
		rec.observe(ev)
	}

	if h.store != nil {
		h.persistRun(ctx, convID, rec)
	}

	switch {
	case writeErr != nil:
		return writeErr
	case rec.errText != "":
		return errors.New(rec.errText)
	case !rec.done && ctx.Err() != nil:
		return ctx.Err()
	}
	return nil
}

// resolveConversation returns the conversation id and stored history for
// the request, creating a new conversation when the request carries none.
func (h *Handler) resolveConversation(ctx context.Context, req *api.ChatRequest) (string, []api.Message, error) {
	if req.ConversationID == "" {
		now := time.Now().UTC()
		conv := &api.Conversation{
			ID:        api.NewConversationID(),
			Title:     titleFromMessage(req.Message),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := h.store.CreateConversation(ctx, conv); err != nil {
			return "", nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return conv.ID, nil, nil
	}

	conv, err := h.store.GetConversation(ctx, req.ConversationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, api.NewNotFoundError("conversation " + req.ConversationID + " not found")
		}
		return "", nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	stored, err := h.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load history: %w", err)
	}
	history := make([]api.Message, len(stored))
	for i := range stored {
		history[i] = stored[i].Message
	}
	if len(history) > 0 {
		if verr := api.ValidateMessages(history, h.validation); verr != nil {
			return "", nil, fmt.Errorf("stored history for %s is invalid: %s", conv.ID, verr.Message)
		}
	}
	return conv.ID, history, nil
}

// titleFromMessage derives a conversation title from the opening message:
// first line, trimmed, capped at maxTitleRunes.
func titleFromMessage(msg string) string {
	title := msg
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(title)
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	return title
}

// toolRound is one completed call/result pair in stream order.
type toolRound struct {
	call   api.ToolCall
	result string
}

// runRecorder accumulates what a run delivered to the client, for the
// post-run persistence pass.
type runRecorder struct {
	pending   *api.ToolCall
	rounds    []toolRound
	finalText string
	sawText   bool
	errText   string
	done      bool
}

func (r *runRecorder) observe(ev api.LoopEvent) {
	switch ev.Type {
	case api.EventToolCall:
		call := *ev.Call
		r.pending = &call
	case api.EventToolResult:
		if r.pending != nil && r.pending.ID == ev.CallID {
			r.rounds = append(r.rounds, toolRound{call: *r.pending, result: ev.Result})
			r.pending = nil
		}
	case api.EventText:
		r.finalText = ev.Content
		r.sawText = true
	case api.EventError:
		r.errText = ev.Content
	case api.EventDone:
		r.done = true
	}
}

// persistRun writes the delivered turn into the store: for each tool
// round an assistant message carrying the call followed by the tool
// message carrying its result, then the final assistant text if there was
// one. Persistence is detached from request cancellation so rounds that
// completed before a disconnect still land.
//
// The pass aborts on the first failed write; skipping a message would
// leave a call id without its result in the stored history.
func (h *Handler) persistRun(ctx context.Context, convID string, rec *runRecorder) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	save := func(msg api.Message) bool {
		if _, err := h.store.SaveMessage(ctx, convID, msg); err != nil {
			h.logger.Error("failed to persist message",
				slog.String("conversation_id", convID),
				slog.String("role", string(msg.Role)),
				slog.String("error", err.Error()))
			return false
		}
		return true
	}

	for _, round := range rec.rounds {
		if !save(api.Message{Role: api.RoleAssistant, ToolCalls: []api.ToolCall{round.call}}) {
			return
		}
		if !save(api.Message{Role: api.RoleTool, Content: round.result, ToolCallID: round.call.ID}) {
			return
		}
	}

	if rec.sawText {
		if !save(api.Message{Role: api.RoleAssistant, Content: rec.finalText}) {
			return
		}
	}

	if err := h.store.TouchConversation(ctx, convID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.logger.Warn("failed to touch conversation",
			slog.String("conversation_id", convID),
			slog.String("error", err.Error()))
	}
}
