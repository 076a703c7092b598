package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/denker-ai/denker/pkg/api"
)

// Logging returns middleware that emits a structured log entry for each
// chat run: request ID, conversation ID, model override, duration, and
// whether the run handed off cleanly.
//
// HTTP-level detail (method, path, status) is logged by the metrics and
// logging middleware in the HTTP adapter; this entry covers the handler.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatStreamer) ChatStreamer {
		return ChatStreamerFunc(func(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
			start := time.Now()

			err := next.StreamChat(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("conversation_id", req.ConversationID),
				slog.String("model", req.Model),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "chat request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "chat request completed", attrs...)
			}

			return err
		})
	}
}
