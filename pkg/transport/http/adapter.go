package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/observability"
	"github.com/denker-ai/denker/pkg/storage"
	"github.com/denker-ai/denker/pkg/transport"
)

// ModelLister exposes the backend's model catalogue to the API surface.
// provider implementations satisfy it.
type ModelLister interface {
	ListModels(ctx context.Context) ([]api.ModelInfo, error)
}

// Adapter serves the denker API over HTTP. It routes requests, enforces
// body limits, and bridges chat runs onto SSE streams.
type Adapter struct {
	streamer transport.ChatStreamer
	store    transport.ConversationStore // nil in stateless mode
	models   ModelLister                 // nil if no backend listing
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds
	MetricsEnabled  bool
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30,
	}
}

// NewAdapter creates an HTTP adapter around the given ChatStreamer.
// The store and model lister are optional; without a store the
// conversation endpoints report the operation as unavailable.
// Middleware is applied to the ChatStreamer in the given order.
func NewAdapter(streamer transport.ChatStreamer, store transport.ConversationStore, models ModelLister, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		streamer = transport.Chain(middlewares...)(streamer)
	}

	a := &Adapter{
		streamer: streamer,
		store:    store,
		models:   models,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /api/chat", a.handleChat)
	a.mux.HandleFunc("GET /api/conversations", a.handleListConversations)
	a.mux.HandleFunc("GET /api/conversations/{id}", a.handleGetConversation)
	a.mux.HandleFunc("DELETE /api/conversations/{id}", a.handleDeleteConversation)
	a.mux.HandleFunc("GET /api/models", a.handleListModels)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	if cfg.MetricsEnabled {
		a.mux.Handle("GET /metrics", promhttp.Handler())
	}

	return a
}

// Handler returns the http.Handler for this adapter, including HTTP-level
// middleware for request ID propagation and request metrics.
func (a *Adapter) Handler() http.Handler {
	var h http.Handler = a.mux
	if a.config.MetricsEnabled {
		h = observability.MetricsMiddleware(h)
	}
	return httpRequestIDMiddleware(h)
}

// httpRequestIDMiddleware propagates the X-Request-ID header: an incoming
// value is carried into the context, and the effective ID is reflected in
// the response headers before the first write.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleChat handles POST /api/chat. The response is always an SSE stream.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w,
			api.NewValidationError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewValidationError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewValidationError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	// Client disconnects cancel this context, and with it the run all
	// the way down to the backend request.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var registeredID string
	rw := newSSEEventWriter(w, func(id string) {
		registeredID = id
		a.inflight.Register(id, cancel)
	})

	err := a.streamer.StreamChat(ctx, &req, rw)

	if registeredID != "" {
		a.inflight.Remove(registeredID)
	}

	if err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleListConversations handles GET /api/conversations.
func (a *Adapter) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewValidationError("", "conversation listing is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	opts, optErr := parseListOptions(r)
	if optErr != nil {
		transport.WriteErrorResponse(w, optErr, http.StatusBadRequest)
		return
	}

	result, err := a.store.ListConversations(r.Context(), opts)
	if err != nil {
		transport.WriteAPIError(w, api.AsAPIError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// conversationDetail is the GET /api/conversations/{id} response body.
type conversationDetail struct {
	*api.Conversation
	Messages []api.StoredMessage `json:"messages"`
}

// handleGetConversation handles GET /api/conversations/{id}.
func (a *Adapter) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewValidationError("", "conversation retrieval is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	id := r.PathValue("id")
	if !api.ValidateConversationID(id) {
		transport.WriteErrorResponse(w,
			api.NewValidationError("id", "malformed conversation ID"),
			http.StatusBadRequest,
		)
		return
	}

	conv, err := a.store.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("conversation "+id+" not found"))
		} else {
			transport.WriteAPIError(w, api.AsAPIError(err))
		}
		return
	}

	msgs, err := a.store.ListMessages(r.Context(), id)
	if err != nil {
		transport.WriteAPIError(w, api.AsAPIError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conversationDetail{Conversation: conv, Messages: msgs})
}

// handleDeleteConversation handles DELETE /api/conversations/{id}.
// An in-flight stream on the conversation is cancelled before the rows
// are removed.
func (a *Adapter) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateConversationID(id) {
		transport.WriteErrorResponse(w,
			api.NewValidationError("id", "malformed conversation ID"),
			http.StatusBadRequest,
		)
		return
	}

	a.inflight.Cancel(id)

	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewValidationError("", "conversation deletion is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	if err := a.store.DeleteConversation(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("conversation "+id+" not found"))
		} else {
			transport.WriteAPIError(w, api.AsAPIError(err))
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// modelList is the GET /api/models response body, mirroring the backend's
// /api/tags shape.
type modelList struct {
	Models []api.ModelInfo `json:"models"`
}

// handleListModels handles GET /api/models.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	if a.models == nil {
		transport.WriteErrorResponse(w,
			api.NewValidationError("", "model listing is not available (no backend configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	models, err := a.models.ListModels(r.Context())
	if err != nil {
		transport.WriteAPIError(w, api.AsAPIError(err))
		return
	}
	if models == nil {
		models = []api.ModelInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(modelList{Models: models})
}

// handleHealth handles GET /healthz: liveness plus a store ping when a
// store is configured.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if a.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.store.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// parseListOptions extracts pagination parameters from the query string.
func parseListOptions(r *http.Request) (transport.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := transport.ListOptions{
		After: q.Get("after"),
		Order: q.Get("order"),
	}

	if opts.Order != "" && opts.Order != "asc" && opts.Order != "desc" {
		return opts, api.NewValidationError("order", "order must be 'asc' or 'desc'")
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, api.NewValidationError("limit", "limit must be a positive integer")
		}
		opts.Limit = limit
	}

	return opts, nil
}

// writeHandlerError reports a failed chat run. Before any event has been
// written this is a plain JSON error response; once streaming has begun
// the failure is delivered in-band as an error event followed by done.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *sseEventWriter, err error) {
	apiErr := api.AsAPIError(err)

	if rw.hasStartedStreaming() {
		if rw.isCompleted() {
			return
		}
		rw.WriteEvent(context.Background(), api.ErrorEvent(apiErr.Message))
		rw.WriteEvent(context.Background(), api.DoneEvent())
		return
	}

	transport.WriteAPIError(w, apiErr)
}
