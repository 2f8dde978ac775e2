package logger

import (
	"context"
	"log/slog"

	"postcast/internal/middleware"
)

type postIDKey struct{}

// ContextHandler decorates records with request-scoped attributes carried on the context.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(middleware.CorrelationKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if id, ok := ctx.Value(postIDKey{}).(string); ok && id != "" {
		r.AddAttrs(slog.String("post_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithPostID tags every log line emitted with ctx with the post being narrated.
func WithPostID(ctx context.Context, postID string) context.Context {
	return context.WithValue(ctx, postIDKey{}, postID)
}
