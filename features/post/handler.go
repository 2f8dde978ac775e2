package post

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"postcast/features/narration"
	"postcast/internal/config"
	"postcast/internal/content"
	"postcast/internal/events"
	"postcast/internal/middleware"
)

type Repository interface {
	List(ctx context.Context) ([]content.Meta, error)
	Get(ctx context.Context, id string) (*content.Article, error)
	Invalidate(ctx context.Context) error
}

type AudioChecker interface {
	Exists(ctx context.Context, id string) bool
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, e events.Event) error
}

type Handler struct {
	repo  Repository
	audio AudioChecker
	pub   EventPublisher
}

func NewHandler(repo Repository, audio AudioChecker, pub EventPublisher) *Handler {
	return &Handler{repo: repo, audio: audio, pub: pub}
}

type PostResponse struct {
	content.Meta
	AudioAvailable bool `json:"audioAvailable"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	posts, err := h.repo.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list posts", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to list posts", http.StatusInternalServerError)
		return
	}
	if posts == nil {
		posts = []content.Meta{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": posts,
		"meta": map[string]int{"count": len(posts)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("postId")

	if !narration.ValidID(id) {
		h.writeError(ctx, w, "INVALID_ID", "post id is required", http.StatusBadRequest)
		return
	}

	a, err := h.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			h.writeError(ctx, w, "NOT_FOUND", "Post not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to get post", "post_id", id, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to get post", http.StatusInternalServerError)
		return
	}

	resp := PostResponse{Meta: a.Meta, AudioAvailable: h.audio.Exists(ctx, id)}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Revalidate drops the cached listing and asks renderers to rebuild path.
// Callers are expected to sit behind middleware.RequireSecret.
func (h *Handler) Revalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	if err := h.repo.Invalidate(ctx); err != nil {
		slog.WarnContext(ctx, "failed to invalidate posts cache", "error", err)
	}
	if h.pub != nil {
		if err := h.pub.Publish(ctx, config.TopicContentRevalidate, events.Event{Path: path}); err != nil {
			slog.WarnContext(ctx, "failed to publish revalidation", "path", path, "error", err)
		}
	}

	slog.InfoContext(ctx, "content revalidated", "path", path)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]bool{"revalidated": true}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error":         code,
		"message":       message,
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
