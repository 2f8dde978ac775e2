package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"postcast/internal/content"
	"postcast/internal/middleware"
)

type PostRepo interface {
	List(ctx context.Context) ([]content.Meta, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type AudioStore interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	postRepo   PostRepo
	jobRepo    JobRepo
	audioStore AudioStore
}

// NewHandler builds the stats handler. A nil JobRepo reports zero failed jobs.
func NewHandler(p PostRepo, j JobRepo, a AudioStore) *Handler {
	return &Handler{postRepo: p, jobRepo: j, audioStore: a}
}

type StatsResponse struct {
	Posts      int `json:"posts"`
	Narrated   int `json:"narrated"`
	FailedJobs int `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slog.InfoContext(ctx, "getting stats")

	posts, err := h.postRepo.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list posts", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count posts", http.StatusInternalServerError)
		return
	}

	var jCount int
	if h.jobRepo != nil {
		jCount, err = h.jobRepo.Count(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count jobs", "error", err)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
			return
		}
	}

	aCount, err := h.audioStore.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count narrations", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count narrations", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Posts:      len(posts),
		Narrated:   aCount,
		FailedJobs: jCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
