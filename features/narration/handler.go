package narration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"postcast/internal/adapter/blob"
	"postcast/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type GenerateRequest struct {
	PostID string `json:"postId"`
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(ctx, w, "INVALID_REQUEST", "Invalid request body", http.StatusBadRequest)
		return
	}

	slog.InfoContext(ctx, "narration requested", "post_id", req.PostID)

	res, err := h.service.Generate(ctx, req.PostID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "GENERATION_FAILED")
		return
	}

	msg := "Audio generated successfully"
	if res.Existed {
		msg = "Audio already exists"
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"success": true,
		"message": msg,
		"postId":  res.PostID,
		"existed": res.Existed,
	}
	if res.Chunks > 0 {
		resp["chunks"] = res.Chunks
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("postId")

	obj, err := h.service.Open(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, err, "FETCH_FAILED")
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Cache-Control", blob.CacheControl)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		slog.WarnContext(ctx, "failed to stream audio", "post_id", id, "error", err)
	}
}

func (h *Handler) Head(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("postId")

	size, err := h.service.Size(ctx, id)
	if err != nil {
		w.WriteHeader(statusFor(err))
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Cache-Control", blob.CacheControl)
	if size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) URL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("postId")

	u, err := h.service.URL(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, err, "FETCH_FAILED")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"url": u}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("postId")

	if err := h.service.Delete(ctx, id); err != nil {
		h.writeServiceError(ctx, w, err, "DELETE_FAILED")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "postId": id}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// MissingID answers requests that reach the audio routes without a post id.
func (h *Handler) MissingID(w http.ResponseWriter, r *http.Request) {
	h.writeServiceError(r.Context(), w, ErrInvalidID, "")
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInsufficientText):
		return http.StatusBadRequest
	case errors.Is(err, ErrArticleNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	status := statusFor(err)

	var code string
	switch {
	case errors.Is(err, ErrInvalidID):
		code = "INVALID_ID"
	case errors.Is(err, ErrInsufficientText):
		code = "INSUFFICIENT_TEXT"
	case status == http.StatusNotFound:
		code = "NOT_FOUND"
	default:
		code = fallback
		slog.ErrorContext(ctx, "audio request failed", "error", err)
	}

	h.writeError(ctx, w, code, err.Error(), status)
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
