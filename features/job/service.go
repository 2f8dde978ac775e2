package job

import (
	"context"
	"fmt"
	"log/slog"
)

// GenerateFunc regenerates the narration of one post.
type GenerateFunc func(ctx context.Context, postID string) error

type Service struct {
	repo     Repository
	generate GenerateFunc
}

func NewService(repo Repository, generate GenerateFunc) *Service {
	return &Service{repo: repo, generate: generate}
}

// SetGenerator wires the regeneration step after construction, since the
// generator itself reports failures back into this service.
func (s *Service) SetGenerator(generate GenerateFunc) {
	s.generate = generate
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Record stores a generation failure for later retry.
func (s *Service) Record(ctx context.Context, postID string, cause error) {
	j, err := s.repo.Record(ctx, postID, cause.Error())
	if err != nil {
		slog.ErrorContext(ctx, "failed to record failed generation", "post_id", postID, "error", err)
		return
	}
	slog.InfoContext(ctx, "failed generation recorded", "job_id", j.ID, "post_id", postID, "retries", j.Retries)
}

// Resolve clears any recorded failure for a post that has since succeeded.
func (s *Service) Resolve(ctx context.Context, postID string) {
	if err := s.repo.DeleteByPost(ctx, postID); err != nil {
		slog.WarnContext(ctx, "failed to clear failed generation", "post_id", postID, "error", err)
	}
}

// Retry re-runs generation for a recorded failure. On success the record is
// removed; on failure the generator has already updated it.
func (s *Service) Retry(ctx context.Context, id string) error {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if s.generate == nil {
		return fmt.Errorf("no generator configured")
	}
	if err := s.generate(ctx, j.PostID); err != nil {
		return fmt.Errorf("retry of %s failed: %w", j.PostID, err)
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
