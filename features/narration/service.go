package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"postcast/internal/adapter/blob"
	"postcast/internal/audit"
	"postcast/internal/config"
	"postcast/internal/content"
	"postcast/internal/events"
	"postcast/internal/logger"
	"postcast/internal/metrics"
	"postcast/internal/middleware"
	"postcast/internal/text"
)

const defaultMinChars = 10

type Service struct {
	articles  ArticleSource
	store     AudioStore
	assembler Assembler
	guard     Guard
	recorder  FailureRecorder
	pub       EventPublisher
	audit     *audit.GenerationLogger
	minChars  int
	now       func() time.Time
}

type Option func(*Service)

func WithGuard(g Guard) Option {
	return func(s *Service) { s.guard = g }
}

func WithRecorder(r FailureRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.pub = p }
}

func WithAuditLog(l *audit.GenerationLogger) Option {
	return func(s *Service) { s.audit = l }
}

func WithMinChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minChars = n
		}
	}
}

func NewService(articles ArticleSource, store AudioStore, assembler Assembler, opts ...Option) *Service {
	s := &Service{
		articles:  articles,
		store:     store,
		assembler: assembler,
		minChars:  defaultMinChars,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate makes sure the narration for id is stored, synthesizing it only
// when it is not there yet. Concurrent calls for one id share a single run.
func (s *Service) Generate(ctx context.Context, id string) (*Result, error) {
	id = strings.TrimSpace(id)
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	ctx = logger.WithPostID(ctx, id)

	if s.store.Exists(ctx, id) {
		slog.InfoContext(ctx, "narration already exists")
		s.log(ctx, audit.Entry{PostID: id, Outcome: audit.OutcomeExisted})
		return &Result{PostID: id, Existed: true}, nil
	}

	if s.guard == nil {
		return s.generate(ctx, id)
	}

	v, shared, err := s.guard.Do(ctx, id, func(ctx context.Context) (any, error) {
		return s.generate(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.DebugContext(ctx, "joined in-flight generation")
	}
	res := *v.(*Result)
	return &res, nil
}

func (s *Service) generate(ctx context.Context, id string) (*Result, error) {
	start := s.now()
	metrics.RecordGenerationStart()

	// Another holder of the lock may have finished while we waited.
	if s.store.Exists(ctx, id) {
		s.finish(ctx, id, outcomeExisted, start, nil, nil)
		return &Result{PostID: id, Existed: true}, nil
	}

	res, err := s.run(ctx, id)
	switch {
	case err == nil:
		s.finish(ctx, id, outcomeGenerated, start, res, nil)
		return res, nil
	case errors.Is(err, ErrArticleNotFound), errors.Is(err, ErrInsufficientText):
		s.finish(ctx, id, outcomeRejected, start, nil, err)
	default:
		s.finish(ctx, id, outcomeFailed, start, nil, err)
	}
	return nil, err
}

func (s *Service) run(ctx context.Context, id string) (*Result, error) {
	article, err := s.articles.Get(ctx, id)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch post: %w", err)
	}

	narration := Narrate(article)
	if utf8.RuneCountInString(narration) < s.minChars {
		return nil, ErrInsufficientText
	}

	slog.InfoContext(ctx, "generating narration", "chars", utf8.RuneCountInString(narration))

	assembly, err := s.assembler.Assemble(ctx, narration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate audio: %w", err)
	}

	if err := s.store.Save(ctx, id, assembly.Data); err != nil {
		return nil, fmt.Errorf("failed to store audio: %w", err)
	}

	return &Result{PostID: id, Chunks: assembly.Chunks, Bytes: len(assembly.Data)}, nil
}

// Narrate builds the speakable text for a post: its title followed by its
// prose, read from the raw source and from the parsed tree when the raw
// source yields nothing.
func Narrate(a *content.Article) string {
	body := text.ExtractSource(a.Raw)
	if body == "" && a.Body != nil {
		body = text.ExtractTree(a.Body)
	}
	return text.Narration(a.Title, body)
}

func (s *Service) finish(ctx context.Context, id, outcome string, start time.Time, res *Result, cause error) {
	elapsed := s.now().Sub(start)
	metrics.RecordGenerationEnd(outcome, elapsed.Seconds())

	entry := audit.Entry{PostID: id, Duration: elapsed}
	switch outcome {
	case outcomeGenerated:
		entry.Outcome = audit.OutcomeGenerated
		entry.Chunks = res.Chunks
		entry.Bytes = res.Bytes
		metrics.RecordAudioBytes(res.Bytes)
		slog.InfoContext(ctx, "narration generated", "chunks", res.Chunks, "bytes", res.Bytes, "duration", elapsed)

		if s.recorder != nil {
			s.recorder.Resolve(ctx, id)
		}
		s.publish(ctx, config.TopicAudioGenerated, events.Event{PostID: id, Bytes: res.Bytes, Chunks: res.Chunks})
	case outcomeExisted:
		entry.Outcome = audit.OutcomeExisted
	case outcomeRejected:
		entry.Outcome = audit.OutcomeRejected
		entry.Error = cause.Error()
		slog.WarnContext(ctx, "narration rejected", "error", cause)
	default:
		entry.Outcome = audit.OutcomeFailed
		entry.Error = cause.Error()
		slog.ErrorContext(ctx, "narration failed", "error", cause, "duration", elapsed)
		if s.recorder != nil {
			s.recorder.Record(ctx, id, cause)
		}
	}
	s.log(ctx, entry)
}

// Delete removes the stored narration for id. Missing audio is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if !ValidID(id) {
		return ErrInvalidID
	}
	ctx = logger.WithPostID(ctx, id)

	s.store.Delete(ctx, id)
	slog.InfoContext(ctx, "narration deleted")
	s.log(ctx, audit.Entry{PostID: id, Outcome: audit.OutcomeDeleted})
	s.publish(ctx, config.TopicAudioDeleted, events.Event{PostID: id})
	return nil
}

// Retry adapts Generate to the failed-job retry hook.
func (s *Service) Retry(ctx context.Context, id string) error {
	_, err := s.Generate(ctx, id)
	return err
}

func (s *Service) publish(ctx context.Context, topic string, e events.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, topic, e); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "topic", topic, "error", err)
	}
}

func (s *Service) log(ctx context.Context, e audit.Entry) {
	if s.audit == nil {
		return
	}
	e.CorrelationID = middleware.GetCorrelationID(ctx)
	s.audit.Log(e)
}

// Exists reports whether narration is stored for id.
func (s *Service) Exists(ctx context.Context, id string) bool {
	return ValidID(id) && s.store.Exists(ctx, id)
}

// Open streams the stored narration for id.
func (s *Service) Open(ctx context.Context, id string) (*blob.Object, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	return s.store.Open(ctx, id)
}

// Size returns the stored size of the narration for id, or -1 when it is
// present but its size cannot be read.
func (s *Service) Size(ctx context.Context, id string) (int64, error) {
	if !ValidID(id) {
		return 0, ErrInvalidID
	}
	if !s.store.Exists(ctx, id) {
		return 0, blob.ErrNotFound
	}
	size, err := s.store.Stat(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "failed to stat audio", "post_id", id, "error", err)
		return -1, nil
	}
	return size, nil
}

// URL returns a locator for streaming the narration directly from storage.
func (s *Service) URL(ctx context.Context, id string) (string, error) {
	if !ValidID(id) {
		return "", ErrInvalidID
	}
	u, ok := s.store.URL(ctx, id)
	if !ok {
		return "", blob.ErrNotFound
	}
	return u, nil
}
