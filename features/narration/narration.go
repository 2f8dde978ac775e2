package narration

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"postcast/internal/adapter/blob"
	"postcast/internal/audio"
	"postcast/internal/content"
	"postcast/internal/events"
)

var (
	ErrInvalidID        = errors.New("post id is required")
	ErrInsufficientText = errors.New("insufficient text content for audio generation")
	ErrArticleNotFound  = errors.New("post not found")
)

// Ids become object keys and repository paths, so they stay a single path segment.
var idRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

const (
	outcomeGenerated = "generated"
	outcomeExisted   = "existed"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

type Result struct {
	PostID  string `json:"postId"`
	Existed bool   `json:"existed"`
	Chunks  int    `json:"chunks,omitempty"`
	Bytes   int    `json:"bytes,omitempty"`
}

type ArticleSource interface {
	Get(ctx context.Context, id string) (*content.Article, error)
}

type AudioStore interface {
	Exists(ctx context.Context, id string) bool
	Save(ctx context.Context, id string, data []byte) error
	URL(ctx context.Context, id string) (string, bool)
	Open(ctx context.Context, id string) (*blob.Object, error)
	Stat(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string)
}

type Assembler interface {
	Assemble(ctx context.Context, narration string) (*audio.Assembly, error)
}

// FailureRecorder keeps track of generations that need a retry.
type FailureRecorder interface {
	Record(ctx context.Context, postID string, cause error)
	Resolve(ctx context.Context, postID string)
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, e events.Event) error
}

type Guard interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, bool, error)
}

// ValidID reports whether id can name a post.
func ValidID(id string) bool {
	return idRe.MatchString(id) && !strings.Contains(id, "..")
}
