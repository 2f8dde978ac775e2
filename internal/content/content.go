package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"postcast/internal/adapter/github"
	"postcast/internal/cache"
	"postcast/internal/text"
)

var ErrNotFound = errors.New("post not found")

const (
	postExt         = ".mdx"
	listingCacheKey = "posts:meta"
)

type Meta struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Date  string   `json:"date"`
	Tags  []string `json:"tags"`
}

// Article is one post as fetched from the repository. Raw keeps the full MDX
// source; Body is the parsed markdown without frontmatter.
type Article struct {
	Meta
	Raw  string
	Body *text.Node
}

type Source interface {
	FetchFile(ctx context.Context, path string) ([]byte, error)
	ListFiles(ctx context.Context, suffix string) ([]string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

type Repository struct {
	src   Source
	cache Cache
}

// NewRepository builds a post repository. A nil cache disables listing caching.
func NewRepository(src Source, c Cache) *Repository {
	return &Repository{src: src, cache: c}
}

func (r *Repository) Get(ctx context.Context, id string) (*Article, error) {
	raw, err := r.src.FetchFile(ctx, id+postExt)
	if err != nil {
		if errors.Is(err, github.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch post %s: %w", id, err)
	}

	fm, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", id, err)
	}

	return &Article{
		Meta: Meta{
			ID:    id,
			Title: fm.Title,
			Date:  fm.Date,
			Tags:  fm.Tags,
		},
		Raw:  string(raw),
		Body: text.ParseMarkdown([]byte(body)),
	}, nil
}

// List returns metadata for every post, newest first. Posts that fail to load
// are skipped and logged.
func (r *Repository) List(ctx context.Context) ([]Meta, error) {
	if r.cache != nil {
		var cached []Meta
		err := r.cache.Get(ctx, listingCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.WarnContext(ctx, "posts cache read failed", "error", err)
		}
	}

	paths, err := r.src.ListFiles(ctx, postExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	metas := make([]Meta, 0, len(paths))
	for _, p := range paths {
		article, err := r.Get(ctx, strings.TrimSuffix(p, postExt))
		if err != nil {
			slog.WarnContext(ctx, "skipping post", "path", p, "error", err)
			continue
		}
		metas = append(metas, article.Meta)
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].Date > metas[j].Date
	})

	if r.cache != nil {
		if err := r.cache.Set(ctx, listingCacheKey, metas); err != nil {
			slog.WarnContext(ctx, "posts cache write failed", "error", err)
		}
	}

	return metas, nil
}

// Invalidate drops the cached listing so the next List reads the repository.
func (r *Repository) Invalidate(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, listingCacheKey)
}
