package narration

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"postcast/internal/adapter/blob"
	"postcast/internal/content"
	"postcast/internal/events"
)

// memStore is an in-memory AudioStore.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	saves   int
	saveErr error
	openErr error
	statErr error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Exists(_ context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[id]
	return ok
}

func (s *memStore) Save(_ context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.objects[id] = data
	return nil
}

func (s *memStore) URL(_ context.Context, id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return "", false
	}
	return "https://cdn.test/" + blob.Key(id), true
}

func (s *memStore) Open(_ context.Context, id string) (*blob.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	data, ok := s.objects[id]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return &blob.Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		Size:        int64(len(data)),
		ContentType: blob.ContentType,
	}, nil
}

func (s *memStore) Stat(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statErr != nil {
		return 0, s.statErr
	}
	data, ok := s.objects[id]
	if !ok {
		return 0, blob.ErrNotFound
	}
	return int64(len(data)), nil
}

func (s *memStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, id)
}

func (s *memStore) get(id string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[id]
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// echoSynth returns each chunk's own text as its audio.
type echoSynth struct {
	calls   atomic.Int32
	gate    chan struct{}
	entered chan struct{}
	err     error
}

func (s *echoSynth) Synthesize(ctx context.Context, text string) (string, error) {
	s.calls.Add(1)
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return base64.StdEncoding.EncodeToString([]byte(text)), nil
}

type articleMap map[string]*content.Article

func (m articleMap) Get(_ context.Context, id string) (*content.Article, error) {
	a, ok := m[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	return a, nil
}

type failingArticles struct{}

func (failingArticles) Get(context.Context, string) (*content.Article, error) {
	return nil, errors.New("github unavailable")
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, postID string, cause error) {
	m.Called(ctx, postID, cause)
}

func (m *MockRecorder) Resolve(ctx context.Context, postID string) {
	m.Called(ctx, postID)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, e events.Event) error {
	args := m.Called(ctx, topic, e)
	return args.Error(0)
}

func article(id, title, raw string) *content.Article {
	return &content.Article{Meta: content.Meta{ID: id, Title: title}, Raw: raw}
}
