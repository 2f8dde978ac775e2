package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"postcast/internal/middleware"
)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

func TestPublisher_Publish(t *testing.T) {
	prod := new(MockProducer)
	var captured []byte
	prod.On("Publish", "audio.generated", mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).([]byte)
	}).Return(nil)

	p := NewPublisher(prod)
	p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	ctx := middleware.WithCorrelationID(context.Background(), "corr-1")
	err := p.Publish(ctx, "audio.generated", Event{PostID: "post-a", Bytes: 2048, Chunks: 3})
	require.NoError(t, err)

	var e Event
	require.NoError(t, json.Unmarshal(captured, &e))
	assert.Equal(t, "audio.generated", e.Type)
	assert.Equal(t, "post-a", e.PostID)
	assert.Equal(t, 2048, e.Bytes)
	assert.Equal(t, 3, e.Chunks)
	assert.Equal(t, "corr-1", e.CorrelationID)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), e.OccurredAt)
}

func TestPublisher_ProducerError(t *testing.T) {
	prod := new(MockProducer)
	prod.On("Publish", "audio.deleted", mock.Anything).Return(errors.New("nsq down"))

	err := NewPublisher(prod).Publish(context.Background(), "audio.deleted", Event{PostID: "x"})
	assert.ErrorContains(t, err, "nsq down")
}

func TestPublisher_NoProducer(t *testing.T) {
	assert.NoError(t, NewPublisher(nil).Publish(context.Background(), "audio.generated", Event{}))

	var p *Publisher
	assert.NoError(t, p.Publish(context.Background(), "audio.generated", Event{}))
}

func TestCreateTopics(t *testing.T) {
	var mu sync.Mutex
	var created []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/topic/create", r.URL.Path)
		mu.Lock()
		created = append(created, r.URL.Query().Get("topic"))
		mu.Unlock()
	}))
	defer ts.Close()

	CreateTopics(context.Background(), ts.Listener.Addr().String(), "audio.generated", "audio.deleted")
	assert.Equal(t, []string{"audio.generated", "audio.deleted"}, created)
}
