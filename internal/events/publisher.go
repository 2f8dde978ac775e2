package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"postcast/internal/middleware"
)

// Producer is satisfied by *nsq.Producer.
type Producer interface {
	Publish(topic string, body []byte) error
}

type Event struct {
	Type          string    `json:"type"`
	PostID        string    `json:"post_id,omitempty"`
	Path          string    `json:"path,omitempty"`
	Bytes         int       `json:"bytes,omitempty"`
	Chunks        int       `json:"chunks,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher emits domain events. With no producer every publish is a no-op.
type Publisher struct {
	producer Producer
	now      func() time.Time
}

func NewPublisher(p Producer) *Publisher {
	return &Publisher{producer: p, now: time.Now}
}

func (p *Publisher) Publish(ctx context.Context, topic string, e Event) error {
	if p == nil || p.producer == nil {
		return nil
	}

	e.Type = topic
	e.CorrelationID = middleware.GetCorrelationID(ctx)
	e.OccurredAt = p.now().UTC()

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.producer.Publish(topic, body); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}

	slog.DebugContext(ctx, "event published", "topic", topic, "post_id", e.PostID)
	return nil
}

// CreateTopics asks nsqd's HTTP API to create topics up front so consumers
// can subscribe before the first event is produced.
func CreateTopics(ctx context.Context, nsqdHTTP string, topics ...string) {
	for _, topic := range topics {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			slog.Warn("failed to build NSQ topic request", "topic", topic, "error", err)
			continue
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			continue
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}
}
