package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	OutcomeGenerated = "generated"
	OutcomeExisted   = "existed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeDeleted   = "deleted"
)

type Entry struct {
	Timestamp     time.Time     `json:"timestamp"`
	PostID        string        `json:"post_id"`
	Outcome       string        `json:"outcome"`
	Chunks        int           `json:"chunks,omitempty"`
	Bytes         int           `json:"bytes,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
	LatencyMs     int64         `json:"latency_ms"`
	Error         string        `json:"error,omitempty"`
	CorrelationID string        `json:"correlation_id"`
}

// GenerationLogger appends one JSON line per narration outcome.
type GenerationLogger struct {
	writer io.Writer
	mu     sync.Mutex
	now    func() time.Time
}

func NewGenerationLogger(w io.Writer) *GenerationLogger {
	return &GenerationLogger{writer: w, now: time.Now}
}

func NewFileGenerationLogger(path string) (*GenerationLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from configuration
	if err != nil {
		return nil, err
	}
	return NewGenerationLogger(f), nil
}

func (l *GenerationLogger) Log(entry Entry) {
	if l == nil {
		return
	}
	entry.Timestamp = l.now().UTC()
	entry.LatencyMs = entry.Duration.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.writer).Encode(entry); err != nil {
		slog.Error("failed to write generation log entry", "error", err)
	}
}
