package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"postcast/internal/text"
)

var ErrEmptyNarration = errors.New("narration produced no chunks")

var dataURIRe = regexp.MustCompile(`^data:audio/[\w.+-]+;base64,`)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

type Assembly struct {
	Data   []byte
	Chunks int
}

// Assembler turns narration text into one audio file by synthesizing each
// chunk in order. The first chunk that cannot be synthesized aborts the run.
type Assembler struct {
	synth    Synthesizer
	joiner   Joiner
	maxChars int
}

func NewAssembler(synth Synthesizer, joiner Joiner, maxChars int) *Assembler {
	if joiner == nil {
		joiner = ConcatJoiner{}
	}
	return &Assembler{synth: synth, joiner: joiner, maxChars: maxChars}
}

func (a *Assembler) Assemble(ctx context.Context, narration string) (*Assembly, error) {
	chunks := text.Split(narration, a.maxChars)
	if len(chunks) == 0 {
		return nil, ErrEmptyNarration
	}

	parts := make([][]byte, 0, len(chunks))
	for i, chunk := range chunks {
		slog.DebugContext(ctx, "synthesizing chunk", "index", i+1, "total", len(chunks), "chars", len([]rune(chunk)))

		encoded, err := a.synth.Synthesize(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}

		data, err := Decode(encoded)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		parts = append(parts, data)
	}

	joined, err := a.joiner.Join(ctx, parts)
	if err != nil {
		return nil, fmt.Errorf("failed to join audio: %w", err)
	}

	return &Assembly{Data: joined, Chunks: len(chunks)}, nil
}

// Decode converts a synthesized payload to raw bytes, dropping any data URI prefix.
func Decode(payload string) ([]byte, error) {
	payload = dataURIRe.ReplaceAllString(payload, "")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio: %w", err)
	}
	return data, nil
}
