package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Joiner merges decoded MP3 fragments, in order, into one playable file.
type Joiner interface {
	Join(ctx context.Context, parts [][]byte) ([]byte, error)
}

// ConcatJoiner appends fragments byte for byte. Players tolerate the repeated
// headers at fragment seams, at the cost of a possible click between chunks.
type ConcatJoiner struct{}

func (ConcatJoiner) Join(_ context.Context, parts [][]byte) ([]byte, error) {
	return bytes.Join(parts, nil), nil
}

// FFmpegJoiner splices fragments with the ffmpeg concat demuxer and stream
// copy, producing a single clean MP3 stream. Requires ffmpeg on PATH.
type FFmpegJoiner struct {
	TempDir string
}

func (j FFmpegJoiner) Join(ctx context.Context, parts [][]byte) ([]byte, error) {
	if len(parts) == 1 {
		return parts[0], nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(j.TempDir, "postcast-join-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create join dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var list strings.Builder
	for i, p := range parts {
		name := filepath.Join(dir, fmt.Sprintf("part-%04d.mp3", i))
		if err := os.WriteFile(name, p, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write fragment %d: %w", i, err)
		}
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(name, "'", `'\''`))
	}

	listPath := filepath.Join(dir, "parts.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write concat list: %w", err)
	}

	outPath := filepath.Join(dir, "joined.mp3")
	err = ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": "0"}).
		Output(outPath, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput().
		Run()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w", err)
	}

	return os.ReadFile(outPath)
}
