package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

func TestFFmpegJoiner_SinglePartPassthrough(t *testing.T) {
	got, err := FFmpegJoiner{}.Join(context.Background(), [][]byte{[]byte("only")})
	require.NoError(t, err)
	assert.Equal(t, "only", string(got))
}

func tone(t *testing.T, dir, name string) []byte {
	t.Helper()
	path := filepath.Join(dir, name)
	err := ffmpeg.Input("sine=frequency=440:duration=0.5", ffmpeg.KwArgs{"f": "lavfi"}).
		Output(path, ffmpeg.KwArgs{"c:a": "libmp3lame"}).
		OverWriteOutput().
		Run()
	if err != nil {
		t.Skipf("cannot encode mp3 fixture: %v", err)
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestFFmpegJoiner_Join(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffmpeg test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	a := tone(t, dir, "a.mp3")
	b := tone(t, dir, "b.mp3")

	got, err := FFmpegJoiner{TempDir: dir}.Join(context.Background(), [][]byte{a, b})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Greater(t, len(got), len(a))
}

func TestFFmpegJoiner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FFmpegJoiner{}.Join(ctx, [][]byte{[]byte("a"), []byte("b")})
	assert.ErrorIs(t, err, context.Canceled)
}
