package app_test

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcast/internal/app"
	"postcast/internal/testutils"
)

func TestApp_EndToEnd_Narration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E integration test")
	}

	// 1. Setup Infrastructure
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	var voiceCalls atomic.Int32
	gh := fakeGitHub(t, map[string]string{"hello": helloPost})
	voice := fakeVoice(t, &voiceCalls)

	cfg := s.GetAppConfig()
	cfg.MigrationPath = migrationPath()
	cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBranch = "o", "r", "main"
	cfg.GitHubAPIURL, cfg.GitHubRawURL = gh.URL, gh.URL+"/raw"
	cfg.VoiceAPIURL = voice.URL
	cfg.SecretKey = "s3cret"
	cfg.GenerationLogPath = t.TempDir() + "/generation.log"

	deps, err := app.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer deps.Close()

	// 2. Initialize App
	application, err := app.New(cfg, deps)
	require.NoError(t, err)

	// 3. Generate twice; only the first call synthesizes
	w := serve(application, "POST", "/api/audio/generate", `{"postId":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"existed":false`)

	w = serve(application, "POST", "/api/audio/generate", `{"postId":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"existed":true`)
	assert.Equal(t, int32(1), voiceCalls.Load())

	// 4. Stream it back
	w = serve(application, "GET", "/api/audio/hello", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, body)

	w = serve(application, "HEAD", "/api/audio/hello", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Content-Length"))

	w = serve(application, "GET", "/api/posts/hello", "")
	assert.Contains(t, w.Body.String(), `"audioAvailable":true`)

	// 5. Delete it
	w = serve(application, "DELETE", "/api/audio/hello?secret=s3cret", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve(application, "GET", "/api/audio/hello", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
