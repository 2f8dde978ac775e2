package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcast/internal/app"
	"postcast/internal/config"
)

func testConfig(t *testing.T, gh, voice string) *config.Config {
	return &config.Config{
		VoiceAPIURL:          voice,
		VoiceLanguage:        "en",
		SynthesisMaxAttempts: 1,
		ChunkMaxChars:        249,
		MinNarrationChars:    10,
		AudioJoiner:          "concat",
		GitHubOwner:          "o",
		GitHubRepo:           "r",
		GitHubBranch:         "main",
		GitHubAPIURL:         gh,
		GitHubRawURL:         gh + "/raw",
		PostsCacheTTL:        time.Hour,
		LockTTL:              time.Minute,
		SecretKey:            "s3cret",
		ServerPort:           8081,
		GenerationLogPath:    filepath.Join(t.TempDir(), "generation.log"),
	}
}

func serve(a *app.App, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	return w
}

func TestNew_Routes(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var voiceCalls atomic.Int32
	gh := fakeGitHub(t, map[string]string{"hello": helloPost, "short": shortPost})
	voice := fakeVoice(t, &voiceCalls)

	a, err := app.New(testConfig(t, gh.URL, voice.URL), &app.Dependencies{DB: db, Redis: rdb})
	require.NoError(t, err)
	require.NotNil(t, a.Jobs)

	t.Run("Health", func(t *testing.T) {
		w := serve(a, "GET", "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("Preflight", func(t *testing.T) {
		w := serve(a, "OPTIONS", "/api/audio/generate", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Posts", func(t *testing.T) {
		w := serve(a, "GET", "/api/posts", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"title":"Hello World"`)
		assert.Contains(t, w.Body.String(), `"count":2`)

		w = serve(a, "GET", "/api/posts/hello", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"audioAvailable":false`)

		w = serve(a, "GET", "/api/posts/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Audio Missing ID", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, serve(a, "GET", "/api/audio/", "").Code)
	})

	t.Run("Audio Absent", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serve(a, "GET", "/api/audio/hello", "").Code)
		assert.Equal(t, http.StatusNotFound, serve(a, "HEAD", "/api/audio/hello", "").Code)
		assert.Equal(t, http.StatusNotFound, serve(a, "GET", "/api/audio/hello/url", "").Code)
	})

	t.Run("Generate Insufficient Text", func(t *testing.T) {
		w := serve(a, "POST", "/api/audio/generate", `{"postId":"short"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, voiceCalls.Load())
	})

	t.Run("Generate Unknown Post", func(t *testing.T) {
		w := serve(a, "POST", "/api/audio/generate", `{"postId":"nope"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Generate Without Storage Records Failure", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "post_id", "error", "retries", "created_at", "updated_at"}).
			AddRow("job-1", "hello", "audio storage not configured", 0, time.Now(), time.Now())
		dbMock.ExpectQuery("INSERT INTO failed_generations").WithArgs("hello", sqlmock.AnyArg()).WillReturnRows(rows)

		w := serve(a, "POST", "/api/audio/generate", `{"postId":"hello"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "audio storage not configured")
		assert.Equal(t, int32(1), voiceCalls.Load())
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("Failed Jobs", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "post_id", "error", "retries", "created_at", "updated_at"}).
			AddRow("job-1", "hello", "boom", 0, time.Now(), time.Now())
		dbMock.ExpectQuery("SELECT (.+) FROM failed_generations").WillReturnRows(rows)

		w := serve(a, "GET", "/jobs/failed", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"postId":"hello"`)
	})

	t.Run("Secret Guarded", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(a, "DELETE", "/api/audio/hello", "").Code)
		assert.Equal(t, http.StatusUnauthorized, serve(a, "POST", "/jobs/job-1/retry?secret=bad", "").Code)
		assert.Equal(t, http.StatusUnauthorized, serve(a, "GET", "/api/revalidate?secret=bad", "").Code)

		assert.Equal(t, http.StatusOK, serve(a, "DELETE", "/api/audio/hello?secret=s3cret", "").Code)

		w := serve(a, "GET", "/api/revalidate?secret=s3cret&path=/", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"revalidated":true}`, w.Body.String())
	})

	t.Run("Stats", func(t *testing.T) {
		dbMock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		w := serve(a, "GET", "/stats", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":{"posts":2,"narrated":0,"failed_jobs":1}}`, w.Body.String())
	})

	t.Run("Metrics", func(t *testing.T) {
		w := serve(a, "GET", "/metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "postcast_generations_total")
	})
}

func TestNew_JobsDisabled(t *testing.T) {
	gh := fakeGitHub(t, map[string]string{})

	a, err := app.New(testConfig(t, gh.URL, ""), &app.Dependencies{})
	require.NoError(t, err)
	assert.Nil(t, a.Jobs)

	assert.Equal(t, http.StatusNotFound, serve(a, "GET", "/jobs/failed", "").Code)

	w := serve(a, "GET", "/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"posts":0,"narrated":0,"failed_jobs":0}}`, w.Body.String())
}

func TestApp_Run_Shutdown(t *testing.T) {
	gh := fakeGitHub(t, map[string]string{})
	cfg := testConfig(t, gh.URL, "")
	cfg.ServerPort = 18089

	a, err := app.New(cfg, &app.Dependencies{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://localhost:18089/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
