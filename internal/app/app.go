package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"postcast/features/job"
	"postcast/features/narration"
	"postcast/features/post"
	"postcast/features/stats"
	"postcast/internal/adapter/blob"
	"postcast/internal/adapter/github"
	"postcast/internal/adapter/voice"
	"postcast/internal/audio"
	"postcast/internal/audit"
	"postcast/internal/cache"
	"postcast/internal/config"
	"postcast/internal/content"
	"postcast/internal/events"
	"postcast/internal/inflight"
	"postcast/internal/metrics"
	"postcast/internal/middleware"
)

type App struct {
	Handler   http.Handler
	Narration *narration.Service
	Posts     *content.Repository
	Jobs      *job.Service
	port      int
}

func New(cfg *config.Config, deps *Dependencies) (*App, error) {
	store := deps.Store
	if store == nil {
		var err error
		if store, err = blob.New(context.Background(), blob.Config{}); err != nil {
			return nil, err
		}
	}

	// Content
	gh := github.NewClient(cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBranch, cfg.GitHubToken)
	gh.SetBaseURLs(cfg.GitHubAPIURL, cfg.GitHubRawURL)

	var postsCache content.Cache
	if deps.Redis != nil {
		postsCache = cache.NewRedisCache(deps.Redis, cache.WithTTL(cfg.PostsCacheTTL))
	}
	posts := content.NewRepository(gh, postsCache)

	// Synthesis
	voiceClient := voice.NewClient(cfg.VoiceAPIURL,
		voice.WithLanguage(cfg.VoiceLanguage),
		voice.WithMaxAttempts(cfg.SynthesisMaxAttempts),
		voice.WithRateLimit(cfg.SynthesisRateLimit),
	)

	var joiner audio.Joiner = audio.ConcatJoiner{}
	if cfg.AudioJoiner == "ffmpeg" {
		joiner = audio.FFmpegJoiner{}
	}
	assembler := audio.NewAssembler(voiceClient, joiner, cfg.ChunkMaxChars)

	// Events
	var producer events.Producer
	if deps.NSQProducer != nil {
		producer = deps.NSQProducer
	}
	publisher := events.NewPublisher(producer)

	generationLog, err := audit.NewFileGenerationLogger(cfg.GenerationLogPath)
	if err != nil {
		slog.Warn("failed to create generation logger, falling back to stdout", "error", err)
		generationLog = audit.NewGenerationLogger(os.Stdout)
	}

	opts := []narration.Option{
		narration.WithGuard(inflight.New(deps.Redis, inflight.WithLockTTL(cfg.LockTTL))),
		narration.WithPublisher(publisher),
		narration.WithAuditLog(generationLog),
		narration.WithMinChars(cfg.MinNarrationChars),
	}

	// Feature: Job
	var jobService *job.Service
	if deps.DB != nil {
		jobService = job.NewService(job.NewPostgresRepo(deps.DB), nil)
		opts = append(opts, narration.WithRecorder(jobService))
	}

	// Feature: Narration
	narrationService := narration.NewService(posts, store, assembler, opts...)
	narrationHandler := narration.NewHandler(narrationService)
	if jobService != nil {
		jobService.SetGenerator(narrationService.Retry)
	}

	// Feature: Post
	postHandler := post.NewHandler(posts, narrationService, publisher)

	// Feature: Stats
	var jobCounter stats.JobRepo
	if jobService != nil {
		jobCounter = jobService
	}
	statsHandler := stats.NewHandler(posts, jobCounter, store)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, HEAD, OPTIONS, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}
	secret := func(next http.HandlerFunc) http.HandlerFunc {
		return middleware.RequireSecret(cfg.SecretKey, next)
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /api/audio/generate", middleware.CorrelationID(enableCORS(narrationHandler.Generate)))
	mux.Handle("GET /api/audio/{$}", middleware.CorrelationID(enableCORS(narrationHandler.MissingID)))
	mux.Handle("GET /api/audio/{postId}", middleware.CorrelationID(enableCORS(narrationHandler.Get)))
	mux.Handle("HEAD /api/audio/{postId}", middleware.CorrelationID(enableCORS(narrationHandler.Head)))
	mux.Handle("GET /api/audio/{postId}/url", middleware.CorrelationID(enableCORS(narrationHandler.URL)))
	mux.Handle("DELETE /api/audio/{postId}", middleware.CorrelationID(enableCORS(secret(narrationHandler.Delete))))

	mux.Handle("GET /api/posts", middleware.CorrelationID(enableCORS(postHandler.List)))
	mux.Handle("GET /api/posts/{postId}", middleware.CorrelationID(enableCORS(postHandler.Get)))
	mux.Handle("GET /api/revalidate", middleware.CorrelationID(enableCORS(secret(postHandler.Revalidate))))

	if jobService != nil {
		jobHandler := job.NewHandler(jobService)
		mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
		mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(secret(jobHandler.Retry))))
	}

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.Handle("GET /metrics", metrics.Handler(metrics.NewRegistry()))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Preflight requests are answered before routing so every path accepts them.
	handler := enableCORS(mux.ServeHTTP)

	return &App{
		Handler:   handler,
		Narration: narrationService,
		Posts:     posts,
		Jobs:      jobService,
		port:      cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
