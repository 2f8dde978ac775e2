package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

type Config struct {
	// Synthesis
	VoiceAPIURL          string  `envconfig:"VOICE_API_URL"`
	VoiceLanguage        string  `envconfig:"VOICE_LANGUAGE" default:"en"`
	SynthesisMaxAttempts int     `envconfig:"SYNTHESIS_MAX_ATTEMPTS" default:"5"`
	SynthesisRateLimit   float64 `envconfig:"SYNTHESIS_RATE_LIMIT" default:"0"` // requests/second, 0 = unlimited
	ChunkMaxChars        int     `envconfig:"CHUNK_MAX_CHARS" default:"249"`
	MinNarrationChars    int     `envconfig:"MIN_NARRATION_CHARS" default:"10"`
	AudioJoiner          string  `envconfig:"AUDIO_JOINER" default:"concat"`

	// Content repository
	GitHubToken   string        `envconfig:"GITHUB_TOKEN"`
	GitHubOwner   string        `envconfig:"GITHUB_OWNER" default:"bhishman-desai"`
	GitHubRepo    string        `envconfig:"GITHUB_REPO" default:"blogposts"`
	GitHubBranch  string        `envconfig:"GITHUB_BRANCH" default:"main"`
	GitHubAPIURL  string        `envconfig:"GITHUB_API_URL" default:"https://api.github.com"`
	GitHubRawURL  string        `envconfig:"GITHUB_RAW_URL" default:"https://raw.githubusercontent.com"`
	PostsCacheTTL time.Duration `envconfig:"POSTS_CACHE_TTL" default:"24h"`

	// Object storage
	S3Bucket          string `envconfig:"S3_BUCKET"`
	S3Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `envconfig:"S3_USE_PATH_STYLE" default:"false"`
	S3PublicBaseURL   string `envconfig:"S3_PUBLIC_BASE_URL"`

	// Redis (optional: distributed generation lock and posts cache)
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL       time.Duration `envconfig:"GENERATION_LOCK_TTL" default:"10m"`

	// Failed generation jobs (Postgres)
	EnableJobs    bool   `envconfig:"ENABLE_JOBS" default:"true"`
	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"postcast"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"postcast"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Events
	NSQDHost string `envconfig:"NSQD_HOST"`
	NSQDHTTP string `envconfig:"NSQD_HTTP"`

	// Server
	ServerPort        int    `envconfig:"SERVER_PORT" default:"8081"`
	SecretKey         string `envconfig:"MY_SECRET_KEY"`
	GenerationLogPath string `envconfig:"GENERATION_LOG_PATH" default:"data/logs/generation.log"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win over .env; missing files are fine.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ChunkMaxChars <= 0 {
		return fmt.Errorf("%w: CHUNK_MAX_CHARS must be positive", ErrInvalidValue)
	}
	if c.SynthesisMaxAttempts < 1 {
		return fmt.Errorf("%w: SYNTHESIS_MAX_ATTEMPTS must be at least 1", ErrInvalidValue)
	}
	if c.SynthesisRateLimit < 0 {
		return fmt.Errorf("%w: SYNTHESIS_RATE_LIMIT must not be negative", ErrInvalidValue)
	}
	if c.AudioJoiner != "concat" && c.AudioJoiner != "ffmpeg" {
		return fmt.Errorf("%w: AUDIO_JOINER must be concat or ffmpeg", ErrInvalidValue)
	}
	if c.GitHubOwner == "" {
		return fmt.Errorf("%w: GITHUB_OWNER", ErrMissingRequired)
	}
	if c.GitHubRepo == "" {
		return fmt.Errorf("%w: GITHUB_REPO", ErrMissingRequired)
	}
	if c.EnableJobs {
		if c.DBHost == "" {
			return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
		}
		if c.DBUser == "" {
			return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
		}
		if c.DBName == "" {
			return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
		}
	}
	return nil
}

// DSN returns the lib/pq connection string for the jobs database.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}
