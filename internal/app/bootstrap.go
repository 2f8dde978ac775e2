package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"

	"postcast/internal/adapter/blob"
	"postcast/internal/config"
	"postcast/internal/events"
)

// Dependencies holds the external connections. DB, Redis and NSQProducer are
// nil when the matching feature is not configured.
type Dependencies struct {
	DB          *sql.DB
	Redis       *redis.Client
	NSQProducer *nsq.Producer
	Store       *blob.Store
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	attempts := max(cfg.BootstrapRetryAttempts, 1)

	deps := &Dependencies{}

	// Database
	if cfg.EnableJobs {
		db, err := sql.Open("postgres", cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}

		if err := WithRetry(ctx, "db", attempts, retryDelay, db.PingContext); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping db: %w", err)
		}

		if err := migrateUp(db, cfg.MigrationPath); err != nil {
			db.Close()
			return nil, err
		}
		deps.DB = db
	}

	// Redis
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		if err := WithRetry(ctx, "redis", attempts, retryDelay, ping); err != nil {
			client.Close()
			deps.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		deps.Redis = client
	}

	// NSQ Producer
	if cfg.NSQDHost != "" {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		deps.NSQProducer = producer

		if cfg.NSQDHTTP != "" {
			go func() {
				time.Sleep(2 * time.Second)
				events.CreateTopics(context.Background(), cfg.NSQDHTTP,
					config.TopicAudioGenerated, config.TopicAudioDeleted, config.TopicContentRevalidate)
			}()
		}
	}

	// Object storage
	store, err := blob.New(ctx, blob.Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		UsePathStyle:    cfg.S3UsePathStyle,
		PublicBaseURL:   cfg.S3PublicBaseURL,
	})
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("storage error: %w", err)
	}
	if !store.Configured() {
		slog.Warn("S3_BUCKET not set, narrations will be reported as absent and cannot be saved")
	}
	deps.Store = store

	return deps, nil
}

func migrateUp(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied successfully")
	return nil
}

// WithRetry calls fn up to attempts times, sleeping delay between failures.
func WithRetry(ctx context.Context, name string, attempts int, delay time.Duration, fn func(context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		slog.Warn("dependency not ready, retrying...", "dependency", name, "attempt", i+1, "max_attempts", attempts, "error", err)
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}

func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			slog.Warn("failed to close redis", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
}
