// Package inflight collapses concurrent work on the same key, within one
// process through singleflight and across processes through a Redis lock.
package inflight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTTL  = 10 * time.Minute
	defaultPoll = 250 * time.Millisecond
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock re-acquired by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Guard struct {
	group  singleflight.Group
	client *redis.Client
	ttl    time.Duration
	poll   time.Duration
	prefix string
}

type Option func(*Guard)

// WithLockTTL bounds how long a crashed holder can block other processes.
func WithLockTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.poll = d
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(g *Guard) {
		g.prefix = prefix
	}
}

// New returns a guard. A nil client limits it to in-process deduplication.
func New(client *redis.Client, opts ...Option) *Guard {
	g := &Guard{
		client: client,
		ttl:    defaultTTL,
		poll:   defaultPoll,
		prefix: "postcast:lock:",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do runs fn for key unless a call for the same key is already running here,
// in which case it waits for and shares that result. shared reports whether
// the result came from another caller.
//
// fn runs detached from the cancellation of whichever caller started it, so
// one caller going away never fails the others. Each caller's ctx only bounds
// its own wait.
func (g *Guard) Do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (v any, shared bool, err error) {
	ch := g.group.DoChan(key, func() (any, error) {
		run := context.WithoutCancel(ctx)
		if g.client == nil {
			return fn(run)
		}

		token, err := g.acquire(run, key)
		if err != nil {
			return nil, err
		}
		if token != "" {
			defer g.release(run, key, token)
		}

		return fn(run)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	}
}

// acquire polls for the lock for at most one TTL, after which any holder's
// lock has expired. An empty token with a nil error means Redis could not be
// reached and the run proceeds with in-process deduplication only.
func (g *Guard) acquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	lockKey := g.prefix + key

	ctx, cancel := context.WithTimeout(ctx, g.ttl)
	defer cancel()

	for {
		ok, err := g.client.SetNX(ctx, lockKey, token, g.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
			}
			slog.WarnContext(ctx, "lock unavailable, continuing without it", "key", key, "error", err)
			return "", nil
		}
		if ok {
			return token, nil
		}

		slog.DebugContext(ctx, "waiting for lock", "key", key)
		t := time.NewTimer(g.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
		case <-t.C:
		}
	}
}

func (g *Guard) release(ctx context.Context, key, token string) {
	if err := releaseScript.Run(ctx, g.client, []string{g.prefix + key}, token).Err(); err != nil {
		slog.WarnContext(ctx, "failed to release lock", "key", key, "error", err)
	}
}
