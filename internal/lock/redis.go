package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig configures a RedisLocker.
type RedisConfig struct {
	// Prefix namespaces lock keys, e.g. "fractiz:lock:".
	Prefix string
	// TTL bounds how long a crashed holder can block a key.
	TTL time.Duration
	// MinBackoff and MaxBackoff bound the retry delay while waiting.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// DefaultRedisConfig returns the default lock settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Prefix:     "fractiz:lock:",
		TTL:        10 * time.Second,
		MinBackoff: 5 * time.Millisecond,
		MaxBackoff: 200 * time.Millisecond,
	}
}

// RedisLocker is a Locker shared by every process using the same Redis
// instance.
type RedisLocker struct {
	client *redis.Client
	cfg    RedisConfig
}

// NewRedisLocker creates a RedisLocker. Zero config fields take defaults.
func NewRedisLocker(client *redis.Client, cfg RedisConfig) *RedisLocker {
	def := DefaultRedisConfig()
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = def.MinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.MinBackoff)
	}
	return &RedisLocker{client: client, cfg: cfg}
}

// Key returns the Redis key used for a lock name.
func (r *RedisLocker) Key(key string) string {
	return r.cfg.Prefix + key
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := r.Key(key)
	token := uuid.NewString()
	backoff := r.cfg.MinBackoff

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.cfg.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, r.cfg.MaxBackoff)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// Release on a fresh context: the caller's may already be canceled.
		relCtx, cancel := context.WithTimeout(context.Background(), r.cfg.TTL)
		defer cancel()
		// On failure the TTL frees the key.
		_ = releaseScript.Run(relCtx, r.client, []string{redisKey}, token).Err()
	}, nil
}
