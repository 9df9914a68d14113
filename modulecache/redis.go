package modulecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache shared across a team or CI fleet compiling the same
// module graph repeatedly. Adapted from store/redis/redis.go's checkpoint
// store, trading its execution-ID secondary index for a flat
// full-name-keyed cache (a compile cache has no notion of "execution" to
// index by).
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configures a Redis-backed cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // key prefix, default "chi:modulecache:"
	TTL      time.Duration // entry expiration, default 0 (no expiration)
}

// NewRedis creates a Redis-backed compile cache.
func NewRedis(opts RedisOptions) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "chi:modulecache:"
	}

	return &Redis{client: client, prefix: prefix, ttl: opts.TTL}
}

func (r *Redis) key(fullName string) string {
	return fmt.Sprintf("%sentry:%s", r.prefix, fullName)
}

func (r *Redis) Get(ctx context.Context, fullName, contentHash string) (*Entry, bool, error) {
	data, err := r.client.Get(ctx, r.key(fullName)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("modulecache: failed to load entry from redis: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("modulecache: failed to unmarshal entry: %w", err)
	}
	if e.ContentHash != contentHash {
		return nil, false, nil
	}
	return &e, true, nil
}

func (r *Redis) Put(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("modulecache: failed to marshal entry: %w", err)
	}
	if err := r.client.Set(ctx, r.key(entry.FullName), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("modulecache: failed to store entry in redis: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, fullName string) error {
	if err := r.client.Del(ctx, r.key(fullName)).Err(); err != nil {
		return fmt.Errorf("modulecache: failed to invalidate entry: %w", err)
	}
	return nil
}
