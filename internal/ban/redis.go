package ban

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const banKeyPrefix = "ban:v1:"

// RedisRegistry stores banned fingerprints as bare Redis keys.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry builds a Redis-backed ban registry.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

// IsBanned reports whether the fingerprint is present in the set.
func (r *RedisRegistry) IsBanned(ctx context.Context, fingerprint string) (bool, error) {
	n, err := r.client.Exists(ctx, banKeyPrefix+fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("ban lookup: %w", err)
	}
	return n > 0, nil
}

// Ban adds the fingerprint. Banning an already banned fingerprint is a no-op.
func (r *RedisRegistry) Ban(ctx context.Context, fingerprint string) error {
	if err := r.client.Set(ctx, banKeyPrefix+fingerprint, 1, 0).Err(); err != nil {
		return fmt.Errorf("ban: %w", err)
	}
	return nil
}

// Unban removes the fingerprint. Unbanning an absent fingerprint is a no-op.
func (r *RedisRegistry) Unban(ctx context.Context, fingerprint string) error {
	if err := r.client.Del(ctx, banKeyPrefix+fingerprint).Err(); err != nil {
		return fmt.Errorf("unban: %w", err)
	}
	return nil
}
