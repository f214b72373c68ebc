package dedupe

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventKeyPrefix = "webhook:event:"
	eventKeyTTL    = 24 * time.Hour
)

// Redis backs the cache with SETNX + TTL so multiple instances share one
// dedupe view.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	return r.client.SetNX(ctx, eventKeyPrefix+eventID, 1, eventKeyTTL).Result()
}

func (r *Redis) Release(ctx context.Context, eventID string) error {
	return r.client.Del(ctx, eventKeyPrefix+eventID).Err()
}
