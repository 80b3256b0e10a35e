package downloads

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore backs download tokens with Redis so links survive process
// restarts and multiple replicas agree on single-use redemption.
type RedisTokenStore struct {
	client *redis.Client
	prefix string
}

var _ TokenStore = (*RedisTokenStore)(nil)

// NewRedisTokenStore wraps an existing Redis client.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client, prefix: "dl:"}
}

func (s *RedisTokenStore) Register(ctx context.Context, tokenID string, ttl time.Duration) error {
	return s.client.SetNX(ctx, s.prefix+tokenID, "1", ttl).Err()
}

func (s *RedisTokenStore) Consume(ctx context.Context, tokenID string) (bool, error) {
	// GETDEL makes redemption atomic across replicas.
	_, err := s.client.GetDel(ctx, s.prefix+tokenID).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
