package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/commerce-core/internal/core/domain"
)

const (
	journalLockKeyPrefix = "journal-lock:"
	projectionKeyPrefix  = "projection:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// releaseLockScript deletes the lock only while it still holds the caller's token.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func journalLockKey(key domain.InventoryKey) string {
	return journalLockKeyPrefix + key.String()
}

func projectionKey(storeCode, attributeKey string) string {
	return projectionKeyPrefix + storeCode + ":" + attributeKey
}

func (r *RedisAdapter) AcquireJournalLock(ctx context.Context, key domain.InventoryKey, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, journalLockKey(key), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire journal lock: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (r *RedisAdapter) ReleaseJournalLock(ctx context.Context, key domain.InventoryKey, token string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{journalLockKey(key)}, token).Err(); err != nil {
		return fmt.Errorf("release journal lock: %w", err)
	}
	return nil
}

func (r *RedisAdapter) GetProjection(ctx context.Context, storeCode, attributeKey string) (*domain.AttributeProjection, error) {
	data, err := r.client.Get(ctx, projectionKey(storeCode, attributeKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get projection: %w", err)
	}

	var projection domain.AttributeProjection
	if err := json.Unmarshal(data, &projection); err != nil {
		return nil, fmt.Errorf("decode projection: %w", err)
	}
	return &projection, nil
}

func (r *RedisAdapter) SetProjection(ctx context.Context, projection domain.AttributeProjection, ttl time.Duration) error {
	data, err := json.Marshal(projection)
	if err != nil {
		return fmt.Errorf("encode projection: %w", err)
	}
	return r.client.Set(ctx, projectionKey(projection.Store, projection.Attribute), data, ttl).Err()
}

func (r *RedisAdapter) DeleteProjection(ctx context.Context, storeCode, attributeKey string) error {
	return r.client.Del(ctx, projectionKey(storeCode, attributeKey)).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ClearIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
