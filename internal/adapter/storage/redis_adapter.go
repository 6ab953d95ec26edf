package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"flashline/internal/core/domain"
)

// RedisAdapter implements port.CacheRepository on a single Redis instance.
// Correctness relies on Redis primitives (ZADD NX, ZPOPMIN, SETNX, atomic
// INCR/DECR) plus the per-sale lock held by the callers, never on in-process
// synchronization.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) LineAdd(ctx context.Context, saleID, email string, enqueuedAt time.Time) (bool, error) {
	added, err := r.client.ZAddNX(ctx, lineKey(saleID), redis.Z{
		Score:  float64(enqueuedAt.UnixMilli()),
		Member: email,
	}).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

func (r *RedisAdapter) LineRank(ctx context.Context, saleID, email string) (int64, error) {
	rank, err := r.client.ZRank(ctx, lineKey(saleID), email).Result()
	if errors.Is(err, redis.Nil) {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return rank, nil
}

func (r *RedisAdapter) LineSize(ctx context.Context, saleID string) (int64, error) {
	return r.client.ZCard(ctx, lineKey(saleID)).Result()
}

func (r *RedisAdapter) LineRemove(ctx context.Context, saleID, email string) error {
	return r.client.ZRem(ctx, lineKey(saleID), email).Err()
}

func (r *RedisAdapter) LinePopMin(ctx context.Context, saleID string) (string, bool, error) {
	popped, err := r.client.ZPopMin(ctx, lineKey(saleID), 1).Result()
	if err != nil {
		return "", false, err
	}
	if len(popped) == 0 {
		return "", false, nil
	}
	email, ok := popped[0].Member.(string)
	if !ok {
		return "", false, errors.New("unexpected member type in waiting line")
	}
	return email, true, nil
}

func (r *RedisAdapter) InitStock(ctx context.Context, saleID string, quantity int) error {
	return r.client.SetNX(ctx, stockKey(saleID), quantity, 0).Err()
}

func (r *RedisAdapter) Stock(ctx context.Context, saleID string) (int64, error) {
	stock, err := r.client.Get(ctx, stockKey(saleID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

func (r *RedisAdapter) IncrStock(ctx context.Context, saleID string) (int64, error) {
	return r.client.Incr(ctx, stockKey(saleID)).Result()
}

func (r *RedisAdapter) GrantHold(ctx context.Context, saleID, email string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Decr(ctx, stockKey(saleID))
	pipe.Set(ctx, holdKey(saleID, email), 1, ttl)
	pipe.ZRem(ctx, lineKey(saleID), email)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisAdapter) HoldTTL(ctx context.Context, saleID, email string) (time.Duration, error) {
	ttl, err := r.client.PTTL(ctx, holdKey(saleID, email)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		// -2 key missing, -1 no expiry; neither counts as an active hold.
		return 0, nil
	}
	return ttl, nil
}

func (r *RedisAdapter) Consumed(ctx context.Context, saleID, email string) (bool, error) {
	n, err := r.client.Exists(ctx, consumedKey(saleID, email)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisAdapter) AcquireClaim(ctx context.Context, saleID, email string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, claimKey(saleID, email), 1, ttl).Result()
}

func (r *RedisAdapter) ClaimTTL(ctx context.Context, saleID, email string) (time.Duration, error) {
	ttl, err := r.client.PTTL(ctx, claimKey(saleID, email)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (r *RedisAdapter) ReleaseClaim(ctx context.Context, saleID, email string) error {
	return r.client.Del(ctx, claimKey(saleID, email)).Err()
}

func (r *RedisAdapter) FinalizePurchase(ctx context.Context, saleID, email string, consumedTTL time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, consumedKey(saleID, email), 1, consumedTTL)
	pipe.Del(ctx, holdKey(saleID, email))
	pipe.ZRem(ctx, lineKey(saleID), email)
	pipe.Del(ctx, claimKey(saleID, email))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisAdapter) SaleMeta(ctx context.Context, saleID string) (domain.SaleMeta, bool, error) {
	raw, err := r.client.Get(ctx, metaKey(saleID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SaleMeta{}, false, nil
	}
	if err != nil {
		return domain.SaleMeta{}, false, err
	}
	var meta domain.SaleMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		// Malformed cache entries are a miss, never trusted.
		return domain.SaleMeta{}, false, nil
	}
	return meta, true, nil
}

func (r *RedisAdapter) SetSaleMeta(ctx context.Context, meta domain.SaleMeta, ttl time.Duration) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, metaKey(meta.SaleID), raw, ttl).Err()
}
