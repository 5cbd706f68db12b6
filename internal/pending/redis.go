package pending

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rafaelcoelhox/go-vip-access/internal/redisx"
)

// RedisTracker stores pending entries and pre-authorizations as TTL'd keys so
// stale requests age out on their own.
type RedisTracker struct {
	RDB *redis.Client
}

var _ Tracker = (*RedisTracker)(nil)

func (t *RedisTracker) RecordRequest(ctx context.Context, userID int64) error {
	key := fmt.Sprintf(redisx.KeyPendingEntry, userID)
	return t.RDB.Set(ctx, key, "1", redisx.TTLPendingEntry).Err()
}

func (t *RedisTracker) IsPending(ctx context.Context, userID int64) (bool, error) {
	return redisx.Exists(ctx, t.RDB, fmt.Sprintf(redisx.KeyPendingEntry, userID))
}

func (t *RedisTracker) Clear(ctx context.Context, userID int64) error {
	return t.RDB.Del(ctx, fmt.Sprintf(redisx.KeyPendingEntry, userID)).Err()
}

func (t *RedisTracker) PreAuthorize(ctx context.Context, userID int64, orderID string) error {
	key := fmt.Sprintf(redisx.KeyPreauth, userID)
	return t.RDB.Set(ctx, key, orderID, redisx.TTLPreauth).Err()
}

func (t *RedisTracker) IsPreAuthorized(ctx context.Context, userID int64) (bool, error) {
	return redisx.Exists(ctx, t.RDB, fmt.Sprintf(redisx.KeyPreauth, userID))
}

func (t *RedisTracker) ClearPreAuthorization(ctx context.Context, userID int64) error {
	return t.RDB.Del(ctx, fmt.Sprintf(redisx.KeyPreauth, userID)).Err()
}
