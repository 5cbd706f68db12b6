// Package profile stores the little per-user data the checkout needs: the
// payer email sent to the gateway. Users who never set one get a synthetic
// address, so an entry here is an override, not a requirement.
package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rafaelcoelhox/go-vip-access/internal/redisx"
)

type Directory interface {
	// SetEmail stores the payer email. Returns false when the address fails
	// the minimal shape check.
	SetEmail(ctx context.Context, userID int64, email string) (bool, error)

	// GetEmail returns the stored email, or "" when none was set.
	GetEmail(ctx context.Context, userID int64) (string, error)
}

// ValidEmail is deliberately loose; the gateway does the real validation.
func ValidEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".") && !strings.ContainsAny(email, " \t\n")
}

type RedisDirectory struct {
	RDB *redis.Client
}

var _ Directory = (*RedisDirectory)(nil)

func (d *RedisDirectory) SetEmail(ctx context.Context, userID int64, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return false, nil
	}
	key := fmt.Sprintf(redisx.KeyUserEmail, userID)
	if err := d.RDB.Set(ctx, key, email, 0).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (d *RedisDirectory) GetEmail(ctx context.Context, userID int64) (string, error) {
	v, err := d.RDB.Get(ctx, fmt.Sprintf(redisx.KeyUserEmail, userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
