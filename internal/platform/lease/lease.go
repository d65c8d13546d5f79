// Package lease grants short exclusive leases keyed by name. Schedulers take
// one per cycle so only one replica runs it; the renewal workflow takes one per
// document while a renewal is being committed.
package lease

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fleetdocs:lease:"

// releaseScript deletes the key only while it still holds the caller's token,
// so an expired lease re-acquired by someone else is never released early.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var errEmptyKey = errors.New("lease key is required")

// Redis is a Locker backed by SET NX PX.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// TryLock returns ok=false without error when the lease is held elsewhere.
func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, errEmptyKey
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock releases the lease if token still owns it. Releasing a lease that
// already expired is not an error.
func (r *Redis) Unlock(ctx context.Context, key, token string) error {
	if key == "" {
		return errEmptyKey
	}
	return releaseScript.Run(ctx, r.client, []string{keyPrefix + key}, token).Err()
}
