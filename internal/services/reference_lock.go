package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
)

// ReferenceLock serializes concurrent confirmations of the same gateway
// reference with a Redis SET NX lease. It is an optimization that saves
// redundant gateway verify calls under races; correctness does not depend
// on it — the payments unique index is the real guarantee.
type ReferenceLock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewReferenceLock(client *redis.Client) *ReferenceLock {
	return &ReferenceLock{Client: client, TTL: 30 * time.Second}
}

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

// Acquire takes the lease for a reference and returns its release func.
// models.ErrReferenceLocked means another confirmation holds it right now.
func (l *ReferenceLock) Acquire(ctx context.Context, reference string) (func(), error) {
	key := "quickbill:reconcile:" + reference
	token := uuid.NewString()

	ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrReferenceLocked
	}
	release := func() {
		// Owner check so an expired lease cannot release a successor's.
		_ = unlockScript.Run(context.WithoutCancel(ctx), l.Client, []string{key}, token).Err()
	}
	return release, nil
}
