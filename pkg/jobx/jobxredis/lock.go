package jobxredis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-hq/meridian/pkg/errx"
)

const lockKey = "jobx:dispatch-lock"

// LeaderLock implements jobx.LeaderLock with a Redis SET NX lease. Each
// worker process gets a unique instance ID; holding the key means this
// instance is the dispatcher. The lease is re-extended on every Acquire, so
// a healthy leader keeps it and a crashed one loses it after the TTL.
type LeaderLock struct {
	rdb        *redis.Client
	instanceID string
	ttl        time.Duration
}

func NewLeaderLock(rdb *redis.Client, ttl time.Duration) *LeaderLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LeaderLock{
		rdb:        rdb,
		instanceID: uuid.NewString(),
		ttl:        ttl,
	}
}

// Acquire takes or refreshes the dispatch lease. It returns true when this
// instance is the leader after the call.
func (l *LeaderLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, lockKey, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, errx.Wrap(err, "failed to acquire dispatch lock", errx.TypeExternal)
	}
	if ok {
		return true, nil
	}

	holder, err := l.rdb.Get(ctx, lockKey).Result()
	if err != nil {
		if err == redis.Nil {
			// Lease expired between SetNX and Get; next tick will take it.
			return false, nil
		}
		return false, errx.Wrap(err, "failed to read dispatch lock holder", errx.TypeExternal)
	}
	if holder != l.instanceID {
		return false, nil
	}

	// Still the holder: extend the lease.
	if err := l.rdb.Expire(ctx, lockKey, l.ttl).Err(); err != nil {
		return false, errx.Wrap(err, "failed to extend dispatch lock", errx.TypeExternal)
	}
	return true, nil
}

// Release gives the lease up if this instance holds it.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

func (l *LeaderLock) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.rdb, []string{lockKey}, l.instanceID).Err()
	if err != nil && err != redis.Nil {
		return errx.Wrap(err, "failed to release dispatch lock", errx.TypeExternal)
	}
	return nil
}
