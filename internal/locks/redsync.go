package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"api-client/internal/common/errors"
	"api-client/internal/redis"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

// RedsyncLocker is a distributed Locker using the Redlock algorithm
type RedsyncLocker struct {
	redsync *redsync.Redsync
	prefix  string
}

// NewRedsyncLocker creates a distributed locker on top of redisClient
func NewRedsyncLocker(redisClient *redis.Client) (*RedsyncLocker, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(redisClient.GetGoRedisClient())

	return &RedsyncLocker{
		redsync: redsync.New(pool),
		prefix:  "lock:",
	}, nil
}

// AcquireLock implements Locker. It retries until the lock is free or ctx is done.
func (r *RedsyncLocker) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	mutex := r.redsync.NewMutex(r.prefix+key,
		redsync.WithExpiry(expiration),
		redsync.WithTries(1<<20),
		redsync.WithRetryDelay(50*time.Millisecond),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, errors.TimeoutError(fmt.Sprintf("acquiring lock %s", key))
		}
		return nil, errors.InternalError("failed to acquire distributed lock", err)
	}

	return &redsyncLock{key: key, mutex: mutex}, nil
}

type redsyncLock struct {
	key      string
	mutex    *redsync.Mutex
	once     sync.Once
	unlocked error
}

func (l *redsyncLock) Key() string { return l.key }

func (l *redsyncLock) Release(ctx context.Context) error {
	l.once.Do(func() {
		if ok, err := l.mutex.UnlockContext(ctx); err != nil {
			l.unlocked = errors.InternalError("failed to release distributed lock", err)
		} else if !ok {
			l.unlocked = errors.InternalError("distributed lock already expired", nil)
		}
	})
	return l.unlocked
}
