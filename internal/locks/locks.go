// Package locks serializes work on a key, either inside one process or across
// processes sharing a Redis server (Redlock via go-redsync).
package locks

import (
	"context"
	"sync"
	"time"

	"api-client/internal/common/errors"
)

// Lock is a held lock
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

// Locker acquires locks. AcquireLock blocks until the lock is held or ctx is
// done. The expiration bounds how long a crashed holder can block others;
// local locks ignore it.
type Locker interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error)
}

// LocalLocker is an in-process Locker
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// AcquireLock implements Locker
func (l *LocalLocker) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	ch := l.slot(key)

	select {
	case ch <- struct{}{}:
		return &localLock{key: key, ch: ch}, nil
	case <-ctx.Done():
		return nil, errors.TimeoutError("acquiring lock " + key)
	}
}

type localLock struct {
	key  string
	ch   chan struct{}
	once sync.Once
}

func (l *localLock) Key() string { return l.key }

func (l *localLock) Release(ctx context.Context) error {
	l.once.Do(func() { <-l.ch })
	return nil
}
