package memory

import (
	"context"
	"sync"
	"time"

	"rndindex/application/ports"
)

// RebuildLock is a process-local rebuild lock with expiry
type RebuildLock struct {
	mu        sync.Mutex
	owner     string
	token     uint64
	expiresAt time.Time
	now       func() time.Time
}

// NewRebuildLock creates an unheld lock
func NewRebuildLock() *RebuildLock {
	return &RebuildLock{now: time.Now}
}

// Acquire takes the lock unless an unexpired holder exists
func (l *RebuildLock) Acquire(ctx context.Context, owner string, ttl time.Duration) (ports.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.owner != "" && now.Before(l.expiresAt) {
		return nil, ports.ErrLockHeld
	}
	l.token++
	l.owner = owner
	l.expiresAt = now.Add(ttl)
	return &localLock{lock: l, token: l.token}, nil
}

type localLock struct {
	lock  *RebuildLock
	token uint64
	once  sync.Once
}

// Release frees the lock if it was not taken over after expiry
func (h *localLock) Release(ctx context.Context) error {
	h.once.Do(func() {
		h.lock.mu.Lock()
		defer h.lock.mu.Unlock()
		if h.lock.token == h.token {
			h.lock.owner = ""
		}
	})
	return nil
}
