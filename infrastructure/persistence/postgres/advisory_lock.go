package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rndindex/application/ports"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ConnPool hands out dedicated connections; *pgxpool.Pool satisfies it
type ConnPool interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// AdvisoryLock is a rebuild lock backed by a session-level advisory lock.
// The lock lives as long as the connection holding it, so a crashed process
// releases it without waiting for a TTL.
type AdvisoryLock struct {
	pool     ConnPool
	resource string
	logger   *zap.Logger
}

// NewAdvisoryLock creates a lock keyed by the hash of resource
func NewAdvisoryLock(pool ConnPool, resource string, logger *zap.Logger) *AdvisoryLock {
	return &AdvisoryLock{pool: pool, resource: resource, logger: logger}
}

// Acquire tries the advisory lock without blocking. ttl is not used.
func (l *AdvisoryLock) Acquire(ctx context.Context, owner string, ttl time.Duration) (ports.Lock, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, l.resource).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to take advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, ports.ErrLockHeld
	}

	l.logger.Debug("Advisory lock acquired",
		zap.String("resource", l.resource),
		zap.String("owner", owner),
	)
	return &advisoryHandle{lock: l, conn: conn, owner: owner}, nil
}

type advisoryHandle struct {
	lock  *AdvisoryLock
	conn  *pgxpool.Conn
	owner string
	once  sync.Once
	err   error
}

// Release unlocks and returns the connection to the pool
func (h *advisoryHandle) Release(ctx context.Context) error {
	h.once.Do(func() {
		defer h.conn.Release()
		if _, err := h.conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, h.lock.resource); err != nil {
			// closing the session drops the lock as well
			_ = h.conn.Conn().Close(ctx)
			h.err = fmt.Errorf("failed to release advisory lock: %w", err)
			return
		}
		h.lock.logger.Debug("Advisory lock released",
			zap.String("resource", h.lock.resource),
			zap.String("owner", h.owner),
		)
	})
	return h.err
}
