package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/md-rashed-zaman/slotbook/libs/db"
)

// PostgresMutex uses session advisory locks. Each held key pins one pooled
// connection until Release.
type PostgresMutex struct {
	pool      *db.Pool
	pollEvery time.Duration

	mu   sync.Mutex
	held map[string]*pgxpool.Conn
}

func NewPostgresMutex(pool *db.Pool) *PostgresMutex {
	return &PostgresMutex{pool: pool, pollEvery: defaultPollEvery, held: map[string]*pgxpool.Conn{}}
}

func (m *PostgresMutex) Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	conn, err := m.pool.Acquire(acquireCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			// Pool exhausted within the wait budget.
			return false, nil
		}
		return false, err
	}

	ok, err := poll(ctx, timeout, m.pollEvery, func() (bool, error) {
		var got bool
		err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key).Scan(&got)
		return got, err
	})
	if err != nil || !ok {
		conn.Release()
		return false, err
	}

	m.mu.Lock()
	m.held[key] = conn
	m.mu.Unlock()
	return true, nil
}

func (m *PostgresMutex) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	conn, ok := m.held[key]
	delete(m.held, key)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	defer conn.Release()

	var unlocked bool
	err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key).Scan(&unlocked)
	if err != nil {
		// The session may still own the lock; closing it is the only way to
		// drop it.
		_ = conn.Conn().Close(context.Background())
		return fmt.Errorf("advisory unlock %q: %w", key, err)
	}
	return nil
}
