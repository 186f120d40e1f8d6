// Package lock provides per-key mutual exclusion with bounded waits. The
// Postgres and Redis backends hold across processes.
package lock

import (
	"context"
	"sync"
	"time"
)

// Mutex serializes work on a key. Acquire returns false, not an error, when
// the key could not be taken within timeout.
type Mutex interface {
	Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

const defaultPollEvery = 25 * time.Millisecond

// poll retries try until it succeeds, fails, the deadline passes or ctx ends.
func poll(ctx context.Context, timeout, every time.Duration, try func() (bool, error)) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := try()
		if err != nil || ok {
			return ok, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		wait := every
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// LocalMutex only serializes goroutines of one process. A key's entry lives
// while someone holds or waits for it.
type LocalMutex struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalMutex() *LocalMutex {
	return &LocalMutex{slots: map[string]*localSlot{}}
}

func (m *LocalMutex) ref(key string) *localSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.slots[key]
	if !ok {
		sl = &localSlot{ch: make(chan struct{}, 1)}
		m.slots[key] = sl
	}
	sl.refs++
	return sl
}

func (m *LocalMutex) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sl, ok := m.slots[key]; ok {
		if sl.refs--; sl.refs <= 0 {
			delete(m.slots, key)
		}
	}
}

func (m *LocalMutex) Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	sl := m.ref(key)
	select {
	case sl.ch <- struct{}{}:
		return true, nil
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case sl.ch <- struct{}{}:
		return true, nil
	case <-timer.C:
		m.unref(key)
		return false, nil
	case <-ctx.Done():
		m.unref(key)
		return false, ctx.Err()
	}
}

// Release is a no-op for keys that are not held.
func (m *LocalMutex) Release(_ context.Context, key string) error {
	m.mu.Lock()
	sl, ok := m.slots[key]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-sl.ch:
		m.unref(key)
	default:
	}
	return nil
}

// Len reports how many keys are currently held or awaited.
func (m *LocalMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
