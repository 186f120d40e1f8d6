package softlock

import (
	"context"
	"sync"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type MemoryStore struct {
	mu     sync.Mutex
	locks  map[string]model.SoftLock
	tokens map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: map[string]model.SoftLock{}, tokens: map[string]string{}}
}

func (m *MemoryStore) Create(_ context.Context, key string, lock model.SoftLock, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.locks[key]; ok {
		if cur.ExpiresAt.After(now) {
			return false, nil
		}
		delete(m.tokens, cur.Token)
	}
	m.locks[key] = lock
	m.tokens[lock.Token] = key
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, key string, now time.Time) (model.SoftLock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.locks[key]
	if !ok || !cur.ExpiresAt.After(now) {
		return model.SoftLock{}, false, nil
	}
	return cur, true, nil
}

func (m *MemoryStore) DeleteToken(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.tokens[token]
	if !ok {
		return false, nil
	}
	delete(m.tokens, token)
	if cur, ok := m.locks[key]; ok && cur.Token == token {
		delete(m.locks, key)
		return true, nil
	}
	return false, nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, cur := range m.locks {
		if !cur.ExpiresAt.After(now) {
			delete(m.locks, key)
			delete(m.tokens, cur.Token)
			n++
		}
	}
	return n, nil
}
