package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisMutex is a single-instance Redis lock. The lease bounds how long a
// crashed holder can block a key.
type RedisMutex struct {
	client    redis.UniversalClient
	prefix    string
	lease     time.Duration
	pollEvery time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisMutex(client redis.UniversalClient, lease time.Duration) *RedisMutex {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	return &RedisMutex{
		client:    client,
		prefix:    "slotbook:mutex:",
		lease:     lease,
		pollEvery: defaultPollEvery,
		tokens:    map[string]string{},
	}
}

func (m *RedisMutex) Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := poll(ctx, timeout, m.pollEvery, func() (bool, error) {
		return m.client.SetNX(ctx, m.prefix+key, token, m.lease).Result()
	})
	if err != nil || !ok {
		return false, err
	}
	m.mu.Lock()
	m.tokens[key] = token
	m.mu.Unlock()
	return true, nil
}

func (m *RedisMutex) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	token, ok := m.tokens[key]
	delete(m.tokens, key)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return releaseScript.Run(ctx, m.client, []string{m.prefix + key}, token).Err()
}
