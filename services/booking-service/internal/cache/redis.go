package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tag sets outlive their entries so a late Set never leaves a key that no
// tag can reach.
const tagGrace = time.Hour

var invalidateScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
local removed = 0
for i = 1, #members do
	removed = removed + redis.call('DEL', members[i])
end
redis.call('DEL', KEYS[1])
return removed
`)

// RedisStore keeps each value under its own key with a PX TTL and indexes it
// in one Redis set per tag.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "slotbook:avail:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	full := s.prefix + key
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, full, value, ttl)
		for _, tag := range tags {
			tagKey := s.tagKey(tag)
			pipe.SAdd(ctx, tagKey, full)
			if ttl > 0 {
				pipe.PExpire(ctx, tagKey, ttl+tagGrace)
			}
		}
		return nil
	})
	return err
}

func (s *RedisStore) InvalidateTag(ctx context.Context, tag string) (int, error) {
	n, err := invalidateScript.Run(ctx, s.client, []string{s.tagKey(tag)}).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RedisStore) tagKey(tag string) string {
	return s.prefix + "tag:" + tag
}
