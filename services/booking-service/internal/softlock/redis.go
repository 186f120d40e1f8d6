package softlock

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

// Redis keeps the hash alive a little past ExpiresAt so the sweeper, not
// Redis eviction, decides when a hold is gone.
const expiryGrace = time.Minute

// KEYS: lock hash, token key, expiry zset
// ARGV: token, payload, expires_at ms, now ms, pexpire ms, token prefix
var acquireScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'expires_at')
if cur and tonumber(cur) > tonumber(ARGV[4]) then
	return 0
end
if cur then
	local old = redis.call('HGET', KEYS[1], 'token')
	if old then
		redis.call('DEL', ARGV[6] .. old)
	end
end
redis.call('HSET', KEYS[1], 'token', ARGV[1], 'payload', ARGV[2], 'expires_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
redis.call('SET', KEYS[2], KEYS[1], 'PX', ARGV[5])
redis.call('ZADD', KEYS[3], ARGV[3], KEYS[1])
return 1
`)

// KEYS: token key, expiry zset
// ARGV: token
var releaseScript = redis.NewScript(`
local lockKey = redis.call('GET', KEYS[1])
if not lockKey then
	return 0
end
redis.call('DEL', KEYS[1])
if redis.call('HGET', lockKey, 'token') == ARGV[1] then
	redis.call('DEL', lockKey)
	redis.call('ZREM', KEYS[2], lockKey)
	return 1
end
return 0
`)

// KEYS: expiry zset
// ARGV: now ms, token prefix
var sweepScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local removed = 0
for i = 1, #due do
	local exp = redis.call('HGET', due[i], 'expires_at')
	if exp and tonumber(exp) <= tonumber(ARGV[1]) then
		local tok = redis.call('HGET', due[i], 'token')
		if tok then
			redis.call('DEL', ARGV[2] .. tok)
		end
		redis.call('DEL', due[i])
		removed = removed + 1
	end
	if not exp or tonumber(exp) <= tonumber(ARGV[1]) then
		redis.call('ZREM', KEYS[1], due[i])
	end
end
return removed
`)

type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "slotbook:softlock:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Create(ctx context.Context, key string, lock model.SoftLock, now time.Time) (bool, error) {
	payload, err := json.Marshal(lock)
	if err != nil {
		return false, err
	}
	ttl := lock.ExpiresAt.Sub(now) + expiryGrace
	res, err := acquireScript.Run(ctx, s.client,
		[]string{s.lockKey(key), s.tokenKey(lock.Token), s.expiryKey()},
		lock.Token, payload, lock.ExpiresAt.UnixMilli(), now.UnixMilli(), ttl.Milliseconds(), s.prefix+"token:",
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, key string, now time.Time) (model.SoftLock, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.lockKey(key)).Result()
	if err != nil {
		return model.SoftLock{}, false, err
	}
	if len(fields) == 0 {
		return model.SoftLock{}, false, nil
	}
	expMs, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return model.SoftLock{}, false, errors.New("softlock: corrupt expires_at")
	}
	if expMs <= now.UnixMilli() {
		return model.SoftLock{}, false, nil
	}
	var lock model.SoftLock
	if err := json.Unmarshal([]byte(fields["payload"]), &lock); err != nil {
		return model.SoftLock{}, false, err
	}
	return lock, true, nil
}

func (s *RedisStore) DeleteToken(ctx context.Context, token string) (bool, error) {
	res, err := releaseScript.Run(ctx, s.client, []string{s.tokenKey(token), s.expiryKey()}, token).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *RedisStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return sweepScript.Run(ctx, s.client, []string{s.expiryKey()}, now.UnixMilli(), s.prefix+"token:").Int()
}

func (s *RedisStore) lockKey(key string) string    { return s.prefix + "lock:" + key }
func (s *RedisStore) tokenKey(token string) string { return s.prefix + "token:" + token }
func (s *RedisStore) expiryKey() string            { return s.prefix + "expiry" }
