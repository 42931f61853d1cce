package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "sg"

// KEYS[1] refresh key. ARGV[1] index prefix, ARGV[2] token hash.
const deleteRefreshScript = `
local identity = redis.call("GET", KEYS[1])
if not identity then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. identity, ARGV[2])
return 1
`

// Same as deleteRefreshScript but only when the record belongs to ARGV[3].
const consumeRefreshScript = `
local identity = redis.call("GET", KEYS[1])
if not identity or identity ~= ARGV[3] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. identity, ARGV[2])
return 1
`

// KEYS[1] identity index. ARGV[1] refresh key prefix.
const deleteAllScript = `
local members = redis.call("SMEMBERS", KEYS[1])
for _, hash in ipairs(members) do
  redis.call("DEL", ARGV[1] .. hash)
end
redis.call("DEL", KEYS[1])
return #members
`

// KEYS[1] counter. ARGV[1] ttl in milliseconds, applied when the counter is created.
const incrementScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

var (
	deleteRefreshLua  = redis.NewScript(deleteRefreshScript)
	consumeRefreshLua = redis.NewScript(consumeRefreshScript)
	deleteAllLua      = redis.NewScript(deleteAllScript)
	incrementLua      = redis.NewScript(incrementScript)
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Prefix     string
	AttemptTTL time.Duration
	Now        func() time.Time
}

// RedisStore keeps refresh records and lockout state in Redis.
//
// Key layout under Prefix:
//
//	<p>:rt:<sha256(token)>  identity, PX = refresh ttl
//	<p>:ri:<identity>       SET of token hashes
//	<p>:fa:<identity>       failed attempt counter
//	<p>:lk:<identity>       lock expiry in unix ms, PX = lock duration
//
// The Lua scripts derive index and refresh keys from ARGV, so all keys of one
// store must live on one node. Use a hash-tagged Prefix with Redis Cluster.
type RedisStore struct {
	redis      redis.UniversalClient
	prefix     string
	attemptTTL time.Duration
	now        func() time.Time
}

var (
	_ Store           = (*RedisStore)(nil)
	_ RefreshConsumer = (*RedisStore)(nil)
)

// NewRedisStore returns a store on client.
func NewRedisStore(client redis.UniversalClient, opts RedisOptions) *RedisStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		redis:      client,
		prefix:     prefix,
		attemptTTL: attemptTTLOrDefault(opts.AttemptTTL),
		now:        nowOrDefault(opts.Now),
	}
}

func (s *RedisStore) refreshPrefix() string { return s.prefix + ":rt:" }
func (s *RedisStore) indexPrefix() string { return s.prefix + ":ri:" }

func (s *RedisStore) refreshKey(hash string) string { return s.refreshPrefix() + hash }
func (s *RedisStore) indexKey(identity string) string { return s.indexPrefix() + identity }
func (s *RedisStore) attemptKey(identity string) string { return s.prefix + ":fa:" + identity }
func (s *RedisStore) lockKey(identity string) string { return s.prefix + ":lk:" + identity }

func (s *RedisStore) SaveRefresh(ctx context.Context, token, identity string, ttl time.Duration) error {
	hash := TokenKey(token)
	idx := s.indexKey(identity)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.refreshKey(hash), identity, ttl)
		pipe.SAdd(ctx, idx, hash)
		pipe.PExpire(ctx, idx, ttl)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) IsRefreshLive(ctx context.Context, token, identity string) (bool, error) {
	owner, err := s.redis.Get(ctx, s.refreshKey(TokenKey(token))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, unavailable(err)
	}
	return owner == identity, nil
}

func (s *RedisStore) ConsumeRefresh(ctx context.Context, token, identity string) (bool, error) {
	hash := TokenKey(token)
	n, err := consumeRefreshLua.Run(ctx, s.redis, []string{s.refreshKey(hash)}, s.indexPrefix(), hash, identity).Int()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

func (s *RedisStore) DeleteRefresh(ctx context.Context, token string) error {
	hash := TokenKey(token)
	if err := deleteRefreshLua.Run(ctx, s.redis, []string{s.refreshKey(hash)}, s.indexPrefix(), hash).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) DeleteAllForIdentity(ctx context.Context, identity string) error {
	if err := deleteAllLua.Run(ctx, s.redis, []string{s.indexKey(identity)}, s.refreshPrefix()).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) GetFailedAttempts(ctx context.Context, identity string) (int, error) {
	n, err := s.redis.Get(ctx, s.attemptKey(identity)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, unavailable(err)
	}
	return n, nil
}

func (s *RedisStore) IncrementFailedAttempts(ctx context.Context, identity string) (int, error) {
	n, err := incrementLua.Run(ctx, s.redis, []string{s.attemptKey(identity)}, s.attemptTTL.Milliseconds()).Int()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (s *RedisStore) ResetFailedAttempts(ctx context.Context, identity string) error {
	if err := s.redis.Del(ctx, s.attemptKey(identity)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) Lock(ctx context.Context, identity string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	until := s.now().Add(d)
	if err := s.redis.Set(ctx, s.lockKey(identity), until.UnixMilli(), d).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) GetLockExpiry(ctx context.Context, identity string) (time.Time, bool, error) {
	raw, err := s.redis.Get(ctx, s.lockKey(identity)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, unavailable(err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("session: corrupt lock record for %q: %w", identity, err)
	}
	return time.UnixMilli(ms), true, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
