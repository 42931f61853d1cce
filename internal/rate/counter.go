package rate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Window is the state of one fixed-window counter.
type Window struct {
	Count   int64
	Limit   int64
	ResetAt time.Time
}

// Exceeded reports whether the window is already over the limit.
func (w Window) Exceeded() bool {
	return w.Count > w.Limit
}

// Counter is a family of fixed-window counters sharing one window and limit.
// Decrement never takes a counter below zero and keeps the window's reset time.
type Counter interface {
	Peek(ctx context.Context, key string) (Window, error)
	Increment(ctx context.Context, key string) (Window, error)
	Decrement(ctx context.Context, key string) error
}

// counterIncrementScript counts a hit and starts the window on a key without
// a TTL, in one round trip. Returns {count, pttl}.
const counterIncrementScript = `
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`

// counterDecrementScript gives one hit back without going below zero.
const counterDecrementScript = `
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n <= 0 then
  return 0
end
return redis.call("DECR", KEYS[1])
`

var (
	counterIncrementLua = redis.NewScript(counterIncrementScript)
	counterDecrementLua = redis.NewScript(counterDecrementScript)
)

// RedisCounter counts with INCR and sets the window TTL on the first hit.
type RedisCounter struct {
	redis  redis.UniversalClient
	prefix string
	window time.Duration
	limit  int64
}

// NewRedisCounter returns a counter whose keys start with prefix.
func NewRedisCounter(client redis.UniversalClient, prefix string, window time.Duration, limit int) *RedisCounter {
	return &RedisCounter{redis: client, prefix: prefix, window: window, limit: int64(limit)}
}

func (c *RedisCounter) Peek(ctx context.Context, key string) (Window, error) {
	k := c.prefix + key

	var (
		get  *redis.StringCmd
		pttl *redis.DurationCmd
	)
	_, err := c.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, k)
		pttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Window{}, unavailable(err)
	}

	count, err := get.Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Window{Limit: c.limit}, nil
		}
		return Window{}, unavailable(err)
	}
	return Window{Count: count, Limit: c.limit, ResetAt: resetAt(pttl.Val())}, nil
}

func (c *RedisCounter) Increment(ctx context.Context, key string) (Window, error) {
	k := c.prefix + key

	// Fixed window: only a key without a TTL gets one.
	res, err := counterIncrementLua.Run(ctx, c.redis, []string{k}, c.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Window{}, unavailable(err)
	}
	if len(res) != 2 {
		return Window{}, unavailable(errors.New("unexpected increment reply"))
	}
	return Window{
		Count:   res[0],
		Limit:   c.limit,
		ResetAt: resetAt(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

func (c *RedisCounter) Decrement(ctx context.Context, key string) error {
	if err := counterDecrementLua.Run(ctx, c.redis, []string{c.prefix + key}).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func resetAt(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// MemoryCounter wraps an in-process ulule limiter. mu serializes increments
// with decrements so a refund never lands on a fresh window.
type MemoryCounter struct {
	mu      sync.Mutex
	limiter *limiter.Limiter
}

// NewMemoryCounter returns a process-local counter.
func NewMemoryCounter(prefix string, window time.Duration, limit int) *MemoryCounter {
	cleanup := window
	if cleanup <= 0 {
		cleanup = 30 * time.Second
	}
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: cleanup,
	})
	return &MemoryCounter{
		limiter: limiter.New(store, limiter.Rate{Period: window, Limit: int64(limit)}),
	}
}

func (c *MemoryCounter) Peek(ctx context.Context, key string) (Window, error) {
	lctx, err := c.limiter.Peek(ctx, key)
	if err != nil {
		return Window{}, err
	}
	return fromLimiterContext(lctx), nil
}

func (c *MemoryCounter) Increment(ctx context.Context, key string) (Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lctx, err := c.limiter.Increment(ctx, key, 1)
	if err != nil {
		return Window{}, err
	}
	return fromLimiterContext(lctx), nil
}

func (c *MemoryCounter) Decrement(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lctx, err := c.limiter.Peek(ctx, key)
	if err != nil {
		return err
	}
	// Nothing counted in the live window.
	if !lctx.Reached && lctx.Remaining >= lctx.Limit {
		return nil
	}
	_, err = c.limiter.Increment(ctx, key, -1)
	return err
}

// fromLimiterContext recovers the count. ulule only reports remaining budget,
// so an exceeded window is reported as limit+1.
func fromLimiterContext(lctx limiter.Context) Window {
	w := Window{Limit: lctx.Limit, ResetAt: time.Unix(lctx.Reset, 0)}
	if lctx.Reached {
		w.Count = lctx.Limit + 1
	} else {
		w.Count = lctx.Limit - lctx.Remaining
	}
	return w
}
