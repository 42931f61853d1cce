package rate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy configures one rate-limited path. Max <= 0 disables the path.
type Policy struct {
	Window time.Duration
	Max    int
	// SkipSuccessful refunds the unit of a successful attempt, so only
	// failed attempts consume budget.
	SkipSuccessful bool
}

// Config holds the login and general path policies.
type Config struct {
	Login   Policy
	General Policy
}

// DefaultConfig is 5 failed logins per 15 minutes and 100 requests per minute.
func DefaultConfig() Config {
	return Config{
		Login:   Policy{Window: 15 * time.Minute, Max: 5, SkipSuccessful: true},
		General: Policy{Window: time.Minute, Max: 100},
	}
}

// Limiter enforces both paths per client key. It never touches lockout state.
type Limiter struct {
	config  Config
	login   Counter
	general Counter
}

// New wires explicit counters.
func New(cfg Config, login, general Counter) *Limiter {
	return &Limiter{config: cfg, login: login, general: general}
}

// NewRedis keeps counters in Redis under prefix.
func NewRedis(client redis.UniversalClient, prefix string, cfg Config) *Limiter {
	return New(cfg,
		NewRedisCounter(client, prefix+":rl:login:", cfg.Login.Window, cfg.Login.Max),
		NewRedisCounter(client, prefix+":rl:general:", cfg.General.Window, cfg.General.Max),
	)
}

// NewMemory keeps counters in process memory.
func NewMemory(cfg Config) *Limiter {
	return New(cfg,
		NewMemoryCounter("login", cfg.Login.Window, cfg.Login.Max),
		NewMemoryCounter("general", cfg.General.Window, cfg.General.Max),
	)
}

// Config returns the policies in force.
func (l *Limiter) Config() Config {
	return l.config
}

// CheckLogin reserves one unit of login budget for key and rejects the attempt
// when the window is already full. The unit is taken before the caller verifies
// the secret, so concurrent attempts from one key never get past Max. A
// rejected attempt hands its unit back.
func (l *Limiter) CheckLogin(ctx context.Context, key string) error {
	if l == nil || l.config.Login.Max <= 0 {
		return nil
	}
	w, err := l.login.Increment(ctx, key)
	if err != nil {
		return err
	}
	if w.Exceeded() {
		// The window is full whether or not the unit comes back.
		_ = l.login.Decrement(ctx, key)
		return &LimitedError{ResetAt: w.ResetAt}
	}
	return nil
}

// RefundLogin returns the unit reserved by CheckLogin after a successful
// login. Without SkipSuccessful every attempt keeps its unit.
func (l *Limiter) RefundLogin(ctx context.Context, key string) error {
	if l == nil || l.config.Login.Max <= 0 || !l.config.Login.SkipSuccessful {
		return nil
	}
	return l.login.Decrement(ctx, key)
}

// Allow counts a general-path request for key.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if l == nil || l.config.General.Max <= 0 {
		return nil
	}
	w, err := l.general.Increment(ctx, key)
	if err != nil {
		return err
	}
	if w.Exceeded() {
		return &LimitedError{ResetAt: w.ResetAt}
	}
	return nil
}
