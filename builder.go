package sessionguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/sessionguard/internal"
	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
	"github.com/MrEthical07/sessionguard/internal/flows"
	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/lockout"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/MrEthical07/sessionguard/session"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	store  session.Store
	redis  redis.UniversalClient

	userProvider UserProvider
	auditSink    AuditSink
	policy       password.Policy
	logger       zerolog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore overrides the store selected by Config.Store.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithRedis supplies the Redis client for the redis store backend and for
// the rate limiter. Without it the limiter keeps its windows in memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithPasswordPolicy replaces the complexity policy used by HashSecret.
func (b *Builder) WithPasswordPolicy(p password.Policy) *Builder {
	b.policy = p
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock sets the time source for token issue, verification and lock checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	logger := b.logger.With().Str("component", "sessionguard").Logger()
	now := b.now
	if now == nil {
		now = time.Now
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ensureSecrets(&cfg, logger); err != nil {
		return nil, err
	}
	for _, w := range cfg.Lint() {
		logger.Warn().Str("code", w.Code).Str("severity", w.Severity.String()).Msg(w.Message)
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	// -------- TOKENS & HASHING --------
	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cloneBytes(cfg.Tokens.AccessSecret),
		RefreshSecret: cloneBytes(cfg.Tokens.RefreshSecret),
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
		Issuer:        cfg.Tokens.Issuer,
		Leeway:        cfg.Tokens.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.New(password.Config{
		Algorithm:  cfg.Password.Algorithm,
		BcryptCost: cfg.Password.BcryptCost,
		Argon2:     cfg.Password.Argon2,
	})
	if err != nil {
		return nil, err
	}

	policy := b.policy
	if policy == nil {
		policy = password.ComplexityPolicy{MinLength: cfg.Password.MinLength, MaxLength: cfg.Password.MaxLength}
	}

	dummySecret, err := internal.NewOpaqueString(24)
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(dummySecret)
	if err != nil {
		return nil, err
	}

	var lockPolicy *lockout.Policy
	if len(cfg.Lockout.Tiers) > 0 {
		if lockPolicy, err = lockout.NewPolicy(cfg.Lockout.Tiers); err != nil {
			return nil, err
		}
	}

	// -------- STORE --------
	store, closers, err := b.openStore(cfg, now)
	if err != nil {
		return nil, err
	}

	// -------- RATE LIMITER --------
	rateCfg := rate.Config{
		Login:   rate.Policy{Window: cfg.RateLimit.Login.Window, Max: cfg.RateLimit.Login.Max, SkipSuccessful: cfg.RateLimit.Login.SkipSuccessful},
		General: rate.Policy{Window: cfg.RateLimit.General.Window, Max: cfg.RateLimit.General.Max},
	}
	var limiter *rate.Limiter
	if b.redis != nil {
		limiter = rate.NewRedis(b.redis, cfg.Store.KeyPrefix, rateCfg)
	} else {
		limiter = rate.NewMemory(rateCfg)
	}

	engine := &Engine{
		config:  cfg,
		store:   store,
		tokens:  tokens,
		hasher:  hasher,
		policy:  policy,
		lockout: lockPolicy,
		limiter: limiter,
		users:   b.userProvider,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     now,
		closers: closers,
	}

	var lockoutDep flows.LockoutPolicy
	if lockPolicy != nil {
		lockoutDep = lockPolicy
	}
	engine.flows = flows.Deps{
		Login: flows.LoginDeps{
			Now:              now,
			Rate:             limiter,
			Store:            store,
			Lockout:          lockoutDep,
			Tokens:           tokens,
			Verifier:         hasher,
			LookupSecretHash: engine.lookupSecretHash,
			DummyHash:        dummyHash,
		},
		Refresh: flows.RefreshDeps{Now: now, Tokens: tokens, Store: store},
		Verify:  flows.VerifyDeps{Now: now, Tokens: tokens},
		Revoke:  flows.RevokeDeps{Store: store},
	}

	b.built = true

	logger.Info().
		Bool("production", cfg.ProductionMode).
		Str("store", storeName(store)).
		Str("hash", hasher.Algorithm()).
		Msg("engine ready")

	return engine, nil
}

// ensureSecrets fills missing signing secrets outside production mode.
// Validate has already rejected missing secrets in production.
func ensureSecrets(cfg *Config, logger zerolog.Logger) error {
	generated := false
	for _, secret := range []*[]byte{&cfg.Tokens.AccessSecret, &cfg.Tokens.RefreshSecret} {
		if len(*secret) > 0 {
			continue
		}
		s, err := internal.NewSigningSecret(internal.SigningSecretSize)
		if err != nil {
			return err
		}
		*secret = s
		generated = true
	}
	if generated {
		logger.Warn().Msg("signing secrets not configured; using random per-process secrets, tokens will not survive a restart")
	}
	return nil
}

func (b *Builder) openStore(cfg Config, now func() time.Time) (session.Store, []func(), error) {
	if b.store != nil {
		return b.store, nil, nil
	}

	switch cfg.Store.Backend {
	case StoreRedis:
		client := b.redis
		var closers []func()
		if client == nil {
			c := redis.NewClient(&redis.Options{
				Addr:     cfg.Store.RedisAddr,
				Password: cfg.Store.RedisPassword,
				DB:       cfg.Store.RedisDB,
			})
			b.redis = c
			client = c
			closers = append(closers, func() { _ = c.Close() })
		}
		return session.NewRedisStore(client, session.RedisOptions{
			Prefix:     cfg.Store.KeyPrefix,
			AttemptTTL: cfg.Lockout.AttemptTTL,
			Now:        now,
		}), closers, nil

	case StorePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		store := session.NewPostgresStore(pool, session.PostgresOptions{
			TablePrefix: cfg.Store.PostgresTablePrefix,
			AttemptTTL:  cfg.Lockout.AttemptTTL,
			Now:         now,
		})
		if cfg.Store.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return store, []func(){pool.Close}, nil

	default:
		return session.NewMemoryStore(session.MemoryOptions{
			AttemptTTL: cfg.Lockout.AttemptTTL,
			Now:        now,
		}), nil, nil
	}
}

func storeName(s session.Store) string {
	switch s.(type) {
	case *session.MemoryStore:
		return StoreMemory
	case *session.RedisStore:
		return StoreRedis
	case *session.PostgresStore:
		return StorePostgres
	default:
		return fmt.Sprintf("%T", s)
	}
}
