package sessionguard

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionguard/lockout"
	"github.com/MrEthical07/sessionguard/password"
)

// Store backends accepted by StoreConfig.Backend.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Minimum secret length in production mode.
const productionSecretBytes = 32

// Config holds every engine setting. Build validates it.
type Config struct {
	Tokens         TokenConfig
	Password       PasswordConfig
	Lockout        LockoutConfig
	RateLimit      RateLimitConfig
	Store          StoreConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	Logging        LoggingConfig
	ProductionMode bool
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures both token classes. The two secrets must differ.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing algorithm and the complexity policy.
type PasswordConfig struct {
	Algorithm  string
	BcryptCost int
	Argon2     password.Argon2Config
	MinLength  int
	MaxLength  int
	// UpgradeOnLogin rehashes outdated hashes after a successful login when
	// the user provider implements SecretHashUpdater.
	UpgradeOnLogin bool
}

/*
====================================
LOCKOUT & RATE LIMIT CONFIG
====================================
*/

// LockoutConfig holds the escalation table and the failed-attempt counter lifetime.
type LockoutConfig struct {
	Tiers      []lockout.Tier
	AttemptTTL time.Duration
}

// RateWindow is one fixed-window policy. Max <= 0 disables it.
type RateWindow struct {
	Window         time.Duration
	Max            int
	SkipSuccessful bool
}

type RateLimitConfig struct {
	Login   RateWindow
	General RateWindow
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig selects the session store when the builder is not given one.
type StoreConfig struct {
	Backend             string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	KeyPrefix           string
	PostgresDSN         string
	PostgresTablePrefix string
	AutoMigrate         bool
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// LoggingConfig is read by binaries that build their own zerolog logger.
type LoggingConfig struct {
	Level   string
	Console bool
}

// DefaultConfig returns the development defaults. Secrets are empty and
// are generated per process by Build outside production mode.
func DefaultConfig() Config {
	return Config{
		Tokens: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Algorithm:      password.AlgorithmBcrypt,
			BcryptCost:     password.DefaultBcryptCost,
			Argon2:         password.DefaultArgon2Config(),
			MinLength:      8,
			MaxLength:      72,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			Tiers: lockout.DefaultTiers(),
		},
		RateLimit: RateLimitConfig{
			Login:   RateWindow{Window: 15 * time.Minute, Max: 5, SkipSuccessful: true},
			General: RateWindow{Window: time.Minute, Max: 100},
		},
		Store: StoreConfig{
			Backend:   StoreMemory,
			KeyPrefix: "sg",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// HighSecurityConfig tightens DefaultConfig for production deployments.
// Secrets still need to be supplied.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()
	cfg.ProductionMode = true
	cfg.Tokens.AccessTTL = 5 * time.Minute
	cfg.Tokens.RefreshTTL = 24 * time.Hour
	cfg.Password.BcryptCost = 13
	cfg.RateLimit.Login.Max = 3
	cfg.Audit.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Tokens.AccessSecret = cloneBytes(cfg.Tokens.AccessSecret)
	out.Tokens.RefreshSecret = cloneBytes(cfg.Tokens.RefreshSecret)
	if cfg.Lockout.Tiers != nil {
		out.Lockout.Tiers = append([]lockout.Tier(nil), cfg.Lockout.Tiers...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Tokens
	if c.Tokens.AccessTTL <= 0 {
		return errors.New("Tokens AccessTTL must be > 0")
	}
	if c.Tokens.RefreshTTL <= 0 {
		return errors.New("Tokens RefreshTTL must be > 0")
	}
	if c.Tokens.RefreshTTL <= c.Tokens.AccessTTL {
		return errors.New("Tokens RefreshTTL must exceed AccessTTL")
	}
	if c.Tokens.Leeway < 0 || c.Tokens.Leeway > 2*time.Minute {
		return errors.New("Tokens Leeway must be within [0, 2m]")
	}
	if err := c.validateSecrets(); err != nil {
		return err
	}

	// Password
	switch c.Password.Algorithm {
	case "", password.AlgorithmBcrypt, password.AlgorithmArgon2id:
	default:
		return fmt.Errorf("Password Algorithm %q is not supported", c.Password.Algorithm)
	}
	if c.Password.BcryptCost != 0 &&
		(c.Password.BcryptCost < password.MinBcryptCost || c.Password.BcryptCost > password.MaxBcryptCost) {
		return fmt.Errorf("Password BcryptCost must be within [%d, %d]", password.MinBcryptCost, password.MaxBcryptCost)
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength || c.Password.MaxLength > 72 {
		return errors.New("Password MaxLength must be within [MinLength, 72]")
	}

	// Lockout
	if len(c.Lockout.Tiers) > 0 {
		if _, err := lockout.NewPolicy(c.Lockout.Tiers); err != nil {
			return err
		}
	}
	if c.Lockout.AttemptTTL < 0 {
		return errors.New("Lockout AttemptTTL must be >= 0")
	}

	// Rate limit
	if c.RateLimit.Login.Max > 0 && c.RateLimit.Login.Window <= 0 {
		return errors.New("RateLimit Login Window must be > 0 when Max > 0")
	}
	if c.RateLimit.General.Max > 0 && c.RateLimit.General.Window <= 0 {
		return errors.New("RateLimit General Window must be > 0 when Max > 0")
	}

	// Store
	switch c.Store.Backend {
	case "", StoreMemory:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("Store RedisAddr required for redis backend")
		}
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("Store PostgresDSN required for postgres backend")
		}
	default:
		return fmt.Errorf("Store Backend %q is not supported", c.Store.Backend)
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

func (c *Config) validateSecrets() error {
	access, refresh := c.Tokens.AccessSecret, c.Tokens.RefreshSecret

	if c.ProductionMode {
		if len(access) == 0 || len(refresh) == 0 {
			return errors.New("ProductionMode requires AccessSecret and RefreshSecret")
		}
		if len(access) < productionSecretBytes || len(refresh) < productionSecretBytes {
			return fmt.Errorf("ProductionMode requires secrets of at least %d bytes", productionSecretBytes)
		}
	}
	if len(access) > 0 && len(refresh) > 0 && string(access) == string(refresh) {
		return errors.New("AccessSecret and RefreshSecret must differ")
	}
	return nil
}
