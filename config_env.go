package sessionguard

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/MrEthical07/sessionguard/lockout"
)

// EnvPrefix prefixes every environment variable read by LoadConfigFromEnv.
const EnvPrefix = "SESSIONGUARD"

// Keys that also answer to legacy, unprefixed environment names.
var envAliases = map[string][]string{
	"tokens.access_secret":  {"JWT_SECRET"},
	"tokens.refresh_secret": {"REFRESH_SECRET"},
	"store.redis_addr":      {"REDIS_ADDR"},
	"store.postgres_dsn":    {"DATABASE_URL"},
}

// LoadConfigFromEnv overlays SESSIONGUARD_* environment variables on
// DefaultConfig. Nested keys use underscores, e.g.
// SESSIONGUARD_TOKENS_ACCESS_TTL=10m or SESSIONGUARD_LOCKOUT_TIERS=5:5m,10:30m.
// JWT_SECRET and REFRESH_SECRET are honoured when the prefixed names are unset.
// SESSIONGUARD_LOCKOUT_TIERS=off disables lockout.
// SESSIONGUARD_CONFIG_FILE names an optional file read before the environment.
//
// The result is not validated; Build does that.
func LoadConfigFromEnv() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("config_file"); err != nil {
		return Config{}, err
	}
	for key, aliases := range envAliases {
		names := append([]string{key, envName(key)}, aliases...)
		if err := v.BindEnv(names...); err != nil {
			return Config{}, err
		}
	}

	setDefaults(v, DefaultConfig())

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	return configFromViper(v)
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("production_mode", cfg.ProductionMode)

	v.SetDefault("tokens.access_secret", "")
	v.SetDefault("tokens.refresh_secret", "")
	v.SetDefault("tokens.access_ttl", cfg.Tokens.AccessTTL)
	v.SetDefault("tokens.refresh_ttl", cfg.Tokens.RefreshTTL)
	v.SetDefault("tokens.issuer", cfg.Tokens.Issuer)
	v.SetDefault("tokens.leeway", cfg.Tokens.Leeway)

	v.SetDefault("password.algorithm", cfg.Password.Algorithm)
	v.SetDefault("password.bcrypt_cost", cfg.Password.BcryptCost)
	v.SetDefault("password.min_length", cfg.Password.MinLength)
	v.SetDefault("password.max_length", cfg.Password.MaxLength)
	v.SetDefault("password.upgrade_on_login", cfg.Password.UpgradeOnLogin)

	v.SetDefault("lockout.tiers", lockout.FormatTiers(cfg.Lockout.Tiers))
	v.SetDefault("lockout.attempt_ttl", cfg.Lockout.AttemptTTL)

	v.SetDefault("rate_limit.login.window", cfg.RateLimit.Login.Window)
	v.SetDefault("rate_limit.login.max", cfg.RateLimit.Login.Max)
	v.SetDefault("rate_limit.login.skip_successful", cfg.RateLimit.Login.SkipSuccessful)
	v.SetDefault("rate_limit.general.window", cfg.RateLimit.General.Window)
	v.SetDefault("rate_limit.general.max", cfg.RateLimit.General.Max)

	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.redis_addr", cfg.Store.RedisAddr)
	v.SetDefault("store.redis_password", cfg.Store.RedisPassword)
	v.SetDefault("store.redis_db", cfg.Store.RedisDB)
	v.SetDefault("store.key_prefix", cfg.Store.KeyPrefix)
	v.SetDefault("store.postgres_dsn", cfg.Store.PostgresDSN)
	v.SetDefault("store.postgres_table_prefix", cfg.Store.PostgresTablePrefix)
	v.SetDefault("store.auto_migrate", cfg.Store.AutoMigrate)

	v.SetDefault("audit.enabled", cfg.Audit.Enabled)
	v.SetDefault("audit.buffer_size", cfg.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", cfg.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", cfg.Metrics.EnableLatencyHistograms)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.console", cfg.Logging.Console)
}

func configFromViper(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	cfg.ProductionMode = v.GetBool("production_mode")

	if s := v.GetString("tokens.access_secret"); s != "" {
		cfg.Tokens.AccessSecret = []byte(s)
	}
	if s := v.GetString("tokens.refresh_secret"); s != "" {
		cfg.Tokens.RefreshSecret = []byte(s)
	}
	cfg.Tokens.AccessTTL = v.GetDuration("tokens.access_ttl")
	cfg.Tokens.RefreshTTL = v.GetDuration("tokens.refresh_ttl")
	cfg.Tokens.Issuer = v.GetString("tokens.issuer")
	cfg.Tokens.Leeway = v.GetDuration("tokens.leeway")

	cfg.Password.Algorithm = v.GetString("password.algorithm")
	cfg.Password.BcryptCost = v.GetInt("password.bcrypt_cost")
	cfg.Password.MinLength = v.GetInt("password.min_length")
	cfg.Password.MaxLength = v.GetInt("password.max_length")
	cfg.Password.UpgradeOnLogin = v.GetBool("password.upgrade_on_login")

	// "off" or an empty value disables lockout.
	cfg.Lockout.Tiers = nil
	if raw := strings.TrimSpace(v.GetString("lockout.tiers")); raw != "" && raw != "off" {
		tiers, err := lockout.ParseTiers(raw)
		if err != nil {
			return Config{}, fmt.Errorf("lockout tiers: %w", err)
		}
		cfg.Lockout.Tiers = tiers
	}
	cfg.Lockout.AttemptTTL = v.GetDuration("lockout.attempt_ttl")

	cfg.RateLimit.Login = RateWindow{
		Window:         v.GetDuration("rate_limit.login.window"),
		Max:            v.GetInt("rate_limit.login.max"),
		SkipSuccessful: v.GetBool("rate_limit.login.skip_successful"),
	}
	cfg.RateLimit.General = RateWindow{
		Window: v.GetDuration("rate_limit.general.window"),
		Max:    v.GetInt("rate_limit.general.max"),
	}

	cfg.Store = StoreConfig{
		Backend:             v.GetString("store.backend"),
		RedisAddr:           v.GetString("store.redis_addr"),
		RedisPassword:       v.GetString("store.redis_password"),
		RedisDB:             v.GetInt("store.redis_db"),
		KeyPrefix:           v.GetString("store.key_prefix"),
		PostgresDSN:         v.GetString("store.postgres_dsn"),
		PostgresTablePrefix: v.GetString("store.postgres_table_prefix"),
		AutoMigrate:         v.GetBool("store.auto_migrate"),
	}

	cfg.Audit = AuditConfig{
		Enabled:    v.GetBool("audit.enabled"),
		BufferSize: v.GetInt("audit.buffer_size"),
		DropIfFull: v.GetBool("audit.drop_if_full"),
	}
	cfg.Metrics = MetricsConfig{
		Enabled:                 v.GetBool("metrics.enabled"),
		EnableLatencyHistograms: v.GetBool("metrics.enable_latency_histograms"),
	}
	cfg.Logging = LoggingConfig{
		Level:   v.GetString("logging.level"),
		Console: v.GetBool("logging.console"),
	}

	return cfg, nil
}
