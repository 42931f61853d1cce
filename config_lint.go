package sessionguard

import (
	"fmt"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "info"
	case LintWarn:
		return "warn"
	case LintHigh:
		return "high"
	default:
		return "unknown"
	}
}

// LintWarning is a valid but questionable setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

type LintResult []LintWarning

func (r LintResult) Codes() []string {
	codes := make([]string, len(r))
	for i, w := range r {
		codes[i] = w.Code
	}
	return codes
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports settings that pass Validate but weaken the deployment.
// Build logs each warning; it never fails on them.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if c.Tokens.Leeway > 30*time.Second {
		add("leeway_large", LintWarn, "token leeway %s exceeds 30s", c.Tokens.Leeway)
	}
	if c.Tokens.AccessTTL > 15*time.Minute {
		add("access_ttl_long", LintWarn, "access TTL %s exceeds 15m; revocation lags by up to this long", c.Tokens.AccessTTL)
	}
	if c.Tokens.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "refresh TTL %s exceeds 30 days", c.Tokens.RefreshTTL)
	}
	if c.RateLimit.Login.Max <= 0 {
		add("rate_limits_disabled", LintHigh, "login rate limiting is disabled")
	}
	if len(c.Lockout.Tiers) == 0 {
		add("lockout_disabled", LintHigh, "no lockout tiers configured")
	}
	if c.Password.Algorithm != "argon2id" && c.Password.BcryptCost != 0 && c.Password.BcryptCost < 12 {
		add("bcrypt_cost_low", LintInfo, "bcrypt cost %d is below 12", c.Password.BcryptCost)
	}
	if c.ProductionMode && (c.Store.Backend == "" || c.Store.Backend == StoreMemory) {
		add("memory_store_production", LintHigh, "in-memory store does not survive restarts or span instances")
	}
	if c.ProductionMode && !c.Audit.Enabled {
		add("audit_disabled", LintWarn, "audit is disabled in production mode")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", LintInfo, "audit emission blocks request paths when the buffer is full")
	}

	return ws
}
