package sessionguard

import (
	"time"

	"github.com/MrEthical07/sessionguard/lockout"
	"github.com/MrEthical07/sessionguard/session"
)

// SecurityReport is a read-only snapshot of the engine's security posture.
type SecurityReport struct {
	ProductionMode    bool
	SigningAlgorithm  string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	IssuerChecked     bool
	PasswordAlgorithm string
	BcryptCost        int
	Argon2            PasswordConfigReport
	LockoutTiers      []lockout.Tier
	AttemptTTL        time.Duration
	LoginRateWindow   time.Duration
	LoginRateMax      int
	GeneralRateWindow time.Duration
	GeneralRateMax    int
	StoreBackend      string
	AuditEnabled      bool
	MetricsEnabled    bool
	LintWarnings      []string
}

// PasswordConfigReport contains the Argon2 parameters active in the engine.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	var tiers []lockout.Tier
	if e.lockout != nil {
		tiers = e.lockout.Tiers()
	}
	attemptTTL := cfg.Lockout.AttemptTTL
	if attemptTTL <= 0 {
		attemptTTL = session.DefaultAttemptTTL
	}

	return SecurityReport{
		ProductionMode:    cfg.ProductionMode,
		SigningAlgorithm:  "HS256",
		AccessTTL:         cfg.Tokens.AccessTTL,
		RefreshTTL:        cfg.Tokens.RefreshTTL,
		IssuerChecked:     cfg.Tokens.Issuer != "",
		PasswordAlgorithm: e.hasher.Algorithm(),
		BcryptCost:        cfg.Password.BcryptCost,
		Argon2: PasswordConfigReport{
			Memory:      cfg.Password.Argon2.Memory,
			Time:        cfg.Password.Argon2.Time,
			Parallelism: cfg.Password.Argon2.Parallelism,
			SaltLength:  cfg.Password.Argon2.SaltLength,
			KeyLength:   cfg.Password.Argon2.KeyLength,
		},
		LockoutTiers:      tiers,
		AttemptTTL:        attemptTTL,
		LoginRateWindow:   cfg.RateLimit.Login.Window,
		LoginRateMax:      cfg.RateLimit.Login.Max,
		GeneralRateWindow: cfg.RateLimit.General.Window,
		GeneralRateMax:    cfg.RateLimit.General.Max,
		StoreBackend:      storeName(e.store),
		AuditEnabled:      cfg.Audit.Enabled,
		MetricsEnabled:    cfg.Metrics.Enabled,
		LintWarnings:      cfg.Lint().Codes(),
	}
}
