package lockout

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTiers is returned for empty, non-positive or non-monotonic tier tables.
var ErrInvalidTiers = errors.New("invalid lockout tiers")

// Tier locks an identity for Duration once failed attempts reach Attempts.
type Tier struct {
	Attempts int
	Duration time.Duration
}

// DefaultTiers returns the standard escalation: 5 → 5m, 7 → 15m, 10 → 30m.
func DefaultTiers() []Tier {
	return []Tier{
		{Attempts: 5, Duration: 5 * time.Minute},
		{Attempts: 7, Duration: 15 * time.Minute},
		{Attempts: 10, Duration: 30 * time.Minute},
	}
}

// Policy is an immutable tier table sorted by ascending attempts.
type Policy struct {
	tiers []Tier
}

// NewPolicy validates tiers. Durations must not decrease as attempts grow.
func NewPolicy(tiers []Tier) (*Policy, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTiers)
	}

	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Attempts < sorted[j].Attempts })

	for i, t := range sorted {
		if t.Attempts <= 0 || t.Duration <= 0 {
			return nil, fmt.Errorf("%w: tier %d:%s must be positive", ErrInvalidTiers, t.Attempts, t.Duration)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if t.Attempts == prev.Attempts {
			return nil, fmt.Errorf("%w: duplicate threshold %d", ErrInvalidTiers, t.Attempts)
		}
		if t.Duration < prev.Duration {
			return nil, fmt.Errorf("%w: %d attempts locks for less than %d attempts", ErrInvalidTiers, t.Attempts, prev.Attempts)
		}
	}

	return &Policy{tiers: sorted}, nil
}

// MustPolicy is NewPolicy for static tables.
func MustPolicy(tiers []Tier) *Policy {
	p, err := NewPolicy(tiers)
	if err != nil {
		panic(err)
	}
	return p
}

// DurationFor returns the lock duration for failedAttempts, or 0 below the first tier.
func (p *Policy) DurationFor(failedAttempts int) time.Duration {
	if p == nil {
		return 0
	}
	for i := len(p.tiers) - 1; i >= 0; i-- {
		if failedAttempts >= p.tiers[i].Attempts {
			return p.tiers[i].Duration
		}
	}
	return 0
}

// Threshold returns the attempt count of the first tier.
func (p *Policy) Threshold() int {
	if p == nil || len(p.tiers) == 0 {
		return 0
	}
	return p.tiers[0].Attempts
}

// Tiers returns a copy of the table.
func (p *Policy) Tiers() []Tier {
	out := make([]Tier, len(p.tiers))
	copy(out, p.tiers)
	return out
}

// String renders the table in the ParseTiers format.
func (p *Policy) String() string {
	return FormatTiers(p.tiers)
}

// ParseTiers parses "attempts:duration" pairs such as "5:5m,7:15m,10:30m".
func ParseTiers(s string) ([]Tier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTiers)
	}

	var tiers []Tier
	for _, item := range strings.Split(s, ",") {
		attempts, duration, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not attempts:duration", ErrInvalidTiers, item)
		}
		n, err := strconv.Atoi(strings.TrimSpace(attempts))
		if err != nil {
			return nil, fmt.Errorf("%w: attempts %q: %v", ErrInvalidTiers, attempts, err)
		}
		d, err := time.ParseDuration(strings.TrimSpace(duration))
		if err != nil {
			return nil, fmt.Errorf("%w: duration %q: %v", ErrInvalidTiers, duration, err)
		}
		tiers = append(tiers, Tier{Attempts: n, Duration: d})
	}
	return tiers, nil
}

// FormatTiers is the inverse of ParseTiers.
func FormatTiers(tiers []Tier) string {
	parts := make([]string, 0, len(tiers))
	for _, t := range tiers {
		parts = append(parts, strconv.Itoa(t.Attempts)+":"+t.Duration.String())
	}
	return strings.Join(parts, ",")
}
