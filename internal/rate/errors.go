package rate

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionguard/session"
)

// ErrRateLimited is matched by every LimitedError.
var ErrRateLimited = errors.New("rate limited")

// LimitedError reports when the window that rejected the request resets.
type LimitedError struct {
	ResetAt time.Time
}

func (e *LimitedError) Error() string {
	if e.ResetAt.IsZero() {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s until %s", ErrRateLimited, e.ResetAt.UTC().Format(time.RFC3339))
}

// Is lets errors.Is(err, ErrRateLimited) match.
func (e *LimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
}
