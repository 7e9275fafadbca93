package guard

import (
	"fmt"
	"time"
)

const (
	DeniedRateLimited = "rate_limited"
	DeniedSuspended   = "suspended"
)

// DeniedError is a gate refusal. It always carries enough detail for an
// unambiguous user-facing message distinguishing "rate-limited" from
// "suspended until X".
type DeniedError struct {
	Reason         string
	RetryAfter     time.Duration
	SuspendedUntil time.Time
}

func (e *DeniedError) Error() string {
	switch e.Reason {
	case DeniedSuspended:
		return fmt.Sprintf("emergency triggers suspended until %s", e.SuspendedUntil.Format(time.RFC3339))
	case DeniedRateLimited:
		return fmt.Sprintf("too many emergency attempts, retry allowed in %s", e.RetryAfter.Round(time.Second))
	default:
		return "emergency trigger denied"
	}
}
