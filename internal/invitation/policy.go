package invitation

import "time"

type Status int

const (
	StatusUsable Status = iota
	StatusNotFound
	StatusRevoked
	StatusExpired
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusUsable:
		return "Usable"
	case StatusNotFound:
		return "NotFound"
	case StatusRevoked:
		return "Revoked"
	case StatusExpired:
		return "Expired"
	case StatusExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// Err returns the sentinel error for a non-usable status, or nil.
func (s Status) Err() error {
	switch s {
	case StatusNotFound:
		return ErrNotFound
	case StatusRevoked:
		return ErrRevoked
	case StatusExpired:
		return ErrExpired
	case StatusExhausted:
		return ErrExhausted
	default:
		return nil
	}
}

// Evaluate classifies a code at the given instant. The first failing check
// wins: missing, revoked, expired (ExpiresAt <= now), exhausted.
func Evaluate(c *Code, now time.Time) Status {
	if c == nil {
		return StatusNotFound
	}
	if c.RevokedAt != nil {
		return StatusRevoked
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return StatusExpired
	}
	if c.CurrentUses >= c.MaxUses {
		return StatusExhausted
	}
	return StatusUsable
}
