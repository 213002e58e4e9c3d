// Package lockout implements the failed-login counter and timed lock that
// live on each account record. The state is pure data so that stores can
// persist it directly; callers drive transitions and save the result.
package lockout

import "time"

// State is embedded in the account record.
type State struct {
	FailedAttempts int       `json:"failedAttempts" bson:"failedAttempts"`
	LastFailedAt   time.Time `json:"lastFailedAt,omitempty" bson:"lastFailedAt,omitempty"`
	Locked         bool      `json:"locked" bson:"locked"`
	LockedAt       time.Time `json:"lockedAt,omitempty" bson:"lockedAt,omitempty"`
	LockedUntil    time.Time `json:"lockedUntil,omitempty" bson:"lockedUntil,omitempty"`
}

// Evaluate clears an expired lock. It returns true when the state changed
// and must be persisted. Locks are lifted lazily on the next attempt; no
// background timer runs.
func (s *State) Evaluate(now time.Time) bool {
	if !s.Locked {
		return false
	}
	if now.Before(s.LockedUntil) {
		return false
	}
	s.Locked = false
	s.FailedAttempts = 0
	s.LastFailedAt = time.Time{}
	s.LockedAt = time.Time{}
	s.LockedUntil = time.Time{}
	return true
}

// RecordFailure increments the counter and engages the lock once the
// threshold is reached. It returns true when this failure locked the
// account.
func (s *State) RecordFailure(now time.Time, threshold int, duration time.Duration) bool {
	s.FailedAttempts++
	s.LastFailedAt = now
	if s.FailedAttempts < threshold {
		return false
	}
	s.Locked = true
	s.LockedAt = now
	s.LockedUntil = now.Add(duration)
	return true
}

// Reset clears the counter after a successful login. Returns true when
// there was anything to clear.
func (s *State) Reset() bool {
	if s.FailedAttempts == 0 && !s.Locked {
		return false
	}
	*s = State{}
	return true
}

// Remaining reports how long the lock holds from now. Zero when unlocked
// or expired.
func (s *State) Remaining(now time.Time) time.Duration {
	if !s.Locked || !now.Before(s.LockedUntil) {
		return 0
	}
	return s.LockedUntil.Sub(now)
}
