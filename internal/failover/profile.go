package failover

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	initialCooldown = 1000 * time.Millisecond
	maxCooldown     = 60000 * time.Millisecond
)

// Profile is a single named credential configured for a run.
type Profile struct {
	ID     string
	APIKey string
}

// ProfileState tracks one credential's cooldown across a single run.
// It is never shared across runs.
type ProfileState struct {
	Profile Profile

	cooldown *backoff.ExponentialBackOff
	cooldownMs int64
	failedAt   time.Time
	hasFailed  bool
}

// NewProfileStates builds fresh cooldown state for each configured
// profile, in configured order.
func NewProfileStates(profiles []Profile) []*ProfileState {
	states := make([]*ProfileState, len(profiles))
	for i, p := range profiles {
		states[i] = newProfileState(p)
	}
	return states
}

func newProfileState(p Profile) *ProfileState {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialCooldown
	b.MaxInterval = maxCooldown
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	// Prime the backoff so its first post-failure NextBackOff call
	// returns the DOUBLED interval (2000ms), not the still-unfailed
	// initial one: cooldownMs only starts doubling once a failure has
	// actually occurred.
	b.NextBackOff()
	return &ProfileState{
		Profile:    p,
		cooldown:   b,
		cooldownMs: initialCooldown.Milliseconds(),
	}
}

// CooldownMs is the current cooldown window, in milliseconds.
func (s *ProfileState) CooldownMs() int64 { return s.cooldownMs }

// Available reports whether s may be selected right now: it has never
// failed this run, or its cooldown has elapsed.
func (s *ProfileState) Available(now time.Time) bool {
	if !s.hasFailed {
		return true
	}
	return now.Sub(s.failedAt) >= time.Duration(s.cooldownMs)*time.Millisecond
}

// RemainingCooldown returns how long until s becomes available again,
// zero or negative if it already is.
func (s *ProfileState) RemainingCooldown(now time.Time) time.Duration {
	if !s.hasFailed {
		return 0
	}
	elapsed := now.Sub(s.failedAt)
	remaining := time.Duration(s.cooldownMs)*time.Millisecond - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MarkFailed records a failure at now and doubles the cooldown window,
// capped at 60,000ms.
func (s *ProfileState) MarkFailed(now time.Time) {
	s.hasFailed = true
	s.failedAt = now
	next := s.cooldown.NextBackOff()
	ms := next.Milliseconds()
	if ms <= 0 || ms > maxCooldown.Milliseconds() {
		ms = maxCooldown.Milliseconds()
	}
	s.cooldownMs = ms
}

// MarkGood clears the failure marker and resets the cooldown window
// to its initial value.
func (s *ProfileState) MarkGood() {
	s.hasFailed = false
	s.failedAt = time.Time{}
	s.cooldownMs = initialCooldown.Milliseconds()
	s.cooldown.Reset()
	s.cooldown.NextBackOff()
}

// NextIndex rotates cur modulo n.
func NextIndex(cur, n int) int {
	if n <= 0 {
		return 0
	}
	return (cur + 1) % n
}

// SelectAvailable returns the index of the next available profile
// starting at cur (inclusive), and true, or false if none are
// currently available.
func SelectAvailable(states []*ProfileState, cur int, now time.Time) (int, bool) {
	n := len(states)
	if n == 0 {
		return 0, false
	}
	for i := 0; i < n; i++ {
		idx := (cur + i) % n
		if states[idx].Available(now) {
			return idx, true
		}
	}
	return 0, false
}

// ShortestRemainingCooldown returns the minimum remaining cooldown
// across all states, used by the caller to size a wait before retrying
// selection when none are currently available.
func ShortestRemainingCooldown(states []*ProfileState, now time.Time) time.Duration {
	var shortest time.Duration = -1
	for _, s := range states {
		r := s.RemainingCooldown(now)
		if shortest < 0 || r < shortest {
			shortest = r
		}
	}
	if shortest < 0 {
		return 0
	}
	return shortest
}
