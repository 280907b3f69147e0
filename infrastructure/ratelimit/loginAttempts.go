package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// AccountLockedError is returned while an identity is inside its lockout
// window. RetryAfter is the remaining lockout duration.
type AccountLockedError struct {
	Username   string
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account %s temporarily locked, retry in %s", e.Username, e.RetryAfter.Round(time.Second))
}

type attemptState struct {
	failures    int
	lockedUntil time.Time
}

// LoginAttemptStore tracks failed verification attempts per username and
// enforces a timed lockout once the failure budget is spent. State lives in
// process memory only; a restart clears lockouts, nothing else.
//
// All state transitions happen under one mutex so concurrent verifications
// for the same username cannot lose updates.
type LoginAttemptStore struct {
	mu          sync.Mutex
	attempts    map[string]*attemptState
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

func NewLoginAttemptStore(maxAttempts int, lockout time.Duration) *LoginAttemptStore {
	return &LoginAttemptStore{
		attempts:    map[string]*attemptState{},
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}
}

// Check reports whether a verification attempt for username may proceed.
// It must be consulted before any capture hardware is touched. Returns an
// *AccountLockedError while the lockout window is open.
func (s *LoginAttemptStore) Check(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.attempts[username]
	if !ok {
		return nil
	}
	now := s.now()
	if !state.lockedUntil.IsZero() {
		if now.Before(state.lockedUntil) {
			return &AccountLockedError{Username: username, RetryAfter: state.lockedUntil.Sub(now)}
		}
		// lockout expired, back to Normal
		state.lockedUntil = time.Time{}
		state.failures = 0
	}
	return nil
}

// RecordFailure increments the failure counter, transitioning to Locked once
// the maximum is reached. The counter resets when the lock engages. Callers
// invoke this exactly once per failed verification call, never per frame.
func (s *LoginAttemptStore) RecordFailure(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.attempts[username]
	if !ok {
		state = &attemptState{}
		s.attempts[username] = state
	}
	state.failures++
	if state.failures >= s.maxAttempts {
		state.lockedUntil = s.now().Add(s.lockout)
		state.failures = 0
	}
}

// RecordSuccess resets the identity to (0 failures, unlocked).
func (s *LoginAttemptStore) RecordSuccess(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, username)
}

// Failures returns the current failure count, for diagnostics.
func (s *LoginAttemptStore) Failures(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.attempts[username]; ok {
		return state.failures
	}
	return 0
}
