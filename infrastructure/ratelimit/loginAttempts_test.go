package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(maxAttempts int, lockout time.Duration, clock *time.Time) *LoginAttemptStore {
	store := NewLoginAttemptStore(maxAttempts, lockout)
	store.now = func() time.Time { return *clock }
	return store
}

func TestLoginAttemptsLockoutCycle(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(3, 30*time.Second, &clock)

	require.NoError(t, store.Check("ada"))

	store.RecordFailure("ada")
	store.RecordFailure("ada")
	require.NoError(t, store.Check("ada"), "two failures must not lock")
	assert.Equal(t, 2, store.Failures("ada"))

	store.RecordFailure("ada")
	err := store.Check("ada")
	require.Error(t, err)

	var locked *AccountLockedError
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, "ada", locked.Username)
	assert.Equal(t, 30*time.Second, locked.RetryAfter)

	// still locked one second before expiry
	clock = clock.Add(29 * time.Second)
	require.Error(t, store.Check("ada"))

	// lockout expires and the counter starts fresh
	clock = clock.Add(2 * time.Second)
	require.NoError(t, store.Check("ada"))
	assert.Equal(t, 0, store.Failures("ada"))

	store.RecordFailure("ada")
	store.RecordFailure("ada")
	require.NoError(t, store.Check("ada"), "expired lockout must not leak old failures")
}

func TestLoginAttemptsRetryAfterShrinks(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(1, 30*time.Second, &clock)

	store.RecordFailure("grace")
	clock = clock.Add(10 * time.Second)

	var locked *AccountLockedError
	require.True(t, errors.As(store.Check("grace"), &locked))
	assert.Equal(t, 20*time.Second, locked.RetryAfter)
}

func TestLoginAttemptsSuccessResets(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(3, 30*time.Second, &clock)

	store.RecordFailure("linus")
	store.RecordFailure("linus")
	store.RecordSuccess("linus")
	assert.Equal(t, 0, store.Failures("linus"))

	// budget is full again after a success
	store.RecordFailure("linus")
	store.RecordFailure("linus")
	require.NoError(t, store.Check("linus"))
}

func TestLoginAttemptsIsolatedPerUsername(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(1, time.Minute, &clock)

	store.RecordFailure("ada")
	require.Error(t, store.Check("ada"))
	require.NoError(t, store.Check("grace"))
}
