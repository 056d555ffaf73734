package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend failure")

func failingBreaker(t *testing.T, cfg Config) *Breaker {
	t.Helper()
	b := New("test", cfg)
	for i := 0; i < cfg.FailureThreshold; i++ {
		require.ErrorIs(t, b.Execute(func() error { return errBackend }), errBackend)
	}
	return b
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	b := New("test", Config{})

	for i := 0; i < 20; i++ {
		require.NoError(t, b.Execute(func() error { return nil }))
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New("test", Config{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, b.Execute(func() error { return errBackend }), errBackend)
		assert.Equal(t, StateClosed, b.State())
	}

	require.ErrorIs(t, b.Execute(func() error { return errBackend }), errBackend)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b := failingBreaker(t, Config{FailureThreshold: 2, Cooldown: time.Minute})

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not invoke the operation")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("test", Config{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 10; i++ {
		require.Error(t, b.Execute(func() error { return errBackend }))
		require.Error(t, b.Execute(func() error { return errBackend }))
		require.NoError(t, b.Execute(func() error { return nil }))
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	b := failingBreaker(t, Config{FailureThreshold: 2, Cooldown: 10 * time.Millisecond})
	assert.Equal(t, StateOpen, b.State())

	time.Sleep(15 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreakerClosesAfterHalfOpenSuccesses(t *testing.T) {
	b := failingBreaker(t, Config{FailureThreshold: 2, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})

	time.Sleep(15 * time.Millisecond)

	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := failingBreaker(t, Config{FailureThreshold: 2, Cooldown: 10 * time.Millisecond})

	time.Sleep(15 * time.Millisecond)

	require.ErrorIs(t, b.Execute(func() error { return errBackend }), errBackend)
	assert.Equal(t, StateOpen, b.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
