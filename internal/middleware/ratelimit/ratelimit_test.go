package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinBudget(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 5})
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, rl.allow("caller-a"), "request %d", i)
	}
	assert.False(t, rl.allow("caller-a"))
}

func TestAllowIsPerCaller(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1})
	defer rl.Stop()

	require.True(t, rl.allow("caller-a"))
	require.False(t, rl.allow("caller-a"))
	assert.True(t, rl.allow("caller-b"))
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 10})
	defer rl.Stop()

	require.True(t, rl.allow("caller-a"))

	rl.sweep(time.Now().Add(11 * time.Minute))

	rl.mu.RLock()
	_, exists := rl.buckets["caller-a"]
	rl.mu.RUnlock()
	assert.False(t, exists)
}

func TestStopTerminatesCleanup(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 10})
	rl.Stop()

	// The cleanup goroutine must observe the close and exit rather than
	// block on a stopped ticker.
	select {
	case <-rl.done:
	case <-time.After(time.Second):
		t.Fatal("done channel not closed")
	}
}
