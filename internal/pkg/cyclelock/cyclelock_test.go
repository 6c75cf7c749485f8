package cyclelock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestGuard_MutualExclusion(t *testing.T) {
	guard := NewGuard()
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				guard.WithLock(ScopeCycle, func() error {
					counter++
					return nil
				})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5000, counter)
}

func TestGuard_IndependentScopes(t *testing.T) {
	guard := NewGuard()
	guard.Lock(ScopeCycle)
	defer guard.Unlock(ScopeCycle)

	// A different scope must stay acquirable.
	require.True(t, guard.TryLock(ScopeIGN))
	guard.Unlock(ScopeIGN)

	assert.False(t, guard.TryLock(ScopeCycle))
}

func TestGuard_WithLockTimeout(t *testing.T) {
	guard := NewGuard()
	guard.Lock(ScopeCycle)

	err := guard.WithLockTimeout(context.Background(), ScopeCycle, 50*time.Millisecond, func() error {
		t.Fatal("fn must not run when the guard is held elsewhere")
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout))

	guard.Unlock(ScopeCycle)

	// After release the scope must not be wedged by the abandoned waiter.
	err = guard.WithLockTimeout(context.Background(), ScopeCycle, time.Second, func() error {
		return nil
	})
	assert.NoError(t, err)
}

func TestGuard_WithLockPropagatesError(t *testing.T) {
	guard := NewGuard()
	sentinel := errors.New("boom")

	err := guard.WithLock(ScopeResults, func() error { return sentinel })
	assert.Equal(t, sentinel, err)

	// The guard must be released despite the error.
	assert.True(t, guard.TryLock(ScopeResults))
	guard.Unlock(ScopeResults)
}

// TestGuard_SerializedSequencesProperty checks that any interleaving of
// guarded increments is equivalent to a serial execution.
func TestGuard_SerializedSequencesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		guard := NewGuard()
		goroutines := rapid.IntRange(1, 8).Draw(t, "goroutines")
		increments := rapid.IntRange(1, 200).Draw(t, "increments")

		counter := 0
		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < increments; j++ {
					guard.WithLock(ScopeCycle, func() error {
						counter++
						return nil
					})
				}
			}()
		}
		wg.Wait()

		if counter != goroutines*increments {
			t.Fatalf("lost updates: want %d, got %d", goroutines*increments, counter)
		}
	})
}
