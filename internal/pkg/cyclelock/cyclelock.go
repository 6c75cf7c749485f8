// Package cyclelock serializes mutations of shared event state.
// Every roster, lifecycle and result operation runs read-validate-mutate-
// persist as one critical section under the cycle's guard, so a scheduled
// lock and a near-simultaneous signup click cannot race: whichever
// acquires the guard first wins and the loser sees the new state.
package cyclelock

import (
	"context"
	"sync"
	"time"
)

// scopeMutex wraps a mutex with reference counting for diagnostics.
type scopeMutex struct {
	mu       sync.Mutex
	refCount int
}

// Guard provides named-scope locking. The bot uses one scope per shared
// mutable resource: the live cycle, the result log, the IGN map.
type Guard struct {
	locks sync.Map // map[string]*scopeMutex
}

// NewGuard creates a new Guard instance.
func NewGuard() *Guard {
	return &Guard{}
}

// getLock retrieves or creates the mutex for the given scope.
func (g *Guard) getLock(scope string) *scopeMutex {
	if v, ok := g.locks.Load(scope); ok {
		return v.(*scopeMutex)
	}
	actual, _ := g.locks.LoadOrStore(scope, &scopeMutex{})
	return actual.(*scopeMutex)
}

// Lock acquires the guard for a scope.
func (g *Guard) Lock(scope string) {
	lock := g.getLock(scope)
	lock.mu.Lock()
	lock.refCount++
}

// Unlock releases the guard for a scope.
func (g *Guard) Unlock(scope string) {
	if v, ok := g.locks.Load(scope); ok {
		lock := v.(*scopeMutex)
		lock.refCount--
		lock.mu.Unlock()
	}
}

// TryLock attempts to acquire the guard without blocking.
func (g *Guard) TryLock(scope string) bool {
	lock := g.getLock(scope)
	if lock.mu.TryLock() {
		lock.refCount++
		return true
	}
	return false
}

// WithLock executes fn while holding the scope's guard.
func (g *Guard) WithLock(scope string, fn func() error) error {
	g.Lock(scope)
	defer g.Unlock(scope)
	return fn()
}

// WithLockTimeout executes fn while holding the scope's guard, giving up
// with ErrLockTimeout if the guard cannot be acquired in time.
func (g *Guard) WithLockTimeout(ctx context.Context, scope string, timeout time.Duration, fn func() error) error {
	lock := g.getLock(scope)

	done := make(chan struct{})
	go func() {
		lock.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		lock.refCount++
		defer g.Unlock(scope)
		return fn()
	case <-timeoutCtx.Done():
		// The goroutine above will still acquire the mutex eventually;
		// release it once it does so the scope is not wedged forever.
		go func() {
			<-done
			lock.mu.Unlock()
		}()
		return ErrLockTimeout
	}
}

// Scopes used across the bot.
const (
	ScopeCycle   = "cycle"
	ScopeResults = "results"
	ScopeIGN     = "ign"
)
