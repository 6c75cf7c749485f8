package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// userLimits enforces the per-user command and button budgets at the
// chat boundary. Presses over budget are dropped with a notice; the
// services underneath never see them.
type userLimits struct {
	mu       sync.Mutex
	perMin   int
	limiters map[string]*rate.Limiter
}

func newUserLimits(perMin int) *userLimits {
	if perMin < 1 {
		perMin = 1
	}
	return &userLimits{
		perMin:   perMin,
		limiters: make(map[string]*rate.Limiter),
	}
}

// allow reports whether the user may act right now.
func (u *userLimits) allow(userID string) bool {
	u.mu.Lock()
	limiter, ok := u.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(u.perMin)), u.perMin)
		u.limiters[userID] = limiter
	}
	u.mu.Unlock()
	return limiter.Allow()
}
