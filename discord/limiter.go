package discord

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Discord allows two channel renames per ten minutes per channel.
const (
	renameBurst  = 2
	renameWindow = 10 * time.Minute
)

// renameLimiter tracks a token bucket and the last pushed name per channel.
type renameLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	last     map[string]string
}

func newRenameLimiter() *renameLimiter {
	return &renameLimiter{
		limiters: make(map[string]*rate.Limiter),
		last:     make(map[string]string),
	}
}

// allow reports whether channelID may be renamed to name now. Renaming to
// the current name is skipped (changed is false) and costs nothing.
func (l *renameLimiter) allow(channelID, name string, now time.Time) (changed, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last[channelID] == name {
		return false, true
	}
	lim, found := l.limiters[channelID]
	if !found {
		lim = rate.NewLimiter(rate.Every(renameWindow/renameBurst), renameBurst)
		l.limiters[channelID] = lim
	}
	if !lim.AllowN(now, 1) {
		return true, false
	}
	return true, true
}

// done records the name a channel now carries.
func (l *renameLimiter) done(channelID, name string) {
	l.mu.Lock()
	l.last[channelID] = name
	l.mu.Unlock()
}

// forget drops a channel's state, e.g. once it is known to be gone.
func (l *renameLimiter) forget(channelID string) {
	l.mu.Lock()
	delete(l.limiters, channelID)
	delete(l.last, channelID)
	l.mu.Unlock()
}
