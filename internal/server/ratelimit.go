package server

import (
	"sync"
	"time"
)

const (
	rateLimitWindow      = time.Minute
	rateLimitMaxMessages = 10
)

// MessageLimiter is a sliding-window per-user message throttle. Each user id
// maps to the instants of its sends inside the trailing window; an attempt
// beyond the cap is rejected without recording anything.
type MessageLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func NewMessageLimiter() *MessageLimiter {
	return &MessageLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (l *MessageLimiter) Allow(userId string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-rateLimitWindow)

	window := l.windows[userId][:0:0]
	for _, instant := range l.windows[userId] {
		if instant.After(cutoff) {
			window = append(window, instant)
		}
	}

	if len(window) >= rateLimitMaxMessages {
		l.windows[userId] = window
		return false
	}

	l.windows[userId] = append(window, now)
	return true
}

// Prune drops windows belonging to users with no live connection and no
// instant inside the trailing window. Called on the janitor cadence so
// departed users do not leak limiter state.
func (l *MessageLimiter) Prune(isActive func(userId string) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-rateLimitWindow)
	for userId, window := range l.windows {
		if isActive(userId) {
			continue
		}

		expired := true
		for _, instant := range window {
			if instant.After(cutoff) {
				expired = false
				break
			}
		}
		if expired {
			delete(l.windows, userId)
		}
	}
}
