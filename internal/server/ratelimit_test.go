package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageLimiter_Allow(t *testing.T) {
	current := time.Now()
	l := NewMessageLimiter()
	l.now = func() time.Time { return current }

	for i := 0; i < rateLimitMaxMessages; i++ {
		assert.Truef(t, l.Allow("user-1"), "expected message %d to be allowed", i+1)
	}

	assert.False(t, l.Allow("user-1"), "expected message beyond the cap to be rejected")
	assert.Len(t, l.windows["user-1"], rateLimitMaxMessages, "expected rejected attempt not to be recorded")

	// another user has an independent window
	assert.True(t, l.Allow("user-2"), "expected unrelated user to be allowed")
}

func TestMessageLimiter_WindowSlides(t *testing.T) {
	current := time.Now()
	l := NewMessageLimiter()
	l.now = func() time.Time { return current }

	for i := 0; i < rateLimitMaxMessages; i++ {
		assert.True(t, l.Allow("user-1"), "expected message within cap to be allowed")
	}
	assert.False(t, l.Allow("user-1"), "expected message beyond the cap to be rejected")

	current = current.Add(rateLimitWindow + time.Second)
	assert.True(t, l.Allow("user-1"), "expected message to be allowed after the window slid")
}

func TestMessageLimiter_Prune(t *testing.T) {
	current := time.Now()
	l := NewMessageLimiter()
	l.now = func() time.Time { return current }

	assert.True(t, l.Allow("active"), "expected first message to be allowed")
	assert.True(t, l.Allow("departed"), "expected first message to be allowed")
	assert.True(t, l.Allow("recent"), "expected first message to be allowed")

	// "recent" sent inside the window, "departed" did not
	current = current.Add(rateLimitWindow + time.Second)
	assert.True(t, l.Allow("recent"), "expected message after the window to be allowed")

	l.Prune(func(userId string) bool { return userId == "active" })

	assert.Contains(t, l.windows, "active", "expected active user's window to be retained")
	assert.Contains(t, l.windows, "recent", "expected in-window user's state to be retained")
	assert.NotContains(t, l.windows, "departed", "expected departed user's window to be pruned")
}

func TestMessageLimiter_ManyUsers(t *testing.T) {
	l := NewMessageLimiter()
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(fmt.Sprintf("user-%d", i)), "expected independent windows per user")
	}
}
