package actions

import (
	"sync"
	"time"
)

const (
	messagesPerWindow = 100
	window            = time.Minute
	staleAfter        = 5 * time.Minute
)

// RateLimiter caps each user at 100 envelopes per minute with a
// fixed window that resets on expiry.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
}

type clientWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{clients: make(map[string]*clientWindow)}
}

// Allow reports whether the user may send another envelope now.
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cw, ok := rl.clients[userID]
	if !ok {
		rl.clients[userID] = &clientWindow{count: 1, windowStart: now}
		return true
	}
	if now.Sub(cw.windowStart) >= window {
		cw.count = 1
		cw.windowStart = now
		return true
	}
	if cw.count >= messagesPerWindow {
		return false
	}
	cw.count++
	return true
}

// Cleanup removes tracking state for users idle past five windows.
// Call periodically.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for userID, cw := range rl.clients {
		if now.Sub(cw.windowStart) > staleAfter {
			delete(rl.clients, userID)
		}
	}
}
