package models

import (
	"fmt"
	"sync"
	"time"
)

type RateWindow struct {
	UserID      int64
	WindowStart time.Time
	Count       int
}

// RateLimiter is a fixed-window admission controller keyed by user id.
// Windows live only in memory and start empty after a restart.
type RateLimiter struct {
	mu          sync.Mutex
	windows     map[int64]*RateWindow
	maxMessages int
	window      time.Duration
}

func NewRateLimiter(maxMessages int, window time.Duration) (*RateLimiter, error) {
	if maxMessages <= 0 {
		return nil, fmt.Errorf("%w: max messages per window must be positive, got %d", ErrInvalidArgument, maxMessages)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: window length must be positive, got %s", ErrInvalidArgument, window)
	}
	return &RateLimiter{
		windows:     make(map[int64]*RateWindow),
		maxMessages: maxMessages,
		window:      window,
	}, nil
}

// Admit reports whether one more event from userID fits into its current window.
// Rejected events still count so the window is never extended by them.
func (rl *RateLimiter) Admit(userID int64, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[userID]
	if !ok {
		rl.windows[userID] = &RateWindow{UserID: userID, WindowStart: now, Count: 1}
		return true
	}
	// out of order timestamp for this user: leave the window alone
	if now.Before(w.WindowStart) {
		return true
	}
	if now.Sub(w.WindowStart) >= rl.window {
		w.WindowStart = now
		w.Count = 1
		return true
	}
	w.Count++
	return w.Count <= rl.maxMessages
}

func (rl *RateLimiter) Window(userID int64) (RateWindow, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.windows[userID]
	if !ok {
		return RateWindow{}, false
	}
	return *w, true
}

// Sweep drops windows that started more than idle before now.
func (rl *RateLimiter) Sweep(now time.Time, idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for id, w := range rl.windows {
		if now.Sub(w.WindowStart) > idle {
			delete(rl.windows, id)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

func (rl *RateLimiter) Limit() (int, time.Duration) {
	return rl.maxMessages, rl.window
}
