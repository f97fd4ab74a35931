package ai

import (
	"sync"
	"time"
)

// usageWindow counts calls inside one rolling quota window. The window
// resets a fixed duration after its first use.
type usageWindow struct {
	resetTime time.Time
	count     int
}

// UsageTracker enforces the per-user daily call caps: one counter for
// provider invocations and an independent one for merchant lookups.
type UsageTracker struct {
	ai            map[string]*usageWindow
	merchant      map[string]*usageWindow
	window        time.Duration
	aiLimit       int
	merchantLimit int
	mu            sync.Mutex
}

// NewUsageTracker creates a tracker. Zero limits select the defaults
// (100 AI calls, 50 merchant lookups, 24h window).
func NewUsageTracker(aiLimit, merchantLimit int, window time.Duration) *UsageTracker {
	if aiLimit == 0 {
		aiLimit = 100
	}
	if merchantLimit == 0 {
		merchantLimit = 50
	}
	if window == 0 {
		window = 24 * time.Hour
	}
	return &UsageTracker{
		ai:            make(map[string]*usageWindow),
		merchant:      make(map[string]*usageWindow),
		aiLimit:       aiLimit,
		merchantLimit: merchantLimit,
		window:        window,
	}
}

// AllowAI consumes one provider call for the user if quota remains.
func (t *UsageTracker) AllowAI(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return allow(t.ai, userID, t.aiLimit, t.window)
}

// AIExhausted reports whether the user's provider quota is spent, without
// consuming a call.
func (t *UsageTracker) AIExhausted(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return remaining(t.ai, userID, t.aiLimit) == 0
}

// AllowMerchantLookup consumes one merchant lookup for the user if quota
// remains.
func (t *UsageTracker) AllowMerchantLookup(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return allow(t.merchant, userID, t.merchantLimit, t.window)
}

// RemainingAI returns the user's unconsumed provider calls.
func (t *UsageTracker) RemainingAI(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return remaining(t.ai, userID, t.aiLimit)
}

func allow(windows map[string]*usageWindow, userID string, limit int, window time.Duration) bool {
	now := time.Now()
	w, ok := windows[userID]
	if !ok || now.After(w.resetTime) {
		w = &usageWindow{resetTime: now.Add(window)}
		windows[userID] = w
	}
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

func remaining(windows map[string]*usageWindow, userID string, limit int) int {
	w, ok := windows[userID]
	if !ok || time.Now().After(w.resetTime) {
		return limit
	}
	left := limit - w.count
	if left < 0 {
		return 0
	}
	return left
}
