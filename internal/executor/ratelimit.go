package executor

import (
	"sync"
	"time"
)

// rateLimiter tracks consumption against per-minute limits inside a rolling
// fixed-size window. The quota is a single shared global resource, so the
// dispatch loop suspends as a whole when the window is saturated instead of
// blocking per task. Counters are mutated from the dispatch loop and from
// completion goroutines, hence the mutex.
type rateLimiter struct {
	mu sync.Mutex

	window          time.Duration
	requestsPerMin  int
	tokensPerMin    int
	currentRequests int
	currentTokens   int
	windowStart     time.Time
}

func newRateLimiter(requestsPerMin, tokensPerMin int, window time.Duration) *rateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		window:         window,
		requestsPerMin: requestsPerMin,
		tokensPerMin:   tokensPerMin,
		windowStart:    time.Now(),
	}
}

// snapshot returns the current request counter and its limit.
func (r *rateLimiter) snapshot() (current, limit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentRequests, r.requestsPerMin
}

// waitTime returns how long the dispatch loop must suspend before admitting
// the next task, or zero if the window has capacity. The window is reset at
// most once per call: if it has already elapsed, counters are cleared and
// no wait is required.
func (r *rateLimiter) waitTime(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := now.Sub(r.windowStart)
	if elapsed >= r.window {
		r.resetLocked(now)
		return 0
	}

	if r.requestsPerMin > 0 && r.currentRequests >= r.requestsPerMin {
		return r.window - elapsed
	}
	if r.tokensPerMin > 0 && r.currentTokens >= r.tokensPerMin {
		return r.window - elapsed
	}
	return 0
}

// reset restarts the window after a throttle sleep.
func (r *rateLimiter) reset(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked(now)
}

func (r *rateLimiter) resetLocked(now time.Time) {
	r.currentRequests = 0
	r.currentTokens = 0
	r.windowStart = now
}

// consume records units spent by a completed request.
func (r *rateLimiter) consume(requests, tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentRequests += requests
	r.currentTokens += tokens
}
