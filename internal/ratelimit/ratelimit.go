package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

type RateLimit interface {
	Allow(addr string) bool
}

type WindowData struct {
	count       int
	windowStart time.Time
}

// FixedWindowLimitter counts requests per address inside a fixed window.
// Windows older than the interval are reset on next access and swept when the
// map grows past sweepThreshold.
type FixedWindowLimitter struct {
	maxRequests int
	window      time.Duration
	requests    map[string]*WindowData
	mutex       sync.Mutex

	// Allowed counts every admitted request for the /health report.
	Allowed atomic.Int64
}

const sweepThreshold = 10000

func New(maxRequests int, interval time.Duration) *FixedWindowLimitter {
	return &FixedWindowLimitter{
		maxRequests: maxRequests,
		window:      interval,
		requests:    make(map[string]*WindowData),
	}
}

func (rl *FixedWindowLimitter) Allow(addr string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	wd := rl.requests[addr]

	// no data, or the previous window for this address has lapsed
	if wd == nil || now.Sub(wd.windowStart) > rl.window {
		if rl.maxRequests == 0 {
			return false
		}

		if len(rl.requests) > sweepThreshold {
			rl.sweep(now)
		}

		rl.requests[addr] = &WindowData{
			count:       1,
			windowStart: now,
		}
		rl.Allowed.Inc()

		return true
	}

	if wd.count >= rl.maxRequests {
		return false
	}
	wd.count++
	rl.Allowed.Inc()

	return true
}

// sweep drops lapsed windows. Callers hold the mutex.
func (rl *FixedWindowLimitter) sweep(now time.Time) {
	for addr, wd := range rl.requests {
		if now.Sub(wd.windowStart) > rl.window {
			delete(rl.requests, addr)
		}
	}
}
