package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xssautomation/xssbot/internal/model"
)

// Rejection causes reported to Metrics.ScanRejected.
const (
	rejectBusy        = "busy"
	rejectRateLimited = "rate_limited"
)

// guard admits at most one scan per identity and rate-limits scans per
// identity. A zero interval disables rate limiting.
//
// A limiter that has refilled to its burst is the same as a new one, so such
// limiters are dropped by a sweep that runs at most once per interval.
type guard struct {
	mu        sync.Mutex
	running   map[model.Identity]string
	limiters  map[model.Identity]*rate.Limiter
	lastSweep time.Time

	interval time.Duration
	burst    int
	now      func() time.Time
}

func newGuard(interval time.Duration, burst int) *guard {
	if burst < 1 {
		burst = 1
	}
	g := &guard{
		running:  make(map[model.Identity]string),
		limiters: make(map[model.Identity]*rate.Limiter),
		interval: interval,
		burst:    burst,
		now:      time.Now,
	}
	g.lastSweep = g.now()
	return g
}

// admission is the outcome of guard.admit.
type admission struct {
	// release must be called when the scan ends. It is nil when the scan
	// was refused.
	release func()

	// cause is rejectBusy or rejectRateLimited when refused.
	cause string

	// running is the input of the scan already in progress (rejectBusy).
	running string

	// retryAfter is how long until another scan is allowed
	// (rejectRateLimited).
	retryAfter time.Duration
}

// admit reserves the identity for a scan of input.
func (g *guard) admit(identity model.Identity, input string) admission {
	g.mu.Lock()
	defer g.mu.Unlock()

	if current, busy := g.running[identity]; busy {
		return admission{cause: rejectBusy, running: current}
	}

	if g.interval > 0 {
		now := g.now()
		g.sweep(now)
		lim, ok := g.limiters[identity]
		if !ok {
			lim = rate.NewLimiter(rate.Every(g.interval), g.burst)
			g.limiters[identity] = lim
		}
		r := lim.ReserveN(now, 1)
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			return admission{cause: rejectRateLimited, retryAfter: delay}
		}
	}

	g.running[identity] = input
	var once sync.Once
	return admission{release: func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, identity)
			g.mu.Unlock()
		})
	}}
}

// sweep drops full limiters. g.mu must be held.
func (g *guard) sweep(now time.Time) {
	if now.Sub(g.lastSweep) < g.interval {
		return
	}
	g.lastSweep = now
	for identity, lim := range g.limiters {
		if lim.TokensAt(now) >= float64(g.burst) {
			delete(g.limiters, identity)
		}
	}
}
