package gateway

import (
	"math"
	"sync"
	"time"

	"main/internal/obs"
	"main/pkg/ring"

	"github.com/yanun0323/logs"
)

// LimiterConfig tunes the pacing and backoff behavior.
type LimiterConfig struct {
	RequestsPerSecond float64
	BurstLimit        int
	BackoffFactor     float64
	MaxBackoff        time.Duration
}

func (c LimiterConfig) withDefaults() LimiterConfig {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2.0
	}
	if c.BurstLimit <= 0 {
		c.BurstLimit = 5
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = 2.0
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	return c
}

// RateLimiter enforces a minimum inter-request interval, a burst cap over
// the trailing second, and exponential backoff after rate-limit errors.
// All state lives behind one mutex so the read-decide-record sequence can
// never interleave between callers.
type RateLimiter struct {
	cfg         LimiterConfig
	minInterval time.Duration

	mu          sync.Mutex
	lastRequest time.Time
	recent      *ring.Buffer[time.Time]
	consecutive int
	backoff     time.Duration

	now   func() time.Time
	sleep func(d time.Duration)
}

// NewRateLimiter creates a limiter with the given pacing configuration.
func NewRateLimiter(cfg LimiterConfig) *RateLimiter {
	cfg = cfg.withDefaults()
	return &RateLimiter{
		cfg:         cfg,
		minInterval: time.Duration(float64(time.Second) / cfg.RequestsPerSecond),
		recent:      ring.New[time.Time](cfg.BurstLimit),
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Wait blocks until the next request is allowed to go out and returns the
// total time spent blocked.
func (l *RateLimiter) Wait() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	var waited time.Duration
	now := l.now()

	minWait := l.minInterval + l.backoff
	if !l.lastRequest.IsZero() {
		if since := now.Sub(l.lastRequest); since < minWait {
			d := minWait - since
			logs.Debugf("rate limiting: waiting %s", d)
			l.sleep(d)
			waited += d
			now = l.now()
		}
	}

	l.recent.Push(now)
	if l.recent.Len() >= l.cfg.BurstLimit {
		if oldest, ok := l.recent.Oldest(); ok {
			if window := now.Sub(oldest); window < time.Second {
				// Burst cap: wait out the rest of the trailing second plus a
				// small safety margin.
				d := time.Second - window + 100*time.Millisecond
				logs.Debugf("burst limit: waiting %s", d)
				l.sleep(d)
				waited += d
			}
		}
	}

	l.lastRequest = l.now()
	return waited
}

// OnRateLimited bumps the consecutive-failure counter, raises the backoff
// and sleeps it off, so the caller's next attempt is already paced.
func (l *RateLimiter) OnRateLimited() {
	l.mu.Lock()
	l.consecutive++
	seconds := math.Pow(l.cfg.BackoffFactor, float64(l.consecutive))
	l.backoff = time.Duration(seconds * float64(time.Second))
	if l.backoff > l.cfg.MaxBackoff {
		l.backoff = l.cfg.MaxBackoff
	}
	backoff := l.backoff
	count := l.consecutive
	l.mu.Unlock()

	obs.Backoff.Set(backoff.Seconds())
	logs.Warnf("rate limit error #%d, backoff: %s", count, backoff)
	l.sleep(backoff)
}

// OnSuccess resets the backoff after any successful request.
func (l *RateLimiter) OnSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.consecutive == 0 {
		return
	}
	logs.Info("request successful, resetting backoff")
	l.consecutive = 0
	l.backoff = 0
	obs.Backoff.Set(0)
}

// Backoff returns the currently active backoff duration.
func (l *RateLimiter) Backoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}
