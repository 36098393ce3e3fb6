// Package httpmiddleware carries HTTP concerns shared across the API routes.
package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"facetrack/internal/auth"
)

// sweepAfter is how long an idle caller's bucket survives before it is
// dropped, bounding memory when many short-lived clients show up.
const sweepAfter = 10 * time.Minute

// DeviceRateLimit is an in-memory token bucket keyed per caller. Cameras post
// detection bursts when several people pass the lens together, so burst
// capacity is configured separately from the steady per-minute rate.
type DeviceRateLimit struct {
	burst  int
	perMin int

	mu        sync.Mutex
	state     map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewDeviceRateLimit creates a limiter allowing perMinute requests sustained
// with bursts up to burst.
func NewDeviceRateLimit(burst, perMinute int) *DeviceRateLimit {
	if burst < perMinute {
		burst = perMinute
	}
	return &DeviceRateLimit{
		burst:     burst,
		perMin:    perMinute,
		state:     make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

// GinMiddleware enforces the limit per authenticated device, falling back to
// the client IP for unauthenticated routes.
func (l *DeviceRateLimit) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ""
		if claims, ok := auth.FromContext(c); ok {
			key = claims.DeviceID
		}
		if key == "" {
			key = c.ClientIP()
		}
		if key == "" {
			key = "unknown"
		}
		if !l.allow(key) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *DeviceRateLimit) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.sweep(now)

	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.burst - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.perMin))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle past sweepAfter. Caller must hold the lock.
func (l *DeviceRateLimit) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepAfter {
		return
	}
	for key, b := range l.state {
		if now.Sub(b.last) >= sweepAfter {
			delete(l.state, key)
		}
	}
	l.lastSweep = now
}
