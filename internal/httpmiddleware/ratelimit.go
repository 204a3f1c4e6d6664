package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// MsgRateLimited is returned with 429 responses.
const MsgRateLimited = "عدد الطلبات كبير جداً، حاول مرة أخرى بعد قليل"

// evictAt is the client count that triggers dropping idle buckets.
const evictAt = 1024

// Limiter allows each client IP a burst of requests, refilled continuously
// at a per-minute rate.
type Limiter struct {
	burst   float64
	perSec  float64
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*allowance
}

type allowance struct {
	tokens float64
	seen   time.Time
}

// NewLimiter builds a limiter. A non-positive burst defaults to perMinute;
// a non-positive perMinute disables limiting.
func NewLimiter(burst, perMinute int) *Limiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &Limiter{
		burst:   float64(burst),
		perSec:  float64(perMinute) / 60,
		now:     time.Now,
		clients: make(map[string]*allowance),
	}
}

// WithClock replaces the time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Middleware rejects over-limit clients with 429 and a Retry-After hint.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.perSec <= 0 {
			c.Next()
			return
		}
		ok, wait := l.take(c.ClientIP())
		if !ok {
			secs := max(1, int(math.Ceil(wait.Seconds())))
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": MsgRateLimited})
			return
		}
		c.Next()
	}
}

// take spends one token for key, or reports how long until one is available.
func (l *Limiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	a, ok := l.clients[key]
	if !ok {
		l.evictIdle(now)
		a = &allowance{tokens: l.burst, seen: now}
		l.clients[key] = a
	}
	a.tokens = math.Min(l.burst, a.tokens+now.Sub(a.seen).Seconds()*l.perSec)
	a.seen = now
	if a.tokens < 1 {
		return false, time.Duration((1 - a.tokens) / l.perSec * float64(time.Second))
	}
	a.tokens--
	return true, 0
}

// evictIdle drops buckets that have refilled completely, once the map is large.
func (l *Limiter) evictIdle(now time.Time) {
	if len(l.clients) < evictAt {
		return
	}
	full := time.Duration(l.burst / l.perSec * float64(time.Second))
	for k, a := range l.clients {
		if now.Sub(a.seen) > full {
			delete(l.clients, k)
		}
	}
}
