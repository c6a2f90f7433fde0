package mw

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/coursebots/internal/utils"
)

// RateLimitConfig configures RateLimit. Zero values fall back to sane
// defaults.
type RateLimitConfig struct {
	Burst      int                       // requests allowed back to back
	PerMinute  int                       // refill rate per client
	MaxClients int                       // tracked clients before idle ones are evicted, 0 = no cap
	IdleTTL    time.Duration             // forget clients idle for longer than this
	TrustProxy bool                      // resolve the client from proxy headers
	Key        func(*http.Request) string // client key, client IP when nil
	Now        func() time.Time          // clock, time.Now when nil
}

type allowance struct {
	tokens float64
	at     time.Time
}

type clientLimiter struct {
	RateLimitConfig
	perSecond float64

	mu      sync.Mutex
	clients map[string]*allowance
	swept   time.Time
}

func (c *RateLimitConfig) defaults() {
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.PerMinute < 1 {
		c.PerMinute = 1
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 15 * time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Key == nil {
		trust := c.TrustProxy
		c.Key = func(r *http.Request) string { return utils.ClientIP(r, trust) }
	}
}

// take spends one token for key. When none is left it reports how long
// the client has to wait.
func (l *clientLimiter) take(key string, now time.Time) (left int, wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) >= l.IdleTTL || (l.MaxClients > 0 && len(l.clients) >= l.MaxClients) {
		l.evictIdle(now)
	}

	a, found := l.clients[key]
	if !found {
		a = &allowance{tokens: float64(l.Burst), at: now}
		l.clients[key] = a
	}
	if dt := now.Sub(a.at).Seconds(); dt > 0 {
		a.tokens = min(float64(l.Burst), a.tokens+dt*l.perSecond)
	}
	a.at = now

	if a.tokens < 1 {
		wait = time.Duration((1 - a.tokens) / l.perSecond * float64(time.Second))
		return 0, max(wait, time.Second), false
	}
	a.tokens--
	return int(a.tokens), 0, true
}

func (l *clientLimiter) evictIdle(now time.Time) {
	for k, a := range l.clients {
		if now.Sub(a.at) > l.IdleTTL {
			delete(l.clients, k)
		}
	}
	l.swept = now
}

// RateLimit answers 429 once a client has spent its burst, refilling at
// PerMinute. X-RateLimit headers are set on every response.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	cfg.defaults()
	l := &clientLimiter{
		RateLimitConfig: cfg,
		perSecond:       float64(cfg.PerMinute) / 60,
		clients:         make(map[string]*allowance),
		swept:           cfg.Now(),
	}
	limit := strconv.Itoa(cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			left, wait, ok := l.take(l.Key(r), l.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(left))
			if !ok {
				h.Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
