package chi

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go-query-gateway/internal/response"
)

// visitor holds rate limiter for each visitor
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client IP
type Limiter struct {
	rps      int
	idle     time.Duration
	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewLimiter allows rps requests per second per IP with a burst of 2x rps.
// Idle visitors are dropped by Cleanup.
func NewLimiter(rps int) *Limiter {
	return &Limiter{
		rps:      rps,
		idle:     3 * time.Minute,
		visitors: make(map[string]*visitor),
	}
}

// RateLimiter creates a Chi middleware for rate limiting. The cleanup loop
// stops when ctx is done.
func RateLimiter(ctx context.Context, rps int) func(next http.Handler) http.Handler {
	l := NewLimiter(rps)
	go l.Cleanup(ctx, time.Minute)
	return l.Middleware
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.rps <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		if !l.visitor(clientIP(r)).Allow() {
			response.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// visitor gets or creates a rate limiter for the given IP
func (l *Limiter) visitor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.rps), l.rps*2)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Cleanup removes idle visitors every interval until ctx is done
func (l *Limiter) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(time.Now())
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
