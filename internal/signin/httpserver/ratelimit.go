package httpserver

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	attemptIdleTTL       = 10 * time.Minute
	attemptSweepInterval = time.Minute
)

// attemptLimiter throttles sign-in submissions per client address with a token
// bucket each. A nil limiter allows everything.
type attemptLimiter struct {
	mu        sync.Mutex
	perMinute int
	limit     rate.Limit
	burst     int
	now       func() time.Time
	clients   map[string]*clientAttempts
	lastSweep time.Time
}

type clientAttempts struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newAttemptLimiter(perMinute, burst int, now func() time.Time) *attemptLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &attemptLimiter{
		perMinute: perMinute,
		limit:     rate.Limit(float64(perMinute) / 60),
		burst:     burst,
		now:       nowOr(now),
		clients:   make(map[string]*clientAttempts),
	}
}

func (l *attemptLimiter) allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	client, ok := l.clients[key]
	if !ok {
		client = &clientAttempts{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = client
	}
	client.lastSeen = now
	return client.limiter.AllowN(now, 1)
}

// retryAfter is the wait, in whole seconds, until one more attempt is available.
func (l *attemptLimiter) retryAfter() string {
	if l == nil || l.perMinute <= 0 {
		return "60"
	}
	return strconv.Itoa((60 + l.perMinute - 1) / l.perMinute)
}

func (l *attemptLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < attemptSweepInterval {
		return
	}
	l.lastSweep = now
	for key, client := range l.clients {
		if now.Sub(client.lastSeen) > attemptIdleTTL {
			delete(l.clients, key)
		}
	}
}

// clientKey is the remote address without its port. RealIP has already
// replaced it with the forwarded address when a proxy sent one.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
