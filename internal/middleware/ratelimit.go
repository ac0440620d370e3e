package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"rekindle/internal/logger"
	"rekindle/internal/utils"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL = 10 * time.Minute
	sweepInterval  = time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles callers with one token bucket per key. Keys are
// the authenticated user id when present, else the client IP. The client IP
// is taken from X-Forwarded-For only when the direct peer is a trusted proxy.
type RateLimiter struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	rps       float64
	burst     int
	trusted   []*net.IPNet
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter builds a limiter. trustedProxies holds IPs or CIDRs of
// reverse proxies whose X-Forwarded-For header is honoured; unparseable
// entries are logged and skipped.
func NewRateLimiter(rps float64, burst int, trustedProxies ...string) *RateLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	rl := &RateLimiter{
		m:     make(map[string]*limiterEntry),
		rps:   rps,
		burst: burst,
		now:   time.Now,
	}
	for _, p := range trustedProxies {
		if n := parseNet(p); n != nil {
			rl.trusted = append(rl.trusted, n)
		} else {
			logger.Warn("Ignoring invalid trusted proxy", "value", p)
		}
	}
	return rl
}

func parseNet(s string) *net.IPNet {
	s = strings.TrimSpace(s)
	if _, n, err := net.ParseCIDR(s); err == nil {
		return n
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	bits := 128
	if ip4 := ip.To4(); ip4 != nil {
		ip, bits = ip4, 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.sweepLocked(now)
	}
	if e, ok := rl.m[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	l := rate.NewLimiter(rate.Limit(rl.rps), rl.burst)
	rl.m[key] = &limiterEntry{limiter: l, lastSeen: now}
	return l
}

// sweepLocked drops buckets idle for longer than limiterIdleTTL. An idle
// bucket has long since refilled, so dropping it loses no state.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	for k, e := range rl.m {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(rl.m, k)
		}
	}
	rl.lastSweep = now
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.get(key).Allow()
}

// Limit wraps a handler. It must run after authentication so the identity
// is available as the key.
func (rl *RateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + rl.clientIP(r)
		if id, ok := IdentityFromContext(r.Context()); ok {
			key = "user:" + id.UserID.String()
		}
		if !rl.Allow(key) {
			w.Header().Set("Retry-After", "1")
			WriteError(w, utils.NewAppError(utils.ErrTooManyRequests, "Too many requests", nil))
			return
		}
		next(w, r)
	}
}

func (rl *RateLimiter) isTrusted(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range rl.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP returns the peer address, or when the peer is a trusted proxy,
// the right-most X-Forwarded-For hop that is not itself trusted.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !rl.isTrusted(net.ParseIP(peer)) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if ip := net.ParseIP(hop); ip == nil || !rl.isTrusted(ip) {
			return hop
		}
	}
	return peer
}
