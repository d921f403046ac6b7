package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/fy-st0rm/lobic/internal/config"
	"github.com/fy-st0rm/lobic/internal/metrics"
)

// maxTrackedIPs bounds the per-IP bookkeeping maps. When exceeded, entries
// idle longer than idleIPExpiry are pruned.
const (
	maxTrackedIPs = 10000
	idleIPExpiry  = 10 * time.Minute
)

// ConnectionLimits guards the websocket endpoint against connection floods:
// a global cap, a per-IP cap, and a per-IP connection rate.
type ConnectionLimits struct {
	maxGlobal int64
	maxPerIP  int64
	ratePerIP rate.Limit
	burst     int
	clock     clockwork.Clock

	global atomic.Int64

	mu      sync.Mutex
	perIP   map[string]int64
	limiter map[string]*ipRate
}

type ipRate struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewConnectionLimits(cfg config.Config, clock clockwork.Clock) *ConnectionLimits {
	return &ConnectionLimits{
		maxGlobal: cfg.MaxConnections,
		maxPerIP:  cfg.MaxConnectionsPerIP,
		ratePerIP: rate.Limit(cfg.ConnectionRatePerIP),
		burst:     cfg.ConnectionBurstPerIP,
		clock:     clock,
		perIP:     make(map[string]int64),
		limiter:   make(map[string]*ipRate),
	}
}

// Middleware enforces the limits around a long-lived handler. The slot is
// held until the wrapped handler returns, which for websockets means until
// the connection dies.
func (l *ConnectionLimits) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			if !l.allowRate(ip) {
				metrics.ConnectionRejectionsTotal.WithLabelValues("rate").Inc()
				return echo.NewHTTPError(http.StatusTooManyRequests, "connection rate exceeded")
			}

			if !l.acquireGlobal() {
				metrics.ConnectionRejectionsTotal.WithLabelValues("global").Inc()
				return echo.NewHTTPError(http.StatusServiceUnavailable, "connection limit reached")
			}
			defer l.releaseGlobal()

			if !l.acquireIP(ip) {
				metrics.ConnectionRejectionsTotal.WithLabelValues("per_ip").Inc()
				return echo.NewHTTPError(http.StatusTooManyRequests, "per-ip connection limit reached")
			}
			defer l.releaseIP(ip)

			return next(c)
		}
	}
}

func (l *ConnectionLimits) acquireGlobal() bool {
	for {
		current := l.global.Load()
		if current >= l.maxGlobal {
			return false
		}
		if l.global.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *ConnectionLimits) releaseGlobal() {
	l.global.Add(-1)
}

func (l *ConnectionLimits) acquireIP(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perIP[ip] >= l.maxPerIP {
		return false
	}
	l.perIP[ip]++
	return true
}

func (l *ConnectionLimits) releaseIP(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.perIP[ip]--
	if l.perIP[ip] <= 0 {
		delete(l.perIP, ip)
	}
}

func (l *ConnectionLimits) allowRate(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	entry, ok := l.limiter[ip]
	if !ok {
		if len(l.limiter) >= maxTrackedIPs {
			l.pruneLocked(now)
		}
		entry = &ipRate{limiter: rate.NewLimiter(l.ratePerIP, l.burst)}
		l.limiter[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *ConnectionLimits) pruneLocked(now time.Time) {
	for ip, entry := range l.limiter {
		if now.Sub(entry.lastSeen) > idleIPExpiry {
			delete(l.limiter, ip)
		}
	}
}
