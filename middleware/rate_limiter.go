package middleware

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"kazi/apperrors"
	"kazi/utils"
)

// In-memory sliding-window limiters keyed by client IP or user.

type timestamps []int64 // unix nanos

var nowUnix = func() int64 { return time.Now().UnixNano() }

func getEnvInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return time.Duration(v) * time.Second
		}
	}
	return def
}

// window keeps the timestamps of one key within a sliding window.
type window struct {
	mu    sync.Mutex
	size  time.Duration
	state map[string]timestamps
}

func newWindow(size time.Duration) *window {
	return &window{size: size, state: make(map[string]timestamps)}
}

// hit records a request for key and returns the number of requests in the
// window and the oldest of them.
func (w *window) hit(key string) (count int, oldest int64) {
	now := nowUnix()
	cutoff := now - int64(w.size)

	w.mu.Lock()
	defer w.mu.Unlock()
	var filtered timestamps
	for _, ts := range w.state[key] {
		if ts >= cutoff {
			filtered = append(filtered, ts)
		}
	}
	filtered = append(filtered, now)
	w.state[key] = filtered
	return len(filtered), filtered[0]
}

// retryAfter is the number of seconds until oldest leaves the window.
func (w *window) retryAfter(oldest int64) int {
	left := time.Duration(oldest + int64(w.size) - nowUnix())
	if secs := int(left.Seconds()); secs > 0 {
		return secs
	}
	return 1
}

func (w *window) cleanup() {
	cutoff := nowUnix() - int64(w.size)
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, arr := range w.state {
		if len(arr) == 0 || arr[len(arr)-1] < cutoff {
			delete(w.state, k)
		}
	}
}

func cleanupLoop(every time.Duration, w *window) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for range tick.C {
		w.cleanup()
	}
}

func tooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	utils.WriteMessage(w, r, http.StatusTooManyRequests, apperrors.MsgTooManyRequests)
}

// clientIPGeneric returns the client IP string. X-Forwarded-For and X-Real-IP
// are honored only when the remote address is one of trustedCIDR.
func clientIPGeneric(r *http.Request, trustedCIDR []string) string {
	remoteHost, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteHost = r.RemoteAddr
	}
	remoteIP := net.ParseIP(remoteHost)
	trusted := false
	for _, cidr := range trustedCIDR {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if strings.Contains(cidr, "/") {
			if _, ipnet, err := net.ParseCIDR(cidr); err == nil && remoteIP != nil && ipnet.Contains(remoteIP) {
				trusted = true
				break
			}
			continue
		}
		if ip := net.ParseIP(cidr); ip != nil && remoteIP != nil && ip.Equal(remoteIP) {
			trusted = true
			break
		}
	}
	if trusted {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			return strings.TrimSpace(strings.Split(xff, ",")[0])
		}
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			return strings.TrimSpace(xr)
		}
	}
	return remoteHost
}

// IPRateLimiter limits requests per client IP.
type IPRateLimiter struct {
	max         int
	win         *window
	trustedCIDR []string
}

func NewIPRateLimiter(maxReq int, size time.Duration) *IPRateLimiter {
	l := &IPRateLimiter{max: maxReq, win: newWindow(size)}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		l.trustedCIDR = strings.Split(v, ",")
	}
	go cleanupLoop(getEnvDuration("RATE_CLEANUP_SECONDS", time.Minute), l.win)
	return l
}

func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, oldest := l.win.hit(clientIPGeneric(r, l.trustedCIDR))

		remaining := l.max - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.max))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > l.max {
			tooManyRequests(w, r, l.win.retryAfter(oldest))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserRateLimiter limits authenticated requests per user, with separate
// budgets for reads and writes. Crossing a budget earns an escalating penalty.
type UserRateLimiter struct {
	read, write int
	win         *window

	mu      sync.Mutex
	penalty map[string]penaltyInfo
}

type penaltyInfo struct {
	Level int
	Until int64 // unix nanos
}

func NewUserRateLimiter(maxRead, maxWrite int, size time.Duration) *UserRateLimiter {
	l := &UserRateLimiter{
		read:    maxRead,
		write:   maxWrite,
		win:     newWindow(size),
		penalty: make(map[string]penaltyInfo),
	}
	go cleanupLoop(getEnvDuration("RATE_CLEANUP_SECONDS", time.Minute), l.win)
	return l
}

func penaltyFor(level int) time.Duration {
	switch level {
	case 1:
		return time.Minute
	case 2:
		return 5 * time.Minute
	case 3:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := utils.GetUserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		cat, limit := "read", l.read
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			cat, limit = "write", l.write
		}
		key := fmt.Sprintf("u:%d:%s", uid, cat)
		now := nowUnix()

		l.mu.Lock()
		pi := l.penalty[key]
		if pi.Until > now {
			l.mu.Unlock()
			tooManyRequests(w, r, int(time.Duration(pi.Until-now).Seconds())+1)
			return
		}
		l.mu.Unlock()

		count, _ := l.win.hit(key)
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > limit {
			d := penaltyFor(pi.Level + 1)
			l.mu.Lock()
			l.penalty[key] = penaltyInfo{Level: pi.Level + 1, Until: now + int64(d)}
			l.mu.Unlock()
			tooManyRequests(w, r, int(d.Seconds()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WebhookLimiter limits gateway callbacks per source IP. Whitelisted IPs are
// never limited.
type WebhookLimiter struct {
	max         int
	win         *window
	whitelist   map[string]bool
	trustedCIDR []string
	reject      http.Handler
}

func NewWebhookLimiter(maxReq int, size time.Duration, whitelist []string) *WebhookLimiter {
	wl := make(map[string]bool)
	for _, ip := range whitelist {
		if ip = strings.TrimSpace(ip); ip != "" {
			wl[ip] = true
		}
	}
	l := &WebhookLimiter{max: maxReq, win: newWindow(size), whitelist: wl}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		l.trustedCIDR = strings.Split(v, ",")
	}
	go cleanupLoop(getEnvDuration("RATE_CLEANUP_SECONDS", time.Minute), l.win)
	return l
}

// WithTrustedProxies replaces the proxies read from TRUSTED_PROXIES when
// cidrs is not empty.
func (l *WebhookLimiter) WithTrustedProxies(cidrs []string) *WebhookLimiter {
	if len(cidrs) > 0 {
		l.trustedCIDR = cidrs
	}
	return l
}

// WithRejectHandler answers over-limit requests with h instead of 429.
func (l *WebhookLimiter) WithRejectHandler(h http.Handler) *WebhookLimiter {
	l.reject = h
	return l
}

func (l *WebhookLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPGeneric(r, l.trustedCIDR)
		if l.whitelist[ip] {
			next.ServeHTTP(w, r)
			return
		}
		count, oldest := l.win.hit(ip)
		if count > l.max {
			if l.reject != nil {
				l.reject.ServeHTTP(w, r)
				return
			}
			tooManyRequests(w, r, l.win.retryAfter(oldest))
			return
		}
		next.ServeHTTP(w, r)
	})
}
