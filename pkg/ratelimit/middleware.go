package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// KeyFunc extracts the bucket key of a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by remote address. With trustProxy the first valid
// address of X-Forwarded-For, then X-Real-IP, wins.
func ClientIP(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		if trustProxy {
			for ip := range strings.SplitSeq(r.Header.Get("X-Forwarded-For"), ",") {
				if parsed := parseIP(ip); parsed != "" {
					return parsed
				}
			}
			if parsed := parseIP(r.Header.Get("X-Real-IP")); parsed != "" {
				return parsed
			}
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return parseIP(r.RemoteAddr)
		}
		return parseIP(host)
	}
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

// Middleware limits requests per key with l. Store failures let the request
// through and are logged; a limiter outage must not take delivery down.
func Middleware(l *Limiter, key KeyFunc, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Allow(r.Context(), k)
			if err != nil {
				log.LogAttrs(r.Context(), slog.LevelError, "rate limit check failed", logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				wait := res.RetryAfter(l.now())
				h.Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

