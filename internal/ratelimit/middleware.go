package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-api/internal/apperr"
)

var ErrTooManyRequests = apperr.New(apperr.ErrTooManyRequests, "Too many requests, please try again later")

// Allower decides whether one more hit for key fits in the window.
type Allower interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware limits requests per client IP and path. A failing Allower lets the request through.
func Middleware(limiter Allower, writeErr ErrorWriter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r) + ":" + r.URL.Path

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Error("rate limit check failed", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				retry := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				logger.Warn("rate limit exceeded", zap.String("key", key), zap.Time("reset_at", res.ResetAt))
				writeErr(w, r, ErrTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP берет адрес после middleware.RealIP; порт отбрасывается.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
