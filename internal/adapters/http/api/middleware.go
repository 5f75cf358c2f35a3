package api

import (
	"bytes"
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/okian/klapi/internal/domain/dedupe"
	"github.com/okian/klapi/pkg/metrics"
)

// IdempotencyHeader carries the client-chosen key of a retried admin request.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader is set on responses served from the idempotency cache.
const ReplayedHeader = "Idempotent-Replayed"

type ctxKey int

const adminKey ctxKey = iota

// AdminFrom returns the authenticated admin name, or "" outside admin routes.
func AdminFrom(ctx context.Context) string {
	name, _ := ctx.Value(adminKey).(string)
	return name
}

// MetricsMiddleware records request count and latency per route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		endpoint := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, status, time.Since(start).Seconds())
		if wrapped.statusCode >= http.StatusBadRequest {
			metrics.RecordError("http", errorType(wrapped.statusCode))
		}
	})
}

func errorType(statusCode int) string {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return "server_error"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limit"
	case statusCode == http.StatusUnauthorized:
		return "unauthorized"
	case statusCode == http.StatusNotFound:
		return "not_found"
	default:
		return "client_error"
	}
}

// responseWriter captures the status code and, when capture is set, the body.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	capture     bool
	body        bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	if rw.capture {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[ip]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[ip] = limiter
	return limiter
}

// RateLimitMiddleware limits requests per client IP with a token bucket.
func RateLimitMiddleware(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := newIPLimiter(perSecond, burst)
	retryAfter := "1"
	if perSecond > 0 && perSecond < 1 {
		retryAfter = strconv.Itoa(int(1/perSecond + 0.5))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil || ip == "" {
				ip = r.RemoteAddr
			}
			if !limiter.get(ip).Allow() {
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "rate_limited", ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BasicAuthMiddleware admits requests whose credentials match admins and
// stores the admin name in the request context.
func BasicAuthMiddleware(admins map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, pass, ok := r.BasicAuth()
			want, known := admins[name]
			if !ok || !known || subtle.ConstantTimeCompare([]byte(pass), []byte(want)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="klapi admin", charset="UTF-8"`)
				writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey, name)))
		})
	}
}

// IdempotencyMiddleware replays the stored response of a completed request
// carrying the same Idempotency-Key and rejects one still in flight. Failed
// requests are forgotten so they can be retried. Requests without the header
// pass through untouched.
func IdempotencyMiddleware(d dedupe.Deduper) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(IdempotencyHeader)
			if d == nil || header == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := AdminFrom(ctx) + ":" + r.Method + ":" + r.URL.Path + ":" + header

			res, state := d.Begin(ctx, key)
			switch state {
			case dedupe.StateDone:
				w.Header().Set(ReplayedHeader, "true")
				if len(res.Body) > 0 {
					w.Header().Set("Content-Type", "application/json; charset=utf-8")
				}
				w.WriteHeader(res.Status)
				_, _ = w.Write(res.Body)
				return
			case dedupe.StateInFlight:
				writeError(w, http.StatusConflict, "in_flight", ErrInFlight)
				return
			}

			rec := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK, capture: true}
			defer func() {
				if p := recover(); p != nil {
					d.Forget(ctx, key)
					panic(p)
				}
			}()
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusBadRequest {
				d.Forget(ctx, key)
				return
			}
			d.Complete(ctx, key, dedupe.Result{Status: rec.statusCode, Body: rec.body.Bytes()})
		})
	}
}
