package httpadapter

import (
	"context"
	"math"
	"net/http"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const backpressureWait = 100 * time.Millisecond

// Liveness checks and metric scrapes bypass both gates so an overloaded API
// is not restarted by its orchestrator.
func exemptFromTrafficControl(r *http.Request) bool {
	return r.Method == http.MethodGet && slices.Contains(quietPaths, r.URL.Path)
}

func reject(w http.ResponseWriter, status int, retryAfter time.Duration, body errorResponse) {
	secs := max(1, int(math.Ceil(retryAfter.Seconds())))
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, status, body)
}

// rateLimitMiddleware applies one token bucket to all requests. rps <= 0
// disables it.
func rateLimitMiddleware(next http.Handler, rps float64, burst int) http.Handler {
	if rps <= 0 {
		return next
	}
	bucket := rate.NewLimiter(rate.Limit(rps), max(burst, 1))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptFromTrafficControl(r) {
			next.ServeHTTP(w, r)
			return
		}
		res := bucket.Reserve()
		if wait := res.Delay(); wait > 0 {
			res.Cancel()
			reject(w, http.StatusTooManyRequests, wait, errorResponse{
				Error:  "rate_limited",
				Detail: "request rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware caps in-flight requests. Uploads are the expensive
// part of this API, so a request that finds no free slot within wait is
// turned away with 503 instead of queueing behind running extractions.
func backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration) http.Handler {
	if maxInFlight <= 0 {
		return next
	}
	slots := semaphore.NewWeighted(int64(maxInFlight))

	acquire := func(ctx context.Context) bool {
		if slots.TryAcquire(1) {
			return true
		}
		ctx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		return slots.Acquire(ctx, 1) == nil
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptFromTrafficControl(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !acquire(r.Context()) {
			reject(w, http.StatusServiceUnavailable, time.Second, errorResponse{
				Error:  "server_error",
				Detail: "server is overloaded, retry later",
			})
			return
		}
		defer slots.Release(1)
		next.ServeHTTP(w, r)
	})
}
