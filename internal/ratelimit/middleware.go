package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-beaute/internal/common"
)

// Handler enforces a fixed-window limit before delegating to the next handler.
type Handler struct {
	Limiter *limiter.Limiter
	// Key derives the bucket for a request; nil buckets by client IP.
	Key     func(*http.Request) string
	OnError func(error)
}

// New builds a limiter allowing max requests per period. A nil client keeps
// counters in process memory.
func New(client *redis.Client, prefix string, max int64, period time.Duration, trustProxy bool) (*limiter.Limiter, error) {
	if max <= 0 || period <= 0 {
		return nil, fmt.Errorf("ratelimit: invalid rate %d per %s", max, period)
	}
	rate := limiter.Rate{Period: period, Limit: max}
	var store limiter.Store
	if client == nil {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix})
	} else {
		var err error
		store, err = limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
		if err != nil {
			return nil, fmt.Errorf("ratelimit: redis store: %w", err)
		}
	}
	return limiter.New(store, rate, limiter.WithTrustForwardHeader(trustProxy)), nil
}

// Middleware implements the http.Handler middleware interface. Store failures fail open.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		var key string
		if h.Key != nil {
			key = h.Key(r)
		} else {
			key = h.Limiter.GetIPKey(r)
		}
		res, err := h.Limiter.Get(r.Context(), key)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset, 10))

		if res.Reached {
			retryAfter := max(time.Until(time.Unix(res.Reset, 0)).Seconds(), 0)
			headers.Set("Retry-After", strconv.Itoa(int(retryAfter)))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, try again later", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
