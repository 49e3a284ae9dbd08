package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type RateLimitConfig struct {
	RequestsPerPeriod int
	Period            time.Duration
	Store             limiter.Store
	// KeyFunc picks the bucket; defaults to the client IP.
	KeyFunc func(r *http.Request) string
	// Prefix keeps buckets of different limiters apart in a shared store.
	Prefix string
}

var ErrTooManyRequests = serrors.NewError(serrors.TooManyRequests, "too many requests, try again later", "Errors.TooManyRequests")

func NewMemoryStore() limiter.Store {
	return memory.NewStore()
}

func NewRedisStore(redisURL string) (limiter.Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		opts = &redis.Options{Addr: redisURL}
	}
	return redisstore.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix: "admin-portal:ratelimit",
	})
}

// NewStore builds the store configured by RATE_LIMIT_STORAGE, falling back
// to memory when redis is unreachable.
func NewStore(conf configuration.RateLimitOptions, logger *logrus.Logger) limiter.Store {
	if conf.Storage == "redis" {
		store, err := NewRedisStore(conf.RedisURL)
		if err == nil {
			return store
		}
		logger.WithError(err).Warn("failed to create redis rate limit store, falling back to memory")
	}
	return NewMemoryStore()
}

func ipKey(r *http.Request) string {
	if ip, ok := composables.UseIP(r.Context()); ok && ip != "" {
		return ip
	}
	return clientIP(r, "")
}

func RateLimit(cfg RateLimitConfig) mux.MiddlewareFunc {
	if cfg.Period == 0 {
		cfg.Period = time.Second
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ipKey
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	instance := limiter.New(cfg.Store, limiter.Rate{
		Period: cfg.Period,
		Limit:  int64(cfg.RequestsPerPeriod),
	})
	return func(next http.Handler) http.Handler {
		if cfg.RequestsPerPeriod <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.Prefix + cfg.KeyFunc(r)
			lctx, err := instance.Get(r.Context(), key)
			if err != nil {
				composables.UseLogger(r.Context()).WithError(err).Error("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
			if lctx.Reached {
				h.Set("Retry-After", strconv.FormatInt(max(lctx.Reset-time.Now().Unix(), 1), 10))
				_ = httpapi.WriteError(w, ErrTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginRateLimit limits sign-in attempts per IP to perMinute.
func LoginRateLimit(store limiter.Store, perMinute int) mux.MiddlewareFunc {
	return RateLimit(RateLimitConfig{
		RequestsPerPeriod: perMinute,
		Period:            time.Minute,
		Store:             store,
		Prefix:            "login:",
	})
}
