package middleware

import (
	"log"
	"net/http"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/courierhq/courier/pkg/cache"
	"github.com/courierhq/courier/pkg/config"
)

// NewRateLimiter creates a middleware that limits admission to the API.
// With Redis available the limit is shared across instances through
// redis_rate; otherwise a process-local token bucket applies. While the
// config has it disabled every request passes straight through, which is
// also the default.
func NewRateLimiter(rdb *cache.Client, cfgStore *config.Store) func(http.Handler) http.Handler {
	var (
		distributed *redis_rate.Limiter
		local       *rate.Limiter
	)

	rps, burst := limitParams(cfgStore.Get())
	if rdb != nil {
		distributed = redis_rate.NewLimiter(rdb.Redis())
	} else {
		local = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Read the flag per request so a hot reload can toggle limiting
			// without a restart.
			cfg := cfgStore.Get()
			if cfg == nil || !cfg.RateLimit.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			if distributed != nil {
				limit := redis_rate.PerSecond(perSecond(rps))
				if burst > 0 {
					limit.Burst = burst
				}
				res, err := distributed.Allow(r.Context(), "courier:api", limit)
				if err != nil {
					// Redis trouble must not take the API down; fail open.
					log.Printf("[RATELIMIT] allow check failed: %v", err)
				} else if res.Allowed == 0 {
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
					return
				}
			} else if !local.Allow() {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// perSecond converts the configured rate for the distributed limiter, which
// counts whole requests per second. Rates under one round up to one;
// truncating to zero would make every allow check error out and fail open.
func perSecond(rps float64) int {
	n := int(rps)
	if n < 1 {
		n = 1
	}
	return n
}

func limitParams(cfg *config.Config) (float64, int) {
	rps, burst := 100.0, 200
	if cfg != nil {
		if cfg.RateLimit.RPS > 0 {
			rps = cfg.RateLimit.RPS
		}
		if cfg.RateLimit.Burst > 0 {
			burst = cfg.RateLimit.Burst
		}
	}
	return rps, burst
}
