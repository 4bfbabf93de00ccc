package ratelimit

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	mstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewAuthLimiter builds a strict per-IP limiter for the credential endpoints.
// It is separate from the general limiter so login and register can be held
// to a much tighter budget.
func NewAuthLimiter(client *redis.Client, max int64, window time.Duration) (func(http.Handler) http.Handler, error) {
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "rl:auth",
	})
	if err != nil {
		return nil, err
	}
	mw := mstdlib.NewMiddleware(limiter.New(store, limiter.Rate{Period: window, Limit: max}))
	return mw.Handler, nil
}
