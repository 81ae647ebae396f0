package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Counter increments a windowed counter and returns the new value.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Incr starts the window on the first hit of a key.
func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

type RateLimiter struct {
	counter Counter
	prefix  string
	limit   int64
	window  time.Duration
}

func NewRateLimiter(counter Counter, prefix string, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{counter: counter, prefix: prefix, limit: limit, window: window}
}

// Middleware limits requests per client IP. A counter failure lets the
// request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s:%s", rl.prefix, c.ClientIP())
		count, err := rl.counter.Incr(c.Request.Context(), key, rl.window)
		if err != nil {
			_ = c.Error(fmt.Errorf("rate limiter: %w", err))
			c.Next()
			return
		}
		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("rate limit exceeded, try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
