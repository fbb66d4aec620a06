package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisLimiter: фиксированное окно на счётчике Redis, общее для всех реплик.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
}

func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (rl *RedisLimiter) Window() time.Duration { return rl.window }

// Allow увеличивает счётчик ключа. При ошибке Redis запрос пропускается.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) bool {
	k := "ratelimit:" + key
	count, err := rl.client.Incr(ctx, k).Result()
	if err != nil {
		log.WithError(err).Warn("Лимитер: Redis недоступен, пропускаем запрос")
		return true
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, k, rl.window).Err(); err != nil {
			log.WithError(err).Warn("Лимитер: не удалось выставить TTL")
		}
	}
	return count <= int64(rl.limit)
}
