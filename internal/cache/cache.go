// Package cache: инвалидация ключей кэша, который читают внешние сервисы (лента постов, профили).
// Если Redis не настроен, используется Nop.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Invalidator: сброс ключей кэша.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
	InvalidatePattern(ctx context.Context, pattern string) error
}

// Ключи кэша
func UserKey(userID int64) string      { return "user_" + strconv.FormatInt(userID, 10) }
func PostKey(postID int64) string      { return "post_" + strconv.FormatInt(postID, 10) }
func UserDealsKey(userID int64) string { return "deals_user_" + strconv.FormatInt(userID, 10) }

// PostPagesPattern: все страницы ленты постов.
const PostPagesPattern = "posts_page_*"

// Redis: инвалидация через go-redis.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis подключается к Redis и проверяет соединение.
func NewRedis(ctx context.Context, addr, password string, db int, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis недоступен: %w", err)
	}

	log.WithField("addr", addr).Info("Подключение к Redis установлено")
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Redis) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("ошибка сброса кэша: %w", err)
	}
	return nil
}

// InvalidatePattern удаляет ключи по шаблону через SCAN (без блокирующего KEYS).
func (r *Redis) InvalidatePattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, r.key(pattern), 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("ошибка сброса кэша по шаблону: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("ошибка обхода ключей кэша: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("ошибка сброса кэша по шаблону: %w", err)
		}
	}
	return nil
}

// Close закрывает соединение.
func (r *Redis) Close() error { return r.client.Close() }

// Client отдаёт клиент для других потребителей Redis (лимитер запросов).
func (r *Redis) Client() *redis.Client { return r.client }

// Nop: кэш отключён.
type Nop struct{}

func (Nop) Invalidate(context.Context, ...string) error    { return nil }
func (Nop) InvalidatePattern(context.Context, string) error { return nil }

// Safe сбрасывает ключи и логирует ошибку вместо возврата.
// Сбой кэша не должен ломать основную операцию.
func Safe(ctx context.Context, inv Invalidator, keys ...string) {
	if inv == nil {
		return
	}
	if err := inv.Invalidate(ctx, keys...); err != nil {
		log.WithField("keys", keys).WithError(err).Warn("Не удалось сбросить кэш")
	}
}

// SafePattern: то же для шаблона.
func SafePattern(ctx context.Context, inv Invalidator, pattern string) {
	if inv == nil {
		return
	}
	if err := inv.InvalidatePattern(ctx, pattern); err != nil {
		log.WithField("pattern", pattern).WithError(err).Warn("Не удалось сбросить кэш")
	}
}
