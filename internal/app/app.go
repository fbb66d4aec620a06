// Package app инициализирует все компоненты приложения.
// app.go является точкой сборки. Создаёт БД-пул, репозитории, сервисы,
// HTTP-сервер и планировщик и собирает всё в один объект App.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/deal-desk/internal/api"
	"serotonyl.ru/deal-desk/internal/api/middleware"
	"serotonyl.ru/deal-desk/internal/cache"
	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/config"
	"serotonyl.ru/deal-desk/internal/db/postgres"
	"serotonyl.ru/deal-desk/internal/features/admin"
	"serotonyl.ru/deal-desk/internal/features/credits"
	"serotonyl.ru/deal-desk/internal/features/deals"
	"serotonyl.ru/deal-desk/internal/features/posts"
	"serotonyl.ru/deal-desk/internal/features/unlock"
	"serotonyl.ru/deal-desk/internal/features/users"
	"serotonyl.ru/deal-desk/internal/features/workspace"
	"serotonyl.ru/deal-desk/internal/jobs"
	"serotonyl.ru/deal-desk/internal/notify"
)

// App содержит все компоненты приложения.
type App struct {
	DB        *pgxpool.Pool
	HTTP      *http.Server
	Scheduler *jobs.Scheduler
	Deals     *deals.Service
	Posts     *posts.Service

	limiter *middleware.RateLimiter
	redis   *cache.Redis
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	a := &App{DB: pool}

	// === 2. Кэш ===
	var inv cache.Invalidator = cache.Nop{}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "dealdesk")
		if err != nil {
			// Без кэша сервис работает, просто не сбрасывает ключи
			log.WithError(err).Warn("Redis недоступен, инвалидация кэша отключена")
		} else {
			a.redis = rc
			inv = rc
		}
	}

	// === 3. Репозитории ===
	userRepo := users.NewRepository(pool)
	creditRepo := credits.NewRepository(pool)
	postRepo := posts.NewRepository(pool)
	workspaceRepo := workspace.NewRepository(pool)
	dealRepo := deals.NewRepository(pool)
	unlockRepo := unlock.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)
	inbox := notify.NewInbox(pool)

	// === 4. Уведомления ===
	channels := []notify.Channel{{Name: "inbox", Notifier: inbox}}
	if cfg.TelegramBotToken != "" && cfg.FeatureTelegramNotify {
		bot, err := notify.NewTelegramBot(cfg.TelegramBotToken)
		if err != nil {
			log.WithError(err).Warn("Telegram недоступен, уведомления только во внутренний ящик")
		} else {
			channels = append(channels, notify.Channel{Name: "telegram", Notifier: notify.NewTelegram(bot, userRepo)})
		}
	}
	notifier := notify.NewMulti(channels...)

	// === 5. Сервисы ===
	clock := common.SystemClock{}
	userService := users.NewService(userRepo)
	creditService := credits.NewService(creditRepo, clock)
	postService := posts.NewService(postRepo, notifier, clock)
	workspaceService := workspace.NewService(workspaceRepo, notifier, clock)
	dealService := deals.NewService(deals.Deps{
		Store:    dealRepo,
		Posts:    postRepo,
		Ledger:   creditService,
		History:  workspaceService,
		Users:    userService,
		Notifier: notifier,
		Cache:    inv,
		Clock:    clock,
	}, deals.Settings{
		LifetimeDays:     cfg.DealLifetimeDays,
		AutoClosePenalty: cfg.DealAutoClosePenalty,
		SweepConcurrency: cfg.SweepConcurrency,
	})
	unlockService := unlock.NewService(unlockRepo, dealService, notifier, inv, clock, cfg.UnlockCost)
	adminService := admin.NewService(adminRepo, cfg.AdminTokenHash, cfg.IsAdmin, clock)

	// === 6. HTTP ===
	var limiter middleware.Limiter
	if a.redis != nil {
		limiter = middleware.NewRedisLimiter(a.redis.Client(), cfg.RateLimitRequests, cfg.RateLimitWindow)
	} else {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		limiter = a.limiter
	}
	srv := api.NewServer(api.Deps{
		Deals:     dealService,
		Unlock:    unlockService,
		Credits:   creditService,
		Workspace: workspaceService,
		Users:     userService,
		Inbox:     inbox,
		Admin:     adminService,
	}, api.Options{
		RequestTimeout: cfg.HTTPRequestTimeout,
		Limiter:        limiter,
		Metrics:        true,
	})
	a.HTTP = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.HTTPRequestTimeout,
	}

	// === 7. Планировщик задач ===
	a.Scheduler = jobs.NewScheduler(dealService, postService, jobs.Schedule{
		DealSweep: cfg.DealSweepCron,
		PostSweep: cfg.PostSweepCron,
	}, common.LoadLocation(cfg.AppTimezone))

	a.Deals = dealService
	a.Posts = postService
	return a, nil
}

// Serve запускает HTTP-сервер и блокируется до ошибки или Shutdown.
func (a *App) Serve() error {
	log.WithField("addr", a.HTTP.Addr).Info("HTTP-сервер запущен")
	if err := a.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка HTTP-сервера: %w", err)
	}
	return nil
}

// Close освобождает ресурсы: HTTP-сервер, лимитер, Redis, пул БД.
func (a *App) Close(ctx context.Context) {
	if a.HTTP != nil {
		if err := a.HTTP.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("HTTP-сервер остановлен с ошибкой")
		}
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	a.DB.Close()
}

// Migrate применяет все встроенные миграции.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return postgres.RunMigrations(ctx, pool, Migrations)
}
