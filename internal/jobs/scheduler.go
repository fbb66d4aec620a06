// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежедневный обход сделок
// и ежедневная проверка срока действия постов.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/deal-desk/internal/features/deals"
	"serotonyl.ru/deal-desk/internal/features/posts"
)

// DealSweeper выполняет обход сделок (напоминания и автозакрытие).
type DealSweeper interface {
	RunLifecycleSweep(ctx context.Context) (deals.SweepReport, error)
}

// PostSweeper выполняет обход постов (напоминания об истечении и снятие истёкших).
type PostSweeper interface {
	RunValiditySweep(ctx context.Context) (posts.SweepReport, error)
}

// Schedule: расписания задач в формате cron (5 полей).
type Schedule struct {
	DealSweep string
	PostSweep string
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron  *cron.Cron
	deals DealSweeper
	posts PostSweeper
	sched Schedule
	loc   *time.Location
}

// NewScheduler создаёт планировщик задач в часовом поясе loc.
func NewScheduler(dealSweeper DealSweeper, postSweeper PostSweeper, sched Schedule, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:  cron.New(cron.WithLocation(loc)),
		deals: dealSweeper,
		posts: postSweeper,
		sched: sched,
		loc:   loc,
	}
}

// Start регистрирует и запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.sched.DealSweep, func() { s.RunDealSweep(ctx) }); err != nil {
		return fmt.Errorf("расписание обхода сделок: %w", err)
	}
	if _, err := s.cron.AddFunc(s.sched.PostSweep, func() { s.RunPostSweep(ctx) }); err != nil {
		return fmt.Errorf("расписание обхода постов: %w", err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"deal_sweep": s.sched.DealSweep,
		"post_sweep": s.sched.PostSweep,
		"timezone":   s.loc.String(),
	}).Info("Планировщик задач запущен")
	return nil
}

// RunDealSweep выполняет один обход сделок.
func (s *Scheduler) RunDealSweep(ctx context.Context) {
	log.Info("[CRON] Обход сделок")
	if _, err := s.deals.RunLifecycleSweep(ctx); err != nil {
		log.WithError(err).Error("[CRON] Ошибка обхода сделок")
	}
}

// RunPostSweep выполняет один обход постов.
func (s *Scheduler) RunPostSweep(ctx context.Context) {
	log.Info("[CRON] Проверка срока действия постов")
	if _, err := s.posts.RunValiditySweep(ctx); err != nil {
		log.WithError(err).Error("[CRON] Ошибка проверки постов")
	}
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
