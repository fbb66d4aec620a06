package deals

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/features/credits"
	"serotonyl.ru/deal-desk/internal/metrics"
	"serotonyl.ru/deal-desk/internal/notify"
)

// SweepReport: итог обхода сделок.
type SweepReport struct {
	Processed int `json:"processed"`
	Reminded  int `json:"reminded"`
	Closed    int `json:"closed"`
	Errors    int `json:"errors"`
}

type sweepOutcome int

const (
	outcomeNone sweepOutcome = iota
	outcomeReminded
	outcomeClosed
)

// RunLifecycleSweep обходит активные открытые сделки:
// сделки старше срока жизни закрываются со штрафом, остальным отправляются напоминания.
// Ошибка по одной сделке не останавливает обход. Каждая сделка обрабатывается одной горутиной.
func (s *Service) RunLifecycleSweep(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	metrics.SweepRuns.WithLabelValues("deals").Inc()

	now := s.clock.Now()
	open, err := s.store.ActiveOpen(ctx)
	if err != nil {
		return rep, err
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.SweepConcurrency)
	for _, d := range open {
		g.Go(func() error {
			outcome, err := s.sweepDeal(ctx, d, now)

			mu.Lock()
			defer mu.Unlock()
			rep.Processed++
			switch {
			case err != nil:
				rep.Errors++
				log.WithField("deal_id", d.DealID).WithError(err).Error("Ошибка обработки сделки в обходе")
			case outcome == outcomeReminded:
				rep.Reminded++
			case outcome == outcomeClosed:
				rep.Closed++
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.SweepItems.WithLabelValues("deals", "reminded").Add(float64(rep.Reminded))
	metrics.SweepItems.WithLabelValues("deals", "closed").Add(float64(rep.Closed))
	metrics.SweepItems.WithLabelValues("deals", "error").Add(float64(rep.Errors))
	log.WithFields(log.Fields{
		"component": "deal_sweep",
		"processed": rep.Processed,
		"reminded":  rep.Reminded,
		"closed":    rep.Closed,
		"errors":    rep.Errors,
	}).Info("Обход сделок завершён")
	return rep, nil
}

func (s *Service) sweepDeal(ctx context.Context, d *Deal, now time.Time) (sweepOutcome, error) {
	if common.WholeDaysBetween(d.CreatedAt, now) >= s.cfg.LifetimeDays {
		closed, err := s.autoClose(ctx, d, now)
		if err != nil || !closed {
			return outcomeNone, err
		}
		return outcomeClosed, nil
	}
	if now.After(d.ExpiresAt) {
		return outcomeNone, nil
	}

	r, ok := ReminderFor(d.CreatedAt, d.LastReminderSent, now)
	if !ok {
		return outcomeNone, nil
	}
	title := s.postTitle(ctx, d.PostID)
	daysLeft := s.cfg.LifetimeDays - r.Day
	for _, role := range []Role{RoleUnlocker, RoleAuthor} {
		s.notify(ctx, d.Party(role), reminderNotification(r, role, d, title, daysLeft))
	}
	if err := s.store.MarkReminded(ctx, d.ID, now); err != nil {
		return outcomeNone, err
	}
	return outcomeReminded, nil
}

// autoClose закрывает сделку принудительно, без подтверждений. Штраф обеим сторонам,
// chronicNonUpdate, счётчик штрафов пользователей и уведомления.
// false: сделку параллельно изменил кто-то другой.
func (s *Service) autoClose(ctx context.Context, d *Deal, now time.Time) (bool, error) {
	penalty := s.cfg.AutoClosePenalty
	_, err := s.apply(ctx, d, StatusClosed, HistoryEntry{
		Status:    StatusClosed,
		UpdatedAt: now,
		Notes:     fmt.Sprintf("Автоматически закрыта: нет обновлений %s", common.FormatDays(s.cfg.LifetimeDays)),
		Initiator: InitiatorScheduler,
	}, applyOpts{chronic: true, extra: credits.Adjustment{Penalty: penalty}})
	if errors.Is(err, common.ErrStaleDeal) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	title := s.postTitle(ctx, d.PostID)
	for _, role := range []Role{RoleUnlocker, RoleAuthor} {
		uid := d.Party(role)
		if err := s.users.RecordPenalty(ctx, uid); err != nil {
			log.WithFields(log.Fields{"deal_id": d.DealID, "user_id": uid}).
				WithError(err).Warn("Не удалось обновить счётчик штрафов")
		}

		msg := fmt.Sprintf("Сделка по посту «%s» автоматически закрыта из-за отсутствия обновлений.", title)
		if role == RoleAuthor {
			msg = fmt.Sprintf("Сделка по вашему посту «%s» автоматически закрыта из-за отсутствия обновлений.", title)
		}
		if penalty > 0 {
			msg += " Штраф: " + common.FormatCredits(penalty) + "."
		}
		s.notify(ctx, uid, notify.Notification{
			Type:     notify.TypeDealAutoClosed,
			Title:    "Сделка закрыта автоматически",
			Message:  msg,
			Data:     map[string]any{"dealId": d.DealID, "id": d.ID, "penalty": penalty},
			Priority: notify.PriorityUrgent,
		})
	}

	log.WithFields(log.Fields{"deal_id": d.DealID, "penalty": penalty}).Warn("Сделка закрыта автоматически")
	return true, nil
}

func (s *Service) postTitle(ctx context.Context, postID int64) string {
	p, err := s.posts.Get(ctx, postID)
	if err != nil || p.Title == "" {
		return fmt.Sprintf("#%d", postID)
	}
	return p.Title
}
