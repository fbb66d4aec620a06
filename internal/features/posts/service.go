// service.go выполняет обход сроков действия постов.
package posts

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/metrics"
	"serotonyl.ru/deal-desk/internal/notify"
)

// Store: операции хранилища, нужные обходу.
type Store interface {
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]*Post, error)
	ExpiredBefore(ctx context.Context, now time.Time) ([]*Post, error)
	MarkReminded(ctx context.Context, postID int64) (bool, error)
	MarkExpired(ctx context.Context, postID int64) (bool, error)
}

// Service управляет жизненным циклом постов.
type Service struct {
	repo     Store
	notifier notify.Notifier
	clock    common.Clock
}

func NewService(repo Store, notifier notify.Notifier, clock common.Clock) *Service {
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &Service{repo: repo, notifier: notifier, clock: clock}
}

// SweepReport: итог одного обхода.
type SweepReport struct {
	Reminded int `json:"reminded"`
	Expired  int `json:"expired"`
	Errors   int `json:"errors"`
}

// RunValiditySweep:
//  1. напоминает владельцам постов, истекающих через 2–3 дня (один раз на пост);
//  2. помечает истёкшие посты как Expired и уведомляет владельцев.
//
// Ошибка по одному посту не останавливает обход.
func (s *Service) RunValiditySweep(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	now := s.clock.Now()
	metrics.SweepRuns.WithLabelValues("posts").Inc()

	expiring, err := s.repo.ExpiringBetween(ctx, now.Add(2*common.Day), now.Add(3*common.Day))
	if err != nil {
		return rep, err
	}
	for _, p := range expiring {
		marked, err := s.repo.MarkReminded(ctx, p.ID)
		if err != nil {
			rep.Errors++
			log.WithField("post_id", p.ID).WithError(err).Error("Ошибка напоминания о сроке поста")
			continue
		}
		if !marked {
			continue
		}
		days := DaysLeft(*p.ExpiresAt, now)
		s.notify(ctx, p.AuthorID, notify.Notification{
			Type:  notify.TypePostExpiring,
			Title: "Срок действия поста истекает",
			Message: fmt.Sprintf("Ваш пост «%s» перестанет отображаться через %s. Продлите его, чтобы остаться в выдаче.",
				p.Title, common.FormatDays(days)),
			Data:     map[string]any{"postId": p.ID, "daysRemaining": days},
			Priority: notify.PriorityMedium,
		})
		rep.Reminded++
	}

	expired, err := s.repo.ExpiredBefore(ctx, now)
	if err != nil {
		return rep, err
	}
	for _, p := range expired {
		marked, err := s.repo.MarkExpired(ctx, p.ID)
		if err != nil {
			rep.Errors++
			log.WithField("post_id", p.ID).WithError(err).Error("Ошибка отметки истёкшего поста")
			continue
		}
		if !marked {
			continue
		}
		s.notify(ctx, p.AuthorID, notify.Notification{
			Type:     notify.TypePostExpired,
			Title:    "Срок действия поста истёк",
			Message:  fmt.Sprintf("Ваш пост «%s» истёк и скрыт из выдачи. Его можно восстановить, продлив срок действия.", p.Title),
			Data:     map[string]any{"postId": p.ID},
			Priority: notify.PriorityHigh,
		})
		rep.Expired++
	}

	metrics.SweepItems.WithLabelValues("posts", "reminded").Add(float64(rep.Reminded))
	metrics.SweepItems.WithLabelValues("posts", "expired").Add(float64(rep.Expired))
	metrics.SweepItems.WithLabelValues("posts", "error").Add(float64(rep.Errors))
	log.WithFields(log.Fields{
		"component": "post_sweep",
		"reminded":  rep.Reminded,
		"expired":   rep.Expired,
		"errors":    rep.Errors,
	}).Info("Обход сроков постов завершён")
	return rep, nil
}

func (s *Service) notify(ctx context.Context, userID int64, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, n); err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("Уведомление не доставлено")
	}
}
