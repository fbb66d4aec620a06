// Package workspace ведёт запись итогов сделок и выдача значков.
package workspace

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/notify"
)

// Store: хранилище истории и значков.
type Store interface {
	Get(ctx context.Context, userID int64) (Workspace, error)
	RecordOutcome(ctx context.Context, userID int64, e Entry) (Workspace, error)
	History(ctx context.Context, userID int64) ([]*Entry, error)
	Badges(ctx context.Context, userID int64) ([]Badge, error)
	AwardBadge(ctx context.Context, userID int64, level int, at time.Time) (bool, error)
}

// Service: агрегатор истории сделок пользователя.
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

// RecordOutcome записывает итог сделки по посту и, если сделка выиграна, проверяет значки.
func (s *Service) RecordOutcome(ctx context.Context, userID, postID, dealID int64, result Result) (Workspace, error) {
	e := Entry{
		PostID:    postID,
		DealID:    dealID,
		Result:    result,
		Notes:     "Сделка отмечена как " + strings.ToLower(string(result)),
		UpdatedAt: s.clock.Now(),
	}
	ws, err := s.repo.RecordOutcome(ctx, userID, e)
	if err != nil {
		return ws, err
	}
	if result == ResultWon {
		if _, err := s.EvaluateBadges(ctx, userID); err != nil {
			log.WithField("user_id", userID).WithError(err).Warn("Ошибка проверки значков")
		}
	}
	return ws, nil
}

// EvaluateBadges выдаёт значки за пройденные пороги и возвращает новые уровни.
// Значки никогда не отзываются: уменьшение wonDeals их не трогает.
func (s *Service) EvaluateBadges(ctx context.Context, userID int64) ([]int, error) {
	ws, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned, err := s.repo.Badges(ctx, userID)
	if err != nil {
		return nil, err
	}

	var awarded []int
	now := s.clock.Now()
	for _, level := range Missing(ws.WonDeals, earned) {
		ok, err := s.repo.AwardBadge(ctx, userID, level, now)
		if err != nil {
			return awarded, err
		}
		if !ok {
			continue
		}
		awarded = append(awarded, level)
		log.WithFields(log.Fields{"user_id": userID, "level": level}).Info("Выдан значок")

		if s.notifier != nil {
			_ = s.notifier.Notify(ctx, userID, notify.Notification{
				Type:     notify.TypeBadgeEarned,
				Title:    fmt.Sprintf("🏆 %s получен!", BadgeTitle(level)),
				Message:  fmt.Sprintf("Поздравляем! У вас уже %d успешных сделок.", ws.WonDeals),
				Data:     map[string]any{"badgeLevel": level, "wonDealsCount": ws.WonDeals},
				Priority: notify.PriorityHigh,
			})
		}
	}
	return awarded, nil
}

// Summary: счётчики, история и значки пользователя.
type Summary struct {
	Workspace
	History []*Entry `json:"history"`
	Badges  []Badge  `json:"badges"`
}

// Summary собирает всё для профиля.
func (s *Service) Summary(ctx context.Context, userID int64) (*Summary, error) {
	ws, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	badges, err := s.repo.Badges(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Summary{Workspace: ws, History: history, Badges: badges}, nil
}
