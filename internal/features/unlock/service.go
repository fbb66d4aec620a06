package unlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/deal-desk/internal/cache"
	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/features/deals"
	"serotonyl.ru/deal-desk/internal/features/posts"
	"serotonyl.ru/deal-desk/internal/metrics"
	"serotonyl.ru/deal-desk/internal/notify"
)

// Receipt: итог записи разблокировки в хранилище.
type Receipt struct {
	PostID    int64
	PostTitle string
	AuthorID  int64
	Remaining int64 // Остаток кредитов разблокировки
}

// Result: ответ на разблокировку.
type Result struct {
	PostID                 int64  `json:"postId"`
	DealID                 string `json:"dealId,omitempty"`
	RemainingUnlockCredits int64  `json:"remainingUnlockCredits"`
	Message                string `json:"message"`
}

// Store: хранилище разблокировок.
type Store interface {
	Unlock(ctx context.Context, userID, postID, cost int64, now time.Time) (*Receipt, error)
}

// DealCreator создаёт сделку после разблокировки.
type DealCreator interface {
	Create(ctx context.Context, postID, unlockerID, authorID int64) (*deals.Deal, error)
}

// CheckTarget: пост активен и не принадлежит тому, кто его разблокирует.
func CheckTarget(p *posts.Post, userID int64) error {
	if !p.IsActive || p.IsExpired {
		return common.ErrPostNotFound
	}
	if p.AuthorID == userID {
		return common.ErrOwnPostUnlock
	}
	return nil
}

type Service struct {
	store    Store
	deals    DealCreator
	notifier notify.Notifier
	cache    cache.Invalidator
	clock    common.Clock
	cost     int64
}

func NewService(store Store, dealCreator DealCreator, notifier notify.Notifier, inv cache.Invalidator, clock common.Clock, cost int64) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if inv == nil {
		inv = cache.Nop{}
	}
	if clock == nil {
		clock = common.SystemClock{}
	}
	if cost <= 0 {
		cost = 1
	}
	return &Service{store: store, deals: dealCreator, notifier: notifier, cache: inv, clock: clock, cost: cost}
}

// Unlock разблокирует пост для пользователя и открывает сделку с автором.
// Ошибка создания сделки не отменяет разблокировку: кредиты уже списаны, контакты открыты.
func (s *Service) Unlock(ctx context.Context, userID, postID int64) (*Result, error) {
	rc, err := s.store.Unlock(ctx, userID, postID, s.cost, s.clock.Now())
	if err != nil {
		metrics.Unlocks.WithLabelValues(unlockOutcome(err)).Inc()
		return nil, err
	}
	metrics.Unlocks.WithLabelValues("ok").Inc()

	res := &Result{
		PostID:                 postID,
		RemainingUnlockCredits: rc.Remaining,
		Message:                "Пост разблокирован",
	}

	d, err := s.deals.Create(ctx, postID, userID, rc.AuthorID)
	if err != nil {
		log.WithFields(log.Fields{"post_id": postID, "user_id": userID}).
			WithError(err).Error("Не удалось создать сделку после разблокировки")
	} else {
		res.DealID = d.DealID
	}

	cache.Safe(ctx, s.cache, cache.UserKey(userID), cache.PostKey(postID))
	cache.SafePattern(ctx, s.cache, cache.PostPagesPattern)

	if err := s.notifier.Notify(ctx, rc.AuthorID, notify.Notification{
		Type:     notify.TypeDealUpdate,
		Title:    "Ваш пост разблокирован",
		Message:  fmt.Sprintf("Покупатель открыл контакты по посту «%s». Отмечайте ход сделки, чтобы получить бонус.", rc.PostTitle),
		Data:     map[string]any{"postId": postID, "dealId": res.DealID},
		Priority: notify.PriorityMedium,
	}); err != nil {
		log.WithField("user_id", rc.AuthorID).WithError(err).Warn("Уведомление не доставлено")
	}

	log.WithFields(log.Fields{
		"post_id":   postID,
		"user_id":   userID,
		"deal_id":   res.DealID,
		"remaining": rc.Remaining,
	}).Info("Пост разблокирован")
	return res, nil
}

func unlockOutcome(err error) string {
	switch {
	case errors.Is(err, common.ErrAlreadyUnlocked):
		return "already_unlocked"
	case errors.Is(err, common.ErrInsufficientCredits), errors.Is(err, common.ErrSubscriptionExpired):
		return "no_credits"
	case errors.Is(err, common.ErrOwnPostUnlock):
		return "own_post"
	}
	return "error"
}
