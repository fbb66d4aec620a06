// service.go содержит бизнес-логику леджера (валидация, логирование).
package credits

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/metrics"
)

// Store: то, что леджеру нужно от хранилища.
type Store interface {
	Balances(ctx context.Context, userID int64) (Balances, error)
	Adjust(ctx context.Context, userID int64, adj Adjustment, description string, related *int64) (int64, error)
	Debit(ctx context.Context, userID int64, t CreditType, amount int64, description string, related *int64, now time.Time) (int64, error)
	TopUp(ctx context.Context, userID int64, g Grant, now time.Time) (Balances, error)
	History(ctx context.Context, userID int64, limit int) ([]*HistoryEntry, error)
}

// Service: кредитный леджер.
type Service struct {
	repo  Store
	clock common.Clock
}

// NewService создаёт леджер.
func NewService(repo Store, clock common.Clock) *Service {
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &Service{repo: repo, clock: clock}
}

// Balances возвращает балансы пользователя.
func (s *Service) Balances(ctx context.Context, userID int64) (Balances, error) {
	return s.repo.Balances(ctx, userID)
}

// Adjust применяет бонус/штраф к общему пулу и возвращает новый баланс.
// Баланс никогда не уходит ниже нуля.
func (s *Service) Adjust(ctx context.Context, userID int64, adj Adjustment, description string, related *int64) (int64, error) {
	if adj.Bonus < 0 || adj.Penalty < 0 {
		return 0, common.ErrInvalidAmount
	}
	balance, err := s.repo.Adjust(ctx, userID, adj, description, related)
	if err != nil {
		return 0, err
	}

	if adj.Bonus > 0 {
		metrics.CreditsAdjusted.WithLabelValues("bonus").Add(float64(adj.Bonus))
	}
	if adj.Penalty > 0 {
		metrics.CreditsAdjusted.WithLabelValues("penalty").Add(float64(adj.Penalty))
	}
	log.WithFields(log.Fields{
		"user":    userID,
		"bonus":   adj.Bonus,
		"penalty": adj.Penalty,
		"balance": balance,
	}).Info("Баланс скорректирован")
	return balance, nil
}

// Debit списывает amount кредитов типа t.
// Истёкшая подписка проверяется раньше баланса.
func (s *Service) Debit(ctx context.Context, userID int64, t CreditType, amount int64, description string, related *int64) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	if _, err := t.Column(); err != nil {
		return 0, err
	}
	remaining, err := s.repo.Debit(ctx, userID, t, amount, description, related, s.clock.Now())
	if err != nil {
		return 0, err
	}
	metrics.CreditsAdjusted.WithLabelValues("used_" + string(t)).Add(float64(amount))
	return remaining, nil
}

// TopUp начисляет купленные кредиты.
func (s *Service) TopUp(ctx context.Context, userID int64, g Grant) (Balances, error) {
	if g.Credits < 0 || g.UnlockCredits < 0 || g.CreateCredits < 0 || g.ExtendDays < 0 {
		return Balances{}, common.ErrInvalidAmount
	}
	if g.Credits == 0 && g.UnlockCredits == 0 && g.CreateCredits == 0 && g.ExtendDays == 0 {
		return Balances{}, common.ErrInvalidAmount
	}
	b, err := s.repo.TopUp(ctx, userID, g, s.clock.Now())
	if err != nil {
		return Balances{}, err
	}
	log.WithFields(log.Fields{
		"user":      userID,
		"reference": g.Reference,
	}).Info("Кредиты пополнены")
	return b, nil
}

// History возвращает последние limit записей (по умолчанию 20, максимум 100).
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.History(ctx, userID, limit)
}
