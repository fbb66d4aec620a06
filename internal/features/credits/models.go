// Package credits: кредитный леджер пользователей.
// models.go описывает типы кредитов, записи истории и корректировки.
package credits

import (
	"time"

	"serotonyl.ru/deal-desk/internal/common"
)

// CreditType: пул кредитов пользователя.
type CreditType string

const (
	CreditGeneral CreditType = "general" // users.credits: бонусы/штрафы сделок
	CreditUnlock  CreditType = "unlock"  // users.unlock_credits: разблокировка постов
	CreditCreate  CreditType = "create"  // users.create_credits: создание постов
)

// Column возвращает колонку таблицы users для пула.
// Возвращает только значения из белого списка: безопасно подставлять в SQL.
func (t CreditType) Column() (string, error) {
	switch t {
	case CreditGeneral:
		return "credits", nil
	case CreditUnlock:
		return "unlock_credits", nil
	case CreditCreate:
		return "create_credits", nil
	}
	return "", common.Wrapf(common.ErrInvalidCreditType, "неизвестный тип кредитов %q", string(t))
}

// EntryType: тип записи в истории кредитов.
type EntryType string

const (
	EntryBonus    EntryType = "bonus"
	EntryPenalty  EntryType = "penalty"
	EntryPurchase EntryType = "purchase"
	EntryUsed     EntryType = "used"
)

// HistoryEntry: одна запись истории кредитов.
type HistoryEntry struct {
	ID            int64      `db:"id"`
	UserID        int64      `db:"user_id"`
	Amount        int64      `db:"amount"` // Всегда положительная, знак задаёт Type
	Type          EntryType  `db:"type"`
	CreditType    CreditType `db:"credit_type"`
	Description   string     `db:"description"`
	RelatedEntity *int64     `db:"related_entity"` // ID сделки или поста
	CreatedAt     time.Time  `db:"created_at"`
}

// Adjustment: бонус и штраф, применяемые к общему пулу.
type Adjustment struct {
	Bonus   int64 `json:"bonus"`
	Penalty int64 `json:"penalty"`
}

// IsZero: нечего применять.
func (a Adjustment) IsZero() bool { return a.Bonus == 0 && a.Penalty == 0 }

// ApplyTo возвращает новый баланс: max(0, balance + bonus - penalty).
func (a Adjustment) ApplyTo(balance int64) int64 {
	next := balance + a.Bonus - a.Penalty
	if next < 0 {
		return 0
	}
	return next
}

// Grant: пополнение кредитов (покупка тарифа).
type Grant struct {
	Credits       int64 `json:"credits"`
	UnlockCredits int64 `json:"unlockCredits"`
	CreateCredits int64 `json:"createCredits"`
	// ExtendDays продлевает подписку: от текущей даты окончания, если она в будущем, иначе от now
	ExtendDays int    `json:"extendDays"`
	Reference  string `json:"reference"` // Номер заказа платёжного шлюза
}

// Balances: текущие балансы пользователя.
type Balances struct {
	Credits               int64      `json:"credits"`
	UnlockCredits         int64      `json:"unlockCredits"`
	CreateCredits         int64      `json:"createCredits"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty"`
}

// Of возвращает баланс нужного пула.
func (b Balances) Of(t CreditType) int64 {
	switch t {
	case CreditUnlock:
		return b.UnlockCredits
	case CreditCreate:
		return b.CreateCredits
	default:
		return b.Credits
	}
}

// CheckDebit проверяет возможность списания: сначала срок подписки, затем баланс.
func CheckDebit(b Balances, t CreditType, amount int64, now time.Time) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	if _, err := t.Column(); err != nil {
		return err
	}
	if b.SubscriptionExpiresAt != nil && now.After(*b.SubscriptionExpiresAt) {
		return common.ErrSubscriptionExpired
	}
	if b.Of(t) < amount {
		return common.Wrapf(common.ErrInsufficientCredits,
			"недостаточно кредитов: нужно %d, есть %d", amount, b.Of(t))
	}
	return nil
}

// ExtendSubscription считает новую дату окончания подписки.
func ExtendSubscription(current *time.Time, days int, now time.Time) *time.Time {
	if days <= 0 {
		return current
	}
	from := now
	if current != nil && current.After(now) {
		from = *current
	}
	next := from.Add(time.Duration(days) * common.Day)
	return &next
}
