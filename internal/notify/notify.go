// Package notify доставляет уведомления пользователям.
// Основной канал: внутренний инбокс (таблица notifications), дополнительный, Telegram.
// Ошибки доставки никогда не возвращаются вызывающему коду: они логируются и глотаются.
package notify

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/deal-desk/internal/metrics"
)

// Priority: важность уведомления.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Типы уведомлений
const (
	TypeDealUpdate      = "deal_update"
	TypeDealReminder    = "deal_reminder"
	TypeDealAutoClosed  = "deal_auto_closed"
	TypeBadgeEarned     = "badge_earned"
	TypePostExpiring    = "post_expiring"
	TypePostExpired     = "post_expired"
	TypeConfirmationAsk = "deal_confirmation"
)

// Notification: одно уведомление.
type Notification struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
	Priority Priority       `json:"priority"`
}

// Notifier: канал доставки.
type Notifier interface {
	Notify(ctx context.Context, userID int64, n Notification) error
}

// Channel: именованный канал для Multi (имя идёт в метрики).
type Channel struct {
	Name     string
	Notifier Notifier
}

// Multi рассылает уведомление во все каналы.
// Ошибка одного канала не мешает остальным, наружу ошибки не возвращаются.
type Multi struct {
	channels []Channel
}

// NewMulti создаёт рассыльщик. Каналы с nil Notifier пропускаются.
func NewMulti(channels ...Channel) *Multi {
	m := &Multi{}
	for _, c := range channels {
		if c.Notifier != nil {
			m.channels = append(m.channels, c)
		}
	}
	return m
}

func (m *Multi) Notify(ctx context.Context, userID int64, n Notification) error {
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	for _, c := range m.channels {
		err := c.Notifier.Notify(ctx, userID, n)
		switch {
		case err == nil:
			metrics.NotificationsSent.WithLabelValues(c.Name, "ok").Inc()
		case errors.Is(err, ErrNoRecipient):
			metrics.NotificationsSent.WithLabelValues(c.Name, "skipped").Inc()
		default:
			metrics.NotificationsSent.WithLabelValues(c.Name, "error").Inc()
			log.WithFields(log.Fields{
				"user_id": userID,
				"type":    n.Type,
				"channel": c.Name,
			}).WithError(err).Warn("Не удалось доставить уведомление")
		}
	}
	return nil
}

// ErrNoRecipient: у пользователя нет адреса в этом канале (например, не привязан Telegram).
var ErrNoRecipient = errors.New("получатель не настроен для канала")

// Nop ничего не делает (уведомления отключены).
type Nop struct{}

func (Nop) Notify(context.Context, int64, Notification) error { return nil }
