// Package users управляет пользователями маркетплейса в той части,
// которую затрагивает движок сделок: контакты, кредитные балансы, подписка.
// models.go описывает структуру записи пользователя.
package users

import "time"

// User: пользователь маркетплейса (и покупатель, и поставщик).
type User struct {
	ID                    int64      `db:"id"`
	Name                  string     `db:"name"`
	Email                 string     `db:"email"`
	Phone                 string     `db:"phone"`
	TelegramChatID        *int64     `db:"telegram_chat_id"` // Куда дублировать уведомления (может быть nil)
	IsDeactivated         bool       `db:"is_deactivated"`
	Credits               int64      `db:"credits"`        // Общий пул: бонусы и штрафы сделок
	UnlockCredits         int64      `db:"unlock_credits"` // Кредиты на разблокировку постов
	CreateCredits         int64      `db:"create_credits"` // Кредиты на создание постов
	SubscriptionExpiresAt *time.Time `db:"subscription_expires_at"`
	TotalPenalties        int        `db:"total_penalties"` // Сколько раз сделки пользователя закрывались автоматически
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

// DisplayName возвращает отображаемое имя пользователя.
// Если имени нет: email.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// SubscriptionExpired: подписка задана и уже истекла.
func (u *User) SubscriptionExpired(now time.Time) bool {
	return u.SubscriptionExpiresAt != nil && now.After(*u.SubscriptionExpiresAt)
}
