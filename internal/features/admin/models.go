// Package admin управляет доступом к админским маршрутам. Вход по токену (Argon2id),
// сессии и защита от перебора.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

const (
	MaxFailedAttempts = 3              // Неудачных попыток до блокировки
	LockoutWindow     = 1 * time.Hour  // Окно подсчёта неудачных попыток
	SessionTTL        = 24 * time.Hour // Срок жизни сессии
)

// Session: активная сессия администратора.
type Session struct {
	ID              int64     `db:"id" json:"-"`
	UserID          int64     `db:"user_id" json:"userId"`
	Token           string    `db:"session_token" json:"token"`
	AuthenticatedAt time.Time `db:"authenticated_at" json:"authenticatedAt"`
	ExpiresAt       time.Time `db:"expires_at" json:"expiresAt"`
	LastActivity    time.Time `db:"last_activity" json:"-"`
	IsActive        bool      `db:"is_active" json:"-"`
}

// LoginAttempt: попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}
