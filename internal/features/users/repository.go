// Package users: repository.go отвечает за операции с таблицей users.
package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/db/postgres"
)

const userColumns = `id, name, email, phone, telegram_chat_id, is_deactivated,
	credits, unlock_credits, create_credits, subscription_expires_at, total_penalties,
	created_at, updated_at`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ScanUser читает строку с колонками userColumns.
func ScanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.TelegramChatID, &u.IsDeactivated,
		&u.Credits, &u.UnlockCredits, &u.CreateCredits, &u.SubscriptionExpiresAt, &u.TotalPenalties,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID возвращает common.ErrUserNotFound, если пользователя нет.
func (r *Repository) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := ScanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения пользователя (id=%d): %w", userID, err)
	}
	return u, nil
}

// LockByID читает пользователя с блокировкой строки (FOR UPDATE) внутри транзакции.
func LockByID(ctx context.Context, q postgres.DBTX, userID int64) (*User, error) {
	u, err := ScanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка блокировки пользователя (id=%d): %w", userID, err)
	}
	return u, nil
}

// IncrementPenalties увеличивает счётчик автозакрытий пользователя.
func (r *Repository) IncrementPenalties(ctx context.Context, userID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET total_penalties = total_penalties + 1, updated_at = NOW()
		WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("ошибка обновления счётчика штрафов: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}

// LinkTelegram привязывает чат Telegram для дублирования уведомлений.
func (r *Repository) LinkTelegram(ctx context.Context, userID, chatID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET telegram_chat_id = $2, updated_at = NOW() WHERE id = $1
	`, userID, chatID)
	if err != nil {
		return fmt.Errorf("ошибка привязки Telegram: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}

// TelegramChatID возвращает привязанный чат Telegram (ok=false, если не привязан).
func (r *Repository) TelegramChatID(ctx context.Context, userID int64) (int64, bool, error) {
	var chatID *int64
	err := r.db.QueryRow(ctx, `
		SELECT telegram_chat_id FROM users WHERE id = $1 AND is_deactivated = FALSE
	`, userID).Scan(&chatID)
	if err != nil {
		if postgres.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("ошибка чтения чата Telegram: %w", err)
	}
	if chatID == nil {
		return 0, false, nil
	}
	return *chatID, true, nil
}
