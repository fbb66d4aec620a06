package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Inbox сохраняет уведомления в таблицу notifications.
// Клиент забирает их через API уведомлений (вне этого сервиса).
type Inbox struct {
	db *pgxpool.Pool
}

func NewInbox(db *pgxpool.Pool) *Inbox {
	return &Inbox{db: db}
}

func (i *Inbox) Notify(ctx context.Context, userID int64, n Notification) error {
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	_, err := i.db.Exec(ctx, `
		INSERT INTO notifications (user_id, type, title, message, data, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, n.Type, n.Title, n.Message, data, string(n.Priority))
	if err != nil {
		return fmt.Errorf("ошибка записи уведомления: %w", err)
	}
	return nil
}

// Stored: сохранённое уведомление.
type Stored struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	Priority  Priority       `json:"priority"`
	IsRead    bool           `json:"isRead"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Recent возвращает последние уведомления пользователя.
func (i *Inbox) Recent(ctx context.Context, userID int64, limit int) ([]*Stored, error) {
	rows, err := i.db.Query(ctx, `
		SELECT id, type, title, message, data, priority, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения уведомлений: %w", err)
	}
	defer rows.Close()

	var out []*Stored
	for rows.Next() {
		s := &Stored{}
		if err := rows.Scan(&s.ID, &s.Type, &s.Title, &s.Message, &s.Data, &s.Priority, &s.IsRead, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения уведомления: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
