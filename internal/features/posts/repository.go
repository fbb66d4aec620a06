// repository.go содержит операции с таблицей posts.
package posts

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/db/postgres"
)

const postColumns = `id, author_id, title, is_active, post_status, expires_at,
	deal_status, deal_toggle_status, deal_result, validity_reminder_sent, is_expired,
	created_at, updated_at`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanPost(row interface{ Scan(dest ...any) error }) (*Post, error) {
	var p Post
	err := row.Scan(
		&p.ID, &p.AuthorID, &p.Title, &p.IsActive, &p.PostStatus, &p.ExpiresAt,
		&p.DealStatus, &p.DealToggleStatus, &p.DealResult, &p.ValidityReminderSent, &p.IsExpired,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get возвращает пост или common.ErrPostNotFound.
func (r *Repository) Get(ctx context.Context, postID int64) (*Post, error) {
	return GetPost(ctx, r.db, postID)
}

// GetPost читает пост через пул или транзакцию.
func GetPost(ctx context.Context, q postgres.DBTX, postID int64) (*Post, error) {
	p, err := scanPost(q.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, postID))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, common.ErrPostNotFound
		}
		return nil, fmt.Errorf("ошибка чтения поста (id=%d): %w", postID, err)
	}
	return p, nil
}

// SetDealStatus обновляет проекцию статуса сделки.
func (r *Repository) SetDealStatus(ctx context.Context, postID int64, status DealStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE posts SET deal_status = $2, updated_at = NOW() WHERE id = $1
	`, postID, string(status))
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса сделки поста: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrPostNotFound
	}
	return nil
}

// SetToggle сохраняет переключатель владельца и итог сделок.
func (r *Repository) SetToggle(ctx context.Context, postID int64, toggle Toggle, result Result) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE posts SET deal_toggle_status = $2, deal_result = $3, updated_at = NOW()
		WHERE id = $1
	`, postID, string(toggle), string(result))
	if err != nil {
		return fmt.Errorf("ошибка обновления переключателя сделки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrPostNotFound
	}
	return nil
}

// ExpiringBetween: активные посты без отправленного напоминания, истекающие в [from, to].
func (r *Repository) ExpiringBetween(ctx context.Context, from, to time.Time) ([]*Post, error) {
	return r.list(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE is_active = TRUE
		  AND post_status = 'Active'
		  AND validity_reminder_sent = FALSE
		  AND expires_at BETWEEN $1 AND $2
		ORDER BY expires_at
	`, from, to)
}

// ExpiredBefore: активные посты, срок которых уже прошёл, но которые ещё не помечены.
func (r *Repository) ExpiredBefore(ctx context.Context, now time.Time) ([]*Post, error) {
	return r.list(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE is_active = TRUE
		  AND is_expired = FALSE
		  AND expires_at < $1
		ORDER BY expires_at
	`, now)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*Post, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки постов: %w", err)
	}
	defer rows.Close()

	var out []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения поста: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkReminded ставит validity_reminder_sent. false: флаг уже стоял (обработал другой запуск).
func (r *Repository) MarkReminded(ctx context.Context, postID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE posts SET validity_reminder_sent = TRUE, updated_at = NOW()
		WHERE id = $1 AND validity_reminder_sent = FALSE
	`, postID)
	if err != nil {
		return false, fmt.Errorf("ошибка отметки напоминания: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkExpired переводит пост в Expired. false: пост уже был помечен.
func (r *Repository) MarkExpired(ctx context.Context, postID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE posts
		SET post_status = 'Expired', is_expired = TRUE, is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_expired = FALSE
	`, postID)
	if err != nil {
		return false, fmt.Errorf("ошибка отметки истечения поста: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
