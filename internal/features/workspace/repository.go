// repository.go работает с таблицами deal_workspace, deal_workspace_history, user_badges.
package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/deal-desk/internal/db/postgres"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get возвращает счётчики (нулевые, если пользователь ещё не закрывал сделок).
func (r *Repository) Get(ctx context.Context, userID int64) (Workspace, error) {
	ws := Workspace{UserID: userID}
	err := r.db.QueryRow(ctx, `
		SELECT total_deals, won_deals, failed_deals FROM deal_workspace WHERE user_id = $1
	`, userID).Scan(&ws.TotalDeals, &ws.WonDeals, &ws.FailedDeals)
	if err != nil && !postgres.IsNoRows(err) {
		return ws, fmt.Errorf("ошибка чтения истории сделок: %w", err)
	}
	return ws, nil
}

// RecordOutcome записывает итог по посту (upsert по post_id) и пересчитывает счётчики.
// Строка счётчиков блокируется на время транзакции.
func (r *Repository) RecordOutcome(ctx context.Context, userID int64, e Entry) (Workspace, error) {
	var ws Workspace
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO deal_workspace (user_id) VALUES ($1)
			ON CONFLICT (user_id) DO NOTHING
		`, userID); err != nil {
			return fmt.Errorf("ошибка создания истории сделок: %w", err)
		}

		ws = Workspace{UserID: userID}
		if err := tx.QueryRow(ctx, `
			SELECT total_deals, won_deals, failed_deals FROM deal_workspace
			WHERE user_id = $1 FOR UPDATE
		`, userID).Scan(&ws.TotalDeals, &ws.WonDeals, &ws.FailedDeals); err != nil {
			return fmt.Errorf("ошибка блокировки истории сделок: %w", err)
		}

		var prior *Result
		var old Result
		err := tx.QueryRow(ctx, `
			SELECT result FROM deal_workspace_history WHERE user_id = $1 AND post_id = $2
		`, userID, e.PostID).Scan(&old)
		switch {
		case err == nil:
			prior = &old
		case postgres.IsNoRows(err):
		default:
			return fmt.Errorf("ошибка чтения записи истории: %w", err)
		}

		if prior != nil && *prior == e.Result {
			return nil
		}
		ws = Apply(ws, prior, e.Result)

		if _, err := tx.Exec(ctx, `
			INSERT INTO deal_workspace_history (user_id, post_id, deal_id, result, notes, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, post_id) DO UPDATE
			SET deal_id = EXCLUDED.deal_id, result = EXCLUDED.result,
			    notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at
		`, userID, e.PostID, e.DealID, string(e.Result), e.Notes, e.UpdatedAt); err != nil {
			return fmt.Errorf("ошибка записи истории: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE deal_workspace
			SET total_deals = $2, won_deals = $3, failed_deals = $4, updated_at = NOW()
			WHERE user_id = $1
		`, userID, ws.TotalDeals, ws.WonDeals, ws.FailedDeals)
		if err != nil {
			return fmt.Errorf("ошибка обновления счётчиков: %w", err)
		}
		return nil
	})
	return ws, err
}

// History возвращает записи истории пользователя, новые сверху.
func (r *Repository) History(ctx context.Context, userID int64) ([]*Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT post_id, deal_id, result, notes, updated_at
		FROM deal_workspace_history WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения истории: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.PostID, &e.DealID, &e.Result, &e.Notes, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения записи истории: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Badges возвращает полученные значки.
func (r *Repository) Badges(ctx context.Context, userID int64) ([]Badge, error) {
	rows, err := r.db.Query(ctx, `
		SELECT level, earned_at FROM user_badges WHERE user_id = $1 ORDER BY level
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения значков: %w", err)
	}
	defer rows.Close()

	var out []Badge
	for rows.Next() {
		var b Badge
		if err := rows.Scan(&b.Level, &b.EarnedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения значка: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AwardBadge выдаёт значок. false: значок уже был (таблица не допускает дублей и удалений).
func (r *Repository) AwardBadge(ctx context.Context, userID int64, level int, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO user_badges (user_id, level, earned_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, level) DO NOTHING
	`, userID, level, at)
	if err != nil {
		return false, fmt.Errorf("ошибка выдачи значка: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
