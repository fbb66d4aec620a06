// Package unlock: платная разблокировка контактов автора поста.
// repository.go: запись разблокировки и списание кредитов в одной транзакции.
package unlock

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/db/postgres"
	"serotonyl.ru/deal-desk/internal/features/credits"
	"serotonyl.ru/deal-desk/internal/features/posts"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Unlock проверяет пост и автора, записывает разблокировку и списывает cost кредитов разблокировки.
// Вставка с ON CONFLICT DO NOTHING и списание в одной транзакции: проигравший гонку
// получает ErrAlreadyUnlocked и ничего не платит.
func (r *Repository) Unlock(ctx context.Context, userID, postID, cost int64, now time.Time) (*Receipt, error) {
	var out *Receipt
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		p, err := posts.GetPost(ctx, tx, postID)
		if err != nil {
			return err
		}
		if err := CheckTarget(p, userID); err != nil {
			return err
		}

		var deactivated bool
		err = tx.QueryRow(ctx, `SELECT is_deactivated FROM users WHERE id = $1`, p.AuthorID).Scan(&deactivated)
		if postgres.IsNoRows(err) || deactivated {
			return common.ErrAuthorUnavailable
		}
		if err != nil {
			return fmt.Errorf("ошибка чтения автора поста: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO post_unlocks (post_id, user_id, unlocked_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (post_id, user_id) DO NOTHING
		`, postID, userID, now)
		if err != nil {
			return fmt.Errorf("ошибка записи разблокировки: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrAlreadyUnlocked
		}

		remaining, err := credits.DebitTx(ctx, tx, userID, credits.CreditUnlock, cost,
			fmt.Sprintf("Разблокировка поста «%s»", p.Title), &postID, now)
		if err != nil {
			return err
		}
		out = &Receipt{PostID: postID, PostTitle: p.Title, AuthorID: p.AuthorID, Remaining: remaining}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
