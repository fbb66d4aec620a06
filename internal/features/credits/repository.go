// Package credits: repository.go выполняет операции с балансами в таблице users
// и историей в таблице credit_history.
// Все изменения баланса и запись истории выполняются в одной транзакции БД.
package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/db/postgres"
)

// Repository предоставляет методы для работы с кредитами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий кредитов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Balances возвращает текущие балансы пользователя.
func (r *Repository) Balances(ctx context.Context, userID int64) (Balances, error) {
	return readBalances(ctx, r.db, userID, false)
}

func readBalances(ctx context.Context, q postgres.DBTX, userID int64, lock bool) (Balances, error) {
	query := `
		SELECT credits, unlock_credits, create_credits, subscription_expires_at
		FROM users WHERE id = $1
	`
	if lock {
		query += " FOR UPDATE"
	}
	var b Balances
	err := q.QueryRow(ctx, query, userID).Scan(
		&b.Credits, &b.UnlockCredits, &b.CreateCredits, &b.SubscriptionExpiresAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return b, common.ErrUserNotFound
		}
		return b, fmt.Errorf("ошибка получения баланса (user=%d): %w", userID, err)
	}
	return b, nil
}

// Adjust применяет бонус и штраф к общему пулу: max(0, credits + bonus - penalty).
// Каждая ненулевая составляющая записывается в историю отдельной строкой.
func (r *Repository) Adjust(ctx context.Context, userID int64, adj Adjustment, description string, related *int64) (int64, error) {
	var balance int64
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE users
			SET credits = GREATEST(0, credits + $2 - $3), updated_at = NOW()
			WHERE id = $1
			RETURNING credits
		`, userID, adj.Bonus, adj.Penalty).Scan(&balance)
		if err != nil {
			if postgres.IsNoRows(err) {
				return common.ErrUserNotFound
			}
			return fmt.Errorf("ошибка корректировки баланса: %w", err)
		}

		if adj.Bonus > 0 {
			if err := insertHistory(ctx, tx, userID, adj.Bonus, EntryBonus, CreditGeneral, description, related); err != nil {
				return err
			}
		}
		if adj.Penalty > 0 {
			if err := insertHistory(ctx, tx, userID, adj.Penalty, EntryPenalty, CreditGeneral, description, related); err != nil {
				return err
			}
		}
		return nil
	})
	return balance, err
}

// Debit списывает кредиты в отдельной транзакции.
func (r *Repository) Debit(ctx context.Context, userID int64, t CreditType, amount int64, description string, related *int64, now time.Time) (int64, error) {
	var remaining int64
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		remaining, err = DebitTx(ctx, tx, userID, t, amount, description, related, now)
		return err
	})
	return remaining, err
}

// DebitTx списывает кредиты внутри уже открытой транзакции.
// Строка пользователя блокируется (FOR UPDATE), затем проверяются подписка и баланс.
func DebitTx(ctx context.Context, tx pgx.Tx, userID int64, t CreditType, amount int64, description string, related *int64, now time.Time) (int64, error) {
	column, err := t.Column()
	if err != nil {
		return 0, err
	}

	b, err := readBalances(ctx, tx, userID, true)
	if err != nil {
		return 0, err
	}
	if err := CheckDebit(b, t, amount, now); err != nil {
		return 0, err
	}

	// column берётся из белого списка CreditType.Column
	var remaining int64
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE users SET %[1]s = %[1]s - $2, updated_at = NOW()
		WHERE id = $1
		RETURNING %[1]s
	`, column), userID, amount).Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("ошибка списания: %w", err)
	}

	if err := insertHistory(ctx, tx, userID, amount, EntryUsed, t, description, related); err != nil {
		return 0, err
	}
	return remaining, nil
}

// TopUp начисляет кредиты по всем пулам и продлевает подписку.
func (r *Repository) TopUp(ctx context.Context, userID int64, g Grant, now time.Time) (Balances, error) {
	var out Balances
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		b, err := readBalances(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		expires := ExtendSubscription(b.SubscriptionExpiresAt, g.ExtendDays, now)

		err = tx.QueryRow(ctx, `
			UPDATE users
			SET credits = credits + $2,
			    unlock_credits = unlock_credits + $3,
			    create_credits = create_credits + $4,
			    subscription_expires_at = $5,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING credits, unlock_credits, create_credits, subscription_expires_at
		`, userID, g.Credits, g.UnlockCredits, g.CreateCredits, expires).Scan(
			&out.Credits, &out.UnlockCredits, &out.CreateCredits, &out.SubscriptionExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("ошибка пополнения: %w", err)
		}

		desc := "Пополнение"
		if g.Reference != "" {
			desc = "Пополнение, заказ " + g.Reference
		}
		grants := []struct {
			amount int64
			t      CreditType
		}{
			{g.Credits, CreditGeneral},
			{g.UnlockCredits, CreditUnlock},
			{g.CreateCredits, CreditCreate},
		}
		for _, gr := range grants {
			if gr.amount <= 0 {
				continue
			}
			if err := insertHistory(ctx, tx, userID, gr.amount, EntryPurchase, gr.t, desc, nil); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// History возвращает последние записи истории кредитов пользователя.
func (r *Repository) History(ctx context.Context, userID int64, limit int) ([]*HistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, amount, type, credit_type, description, related_entity, created_at
		FROM credit_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории кредитов: %w", err)
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		e := &HistoryEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Type, &e.CreditType,
			&e.Description, &e.RelatedEntity, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения истории кредитов: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertHistory(ctx context.Context, q postgres.DBTX, userID, amount int64, et EntryType, ct CreditType, description string, related *int64) error {
	_, err := q.Exec(ctx, `
		INSERT INTO credit_history (user_id, amount, type, credit_type, description, related_entity)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, amount, string(et), string(ct), description, related)
	if err != nil {
		return fmt.Errorf("ошибка записи истории кредитов: %w", err)
	}
	return nil
}
