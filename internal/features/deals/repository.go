// repository.go работает с таблицами deals и deal_status_history.
// Каждый переход статуса: условный UPDATE ... WHERE status = <from>:
// из двух параллельных запросов применится только один, второй получит ErrStaleDeal.
package deals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/db/postgres"
)

const dealColumns = `id, deal_id, post_id, unlocker_id, author_id, masked_contacts, status,
	success_unlocker_at, success_author_at, fail_unlocker_at, fail_author_at,
	credit_bonus, credit_penalty, last_reminder_sent, expires_at, auto_close_at,
	is_active, chronic_non_update, created_at, updated_at`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanDeal(row pgx.Row) (*Deal, error) {
	var d Deal
	err := row.Scan(
		&d.ID, &d.DealID, &d.PostID, &d.UnlockerID, &d.AuthorID, &d.MaskedContacts, &d.Status,
		&d.Confirmations.Success.UnlockerAt, &d.Confirmations.Success.AuthorAt,
		&d.Confirmations.Fail.UnlockerAt, &d.Confirmations.Fail.AuthorAt,
		&d.CreditAdjustments.Bonus, &d.CreditAdjustments.Penalty, &d.LastReminderSent,
		&d.ExpiresAt, &d.AutoCloseAt, &d.IsActive, &d.ChronicNonUpdate, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create сохраняет сделку вместе с первой записью истории.
// Вторая сделка для той же пары (пост, покупатель): common.ErrDealExists.
func (r *Repository) Create(ctx context.Context, d *Deal) (*Deal, error) {
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO deals (deal_id, post_id, unlocker_id, author_id, masked_contacts, status,
				expires_at, auto_close_at, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $9)
			RETURNING id
		`, d.DealID, d.PostID, d.UnlockerID, d.AuthorID, d.MaskedContacts, string(d.Status),
			d.ExpiresAt, d.AutoCloseAt, d.CreatedAt).Scan(&d.ID)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return common.ErrDealExists
			}
			return fmt.Errorf("ошибка создания сделки: %w", err)
		}
		for _, e := range d.StatusHistory {
			if err := insertHistory(ctx, tx, d.ID, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, d.ID)
}

// Get возвращает сделку с историей (без проверки участия и активности).
func (r *Repository) Get(ctx context.Context, id int64) (*Deal, error) {
	d, err := scanDeal(r.db.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, common.ErrDealNotFound
		}
		return nil, fmt.Errorf("ошибка чтения сделки (id=%d): %w", id, err)
	}
	if err := r.attachHistory(ctx, []*Deal{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// PartyFilter: фильтр сделок участника.
type PartyFilter struct {
	UserID     int64
	Role       Role    // пусто: обе роли
	Status     *Status // nil: любой
	ActiveOnly bool
}

// ListForParty: сделки пользователя, новые сверху.
func (r *Repository) ListForParty(ctx context.Context, f PartyFilter) ([]*Deal, error) {
	var where []string
	args := []any{f.UserID}
	switch f.Role {
	case RoleUnlocker:
		where = append(where, "unlocker_id = $1")
	case RoleAuthor:
		where = append(where, "author_id = $1")
	default:
		where = append(where, "(unlocker_id = $1 OR author_id = $1)")
	}
	if f.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	return r.list(ctx, `SELECT `+dealColumns+` FROM deals WHERE `+strings.Join(where, " AND ")+
		` ORDER BY created_at DESC, id DESC`, args...)
}

// AdminFilter: фильтр списка сделок для админки.
type AdminFilter struct {
	Status *Status
	Search string // подстрока dealId
	Offset int
	Limit  int
}

// ListAdmin: все сделки с фильтром и пагинацией; возвращает также общее количество.
func (r *Repository) ListAdmin(ctx context.Context, f AdminFilter) ([]*Deal, int, error) {
	where := []string{"TRUE"}
	var args []any
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("deal_id ILIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM deals WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта сделок: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	deals, err := r.list(ctx, fmt.Sprintf(`SELECT `+dealColumns+` FROM deals WHERE %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	return deals, total, nil
}

// OpenForPost: активные открытые сделки поста.
func (r *Repository) OpenForPost(ctx context.Context, postID int64) ([]*Deal, error) {
	return r.list(ctx, `SELECT `+dealColumns+` FROM deals
		WHERE post_id = $1 AND is_active = TRUE AND status IN ('Contacted', 'Ongoing')
		ORDER BY created_at`, postID)
}

// ActiveOpen: все активные открытые сделки (для обхода планировщика).
func (r *Repository) ActiveOpen(ctx context.Context) ([]*Deal, error) {
	return r.list(ctx, `SELECT `+dealColumns+` FROM deals
		WHERE is_active = TRUE AND status IN ('Contacted', 'Ongoing')
		ORDER BY created_at`)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*Deal, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки сделок: %w", err)
	}
	defer rows.Close()

	var out []*Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения сделки: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка выборки сделок: %w", err)
	}
	if err := r.attachHistory(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachHistory подгружает историю статусов одним запросом.
func (r *Repository) attachHistory(ctx context.Context, deals []*Deal) error {
	if len(deals) == 0 {
		return nil
	}
	ids := make([]int64, len(deals))
	byID := make(map[int64]*Deal, len(deals))
	for i, d := range deals {
		ids[i] = d.ID
		byID[d.ID] = d
	}

	rows, err := r.db.Query(ctx, `
		SELECT deal_id, status, updated_by, updated_at, notes, is_admin_override, initiator
		FROM deal_status_history
		WHERE deal_id = ANY($1)
		ORDER BY updated_at, id
	`, ids)
	if err != nil {
		return fmt.Errorf("ошибка чтения истории статусов: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dealID int64
		var e HistoryEntry
		if err := rows.Scan(&dealID, &e.Status, &e.UpdatedBy, &e.UpdatedAt, &e.Notes, &e.IsAdminOverride, &e.Initiator); err != nil {
			return fmt.Errorf("ошибка чтения записи истории: %w", err)
		}
		if d := byID[dealID]; d != nil {
			d.StatusHistory = append(d.StatusHistory, e)
		}
	}
	return rows.Err()
}

func insertHistory(ctx context.Context, q postgres.DBTX, dealID int64, e HistoryEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO deal_status_history (deal_id, status, updated_by, updated_at, notes, is_admin_override, initiator)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, dealID, string(e.Status), e.UpdatedBy, e.UpdatedAt, e.Notes, e.IsAdminOverride, string(e.Initiator))
	if err != nil {
		return fmt.Errorf("ошибка записи истории статусов: %w", err)
	}
	return nil
}

// confirmationPrefix: префикс колонок слотов исхода. Значения только из белого списка.
func confirmationPrefix(resolution Status) (string, error) {
	switch resolution {
	case StatusSuccess:
		return "success", nil
	case StatusFail:
		return "fail", nil
	}
	return "", common.Wrapf(common.ErrInvalidStatus, "подтверждение возможно только для Success или Fail")
}

// Confirm отмечает подтверждение стороны и возвращает состояние обоих слотов после записи.
// Повторное подтверждение не сдвигает время. Если статус уже не from: ErrStaleDeal.
func (r *Repository) Confirm(ctx context.Context, id int64, from, resolution Status, role Role, at time.Time) (Confirmation, error) {
	prefix, err := confirmationPrefix(resolution)
	if err != nil {
		return Confirmation{}, err
	}
	column := prefix + "_" + string(role) + "_at"

	var c Confirmation
	err = r.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE deals SET %[1]s = COALESCE(%[1]s, $2), updated_at = NOW()
		WHERE id = $1 AND status = $3 AND is_active = TRUE
		RETURNING %[2]s_unlocker_at, %[2]s_author_at
	`, column, prefix), id, at, string(from)).Scan(&c.UnlockerAt, &c.AuthorAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return c, common.ErrStaleDeal
		}
		return c, fmt.Errorf("ошибка записи подтверждения: %w", err)
	}
	return c, nil
}

// ApplyTransition применяет переход, если статус сделки всё ещё from.
func (r *Repository) ApplyTransition(ctx context.Context, id int64, from Status, ch Change) (*Deal, error) {
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE deals
			SET status = $3,
			    credit_bonus = $4,
			    credit_penalty = $5,
			    is_active = is_active AND NOT $6,
			    chronic_non_update = chronic_non_update OR $7,
			    updated_at = NOW()
			WHERE id = $1 AND status = $2
		`, id, string(from), string(ch.To), ch.Adjustments.Bonus, ch.Adjustments.Penalty,
			ch.Deactivate, ch.ChronicNonUpdate)
		if err != nil {
			return fmt.Errorf("ошибка смены статуса сделки: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrStaleDeal
		}
		return insertHistory(ctx, tx, id, ch.Entry)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// MarkReminded сохраняет время последнего напоминания.
func (r *Repository) MarkReminded(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE deals SET last_reminder_sent = $2, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE
	`, id, at)
	if err != nil {
		return fmt.Errorf("ошибка отметки напоминания: %w", err)
	}
	return nil
}

// AnalyticsRaw: агрегаты по всем сделкам.
type AnalyticsRaw struct {
	StatusCounts    map[Status]int
	Total           int
	Chronic         int
	TotalPenalties  int64
	AvgResponseDays float64
	ByMonth         []MonthBucket
	Recent          []*Deal
}

// MonthBucket: сделки, созданные за месяц.
type MonthBucket struct {
	Year       int `json:"year"`
	Month      int `json:"month"`
	Count      int `json:"count"`
	Successful int `json:"successful"`
}

// Analytics считает агрегаты для админки. since: начало окна помесячной динамики.
func (r *Repository) Analytics(ctx context.Context, since time.Time) (*AnalyticsRaw, error) {
	raw := &AnalyticsRaw{StatusCounts: map[Status]int{}}

	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM deals GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта статусов: %w", err)
	}
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ошибка чтения статусов: %w", err)
		}
		raw.StatusCounts[s] = n
		raw.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка подсчёта статусов: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE chronic_non_update), COALESCE(SUM(credit_penalty), 0)::bigint
		FROM deals
	`).Scan(&raw.Chronic, &raw.TotalPenalties)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта штрафов: %w", err)
	}

	// Время ответа: последняя запись истории минус создание, в сутках
	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (h.last_at - d.created_at)) / 86400), 0)::float8
		FROM deals d
		JOIN LATERAL (
			SELECT MAX(updated_at) AS last_at FROM deal_status_history WHERE deal_id = d.id
		) h ON TRUE
		WHERE d.status IN ('Success', 'Fail', 'Closed')
	`).Scan(&raw.AvgResponseDays)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчёта времени ответа: %w", err)
	}

	rows, err = r.db.Query(ctx, `
		SELECT EXTRACT(YEAR FROM created_at)::int, EXTRACT(MONTH FROM created_at)::int,
		       COUNT(*), COUNT(*) FILTER (WHERE status = 'Success')
		FROM deals
		WHERE created_at >= $1
		GROUP BY 1, 2
		ORDER BY 1, 2
	`, since)
	if err != nil {
		return nil, fmt.Errorf("ошибка помесячной статистики: %w", err)
	}
	for rows.Next() {
		var b MonthBucket
		if err := rows.Scan(&b.Year, &b.Month, &b.Count, &b.Successful); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ошибка чтения помесячной статистики: %w", err)
		}
		raw.ByMonth = append(raw.ByMonth, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка помесячной статистики: %w", err)
	}

	raw.Recent, err = r.list(ctx, `SELECT `+dealColumns+` FROM deals ORDER BY created_at DESC, id DESC LIMIT 10`)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
