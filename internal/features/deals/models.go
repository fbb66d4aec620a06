// Package deals реализует движок сделок: статусы, взаимное подтверждение,
// начисление бонусов/штрафов и ежедневный обход с напоминаниями и автозакрытием.
// models.go описывает сделку и её составные части.
package deals

import (
	"time"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/features/credits"
)

// Status: статус сделки.
type Status string

const (
	StatusContacted Status = "Contacted"
	StatusOngoing   Status = "Ongoing"
	StatusSuccess   Status = "Success"
	StatusFail      Status = "Fail"
	StatusClosed    Status = "Closed"
)

// AllStatuses: все статусы в порядке графа.
var AllStatuses = []Status{StatusContacted, StatusOngoing, StatusSuccess, StatusFail, StatusClosed}

// ParseStatus проверяет статус из запроса.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", common.Wrapf(common.ErrInvalidStatus,
		"неизвестный статус %q, допустимо: Contacted, Ongoing, Success, Fail, Closed", s)
}

// IsOpen: сделка ещё не разрешена.
func (s Status) IsOpen() bool { return s == StatusContacted || s == StatusOngoing }

// IsResolution сообщает, что статус (Success или Fail) требует подтверждения обеих сторон.
func (s Status) IsResolution() bool { return s == StatusSuccess || s == StatusFail }

// IsTerminal: Success, Fail или Closed.
func (s Status) IsTerminal() bool { return s.IsResolution() || s == StatusClosed }

// Role: роль участника сделки.
type Role string

const (
	RoleUnlocker Role = "unlocker"
	RoleAuthor   Role = "author"
)

// ParseRole разбирает роль. Пустая строка означает обе роли.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case "", RoleUnlocker, RoleAuthor:
		return r, nil
	}
	return "", common.ErrInvalidRole
}

// Other возвращает противоположную роль.
func (r Role) Other() Role {
	if r == RoleUnlocker {
		return RoleAuthor
	}
	return RoleUnlocker
}

// Title: название роли для сообщений.
func (r Role) Title() string {
	if r == RoleUnlocker {
		return "покупателя"
	}
	return "автора поста"
}

// Initiator: кто инициировал переход.
type Initiator string

const (
	InitiatorParticipant Initiator = "participant"
	InitiatorAdmin       Initiator = "admin"
	InitiatorPostOwner   Initiator = "post_owner"
	InitiatorScheduler   Initiator = "scheduler"
)

// HistoryEntry: запись истории статусов. Только добавляется.
type HistoryEntry struct {
	Status          Status    `json:"status"`
	UpdatedBy       *int64    `json:"updatedBy"` // nil: планировщик
	UpdatedAt       time.Time `json:"updatedAt"`
	Notes           string    `json:"notes,omitempty"`
	IsAdminOverride bool      `json:"isAdminOverride,omitempty"`
	Initiator       Initiator `json:"initiator"`
}

// Confirmation: подтверждения одного исхода (успех или провал) от каждой стороны.
type Confirmation struct {
	UnlockerAt *time.Time `json:"unlockerConfirmedAt,omitempty"`
	AuthorAt   *time.Time `json:"authorConfirmedAt,omitempty"`
}

// Confirmed: сторона подтвердила исход.
func (c Confirmation) Confirmed(r Role) bool {
	if r == RoleUnlocker {
		return c.UnlockerAt != nil
	}
	return c.AuthorAt != nil
}

// Both: подтвердили обе стороны.
func (c Confirmation) Both() bool { return c.UnlockerAt != nil && c.AuthorAt != nil }

// Confirmations: слоты подтверждений по исходам.
type Confirmations struct {
	Success Confirmation `json:"success"`
	Fail    Confirmation `json:"fail"`
}

// For возвращает слоты для исхода.
func (c Confirmations) For(s Status) Confirmation {
	if s == StatusFail {
		return c.Fail
	}
	return c.Success
}

// MaskedContact: замаскированные контакты одной стороны.
type MaskedContact struct {
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	TempID string `json:"tempId"`
}

// MaskedContacts генерируются один раз при создании и не меняются.
type MaskedContacts struct {
	Unlocker MaskedContact `json:"unlocker"`
	Author   MaskedContact `json:"author"`
}

// Deal: сделка между покупателем, разблокировавшим пост, и автором поста.
type Deal struct {
	ID                int64              `json:"id"`
	DealID            string             `json:"dealId"`
	PostID            int64              `json:"postId"`
	UnlockerID        int64              `json:"unlockerId"`
	AuthorID          int64              `json:"authorId"`
	MaskedContacts    MaskedContacts     `json:"maskedContacts"`
	Status            Status             `json:"status"`
	StatusHistory     []HistoryEntry     `json:"statusHistory"`
	Confirmations     Confirmations      `json:"confirmations"`
	CreditAdjustments credits.Adjustment `json:"creditAdjustments"`
	LastReminderSent  *time.Time         `json:"lastReminderSent,omitempty"`
	ExpiresAt         time.Time          `json:"expiresAt"`
	AutoCloseAt       time.Time          `json:"autoCloseAt"`
	IsActive          bool               `json:"isActive"`
	ChronicNonUpdate  bool               `json:"chronicNonUpdate"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// RoleOf возвращает роль пользователя в сделке.
func (d *Deal) RoleOf(userID int64) (Role, bool) {
	switch userID {
	case d.UnlockerID:
		return RoleUnlocker, true
	case d.AuthorID:
		return RoleAuthor, true
	}
	return "", false
}

// Party возвращает ID участника с ролью r.
func (d *Deal) Party(r Role) int64 {
	if r == RoleUnlocker {
		return d.UnlockerID
	}
	return d.AuthorID
}

// LastUpdate: время последней записи истории (или создания).
func (d *Deal) LastUpdate() time.Time {
	if n := len(d.StatusHistory); n > 0 {
		return d.StatusHistory[n-1].UpdatedAt
	}
	return d.CreatedAt
}

// Change: реализуемый переход, который репозиторий применяет условно (WHERE status = from).
type Change struct {
	To               Status
	Entry            HistoryEntry
	Adjustments      credits.Adjustment // Накопленные значения после перехода
	Deactivate       bool
	ChronicNonUpdate bool
}
