// Package posts: поля поста, которые затрагивает движок сделок:
// проекция статуса сделки, переключатель владельца и срок действия.
package posts

import (
	"time"

	"serotonyl.ru/deal-desk/internal/common"
)

// DealStatus: денормализованный статус сделки на посте.
type DealStatus string

const (
	DealAvailable  DealStatus = "Available"
	DealInProgress DealStatus = "In Progress"
	DealCompleted  DealStatus = "Completed"
	DealCancelled  DealStatus = "Cancelled"
)

// Toggle: ручной переключатель владельца поста.
type Toggle string

const (
	TogglePending Toggle = "Pending"
	ToggleSuccess Toggle = "Success"
	ToggleFail    Toggle = "Fail"
)

// ParseToggle проверяет значение переключателя.
func ParseToggle(s string) (Toggle, error) {
	switch t := Toggle(s); t {
	case TogglePending, ToggleSuccess, ToggleFail:
		return t, nil
	}
	return "", common.ErrInvalidToggle
}

// Result: итог сделок по посту.
type Result string

const (
	ResultPending     Result = "Pending"
	ResultWon         Result = "Won"
	ResultFailed      Result = "Failed"
	ResultProvisional Result = "Provisional"
)

// ResultFor: dealResult, который выставляет переключатель.
func ResultFor(t Toggle) Result {
	switch t {
	case ToggleSuccess:
		return ResultWon
	case ToggleFail:
		return ResultFailed
	default:
		return ResultPending
	}
}

// Status: статус публикации.
type Status string

const (
	StatusActive      Status = "Active"
	StatusProvisional Status = "Provisional"
	StatusExpired     Status = "Expired"
)

// Post: проекция поста.
type Post struct {
	ID                   int64      `db:"id" json:"id"`
	AuthorID             int64      `db:"author_id" json:"authorId"`
	Title                string     `db:"title" json:"title"`
	IsActive             bool       `db:"is_active" json:"isActive"`
	PostStatus           Status     `db:"post_status" json:"postStatus"`
	ExpiresAt            *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	DealStatus           DealStatus `db:"deal_status" json:"dealStatus"`
	DealToggleStatus     Toggle     `db:"deal_toggle_status" json:"dealToggleStatus"`
	DealResult           Result     `db:"deal_result" json:"dealResult"`
	ValidityReminderSent bool       `db:"validity_reminder_sent" json:"validityReminderSent"`
	IsExpired            bool       `db:"is_expired" json:"isExpired"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`
}

// ProjectDealStatus переводит статус сделки в статус поста.
// Contacted/Ongoing → In Progress, Success/Fail → Completed, Closed → Cancelled.
func ProjectDealStatus(dealStatus string) DealStatus {
	switch dealStatus {
	case "Contacted", "Ongoing":
		return DealInProgress
	case "Success", "Fail":
		return DealCompleted
	case "Closed":
		return DealCancelled
	default:
		return DealAvailable
	}
}

// DaysLeft: сколько дней осталось до истечения (округление вверх).
func DaysLeft(expiresAt, now time.Time) int {
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / common.Day)
	if d%common.Day != 0 {
		days++
	}
	return days
}
