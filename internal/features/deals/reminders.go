package deals

import (
	"fmt"
	"time"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/notify"
)

// Reminder: напоминание, которое пора отправить.
type Reminder struct {
	Day   int
	Final bool // Последнее предупреждение перед автозакрытием
}

// ReminderFor решает, нужно ли напоминание сегодня.
// День считается как floor(сутки с createdAt); каждое напоминание гейтится
// временем с последнего отправленного (lastReminderSent).
//
//	день 1 : если напоминаний ещё не было
//	день 7 : если последнее ≥ 6 дней назад
//	день 30: если последнее ≥ 23 дней назад
//	день 85: финальное, если последнее ≥ 50 дней назад
func ReminderFor(createdAt time.Time, lastSent *time.Time, now time.Time) (Reminder, bool) {
	sinceLast := func(minDays float64) bool {
		return lastSent == nil || common.DaysBetween(*lastSent, now) >= minDays
	}

	switch day := common.WholeDaysBetween(createdAt, now); day {
	case 1:
		if lastSent == nil {
			return Reminder{Day: day}, true
		}
	case 7:
		if sinceLast(6) {
			return Reminder{Day: day}, true
		}
	case 30:
		if sinceLast(23) {
			return Reminder{Day: day}, true
		}
	case 85:
		if sinceLast(50) {
			return Reminder{Day: day, Final: true}, true
		}
	}
	return Reminder{}, false
}

// reminderNotification: текст напоминания для роли.
// daysLeft: сколько дней до автозакрытия (для финального предупреждения).
func reminderNotification(r Reminder, role Role, d *Deal, postTitle string, daysLeft int) notify.Notification {
	title := fmt.Sprintf("Напоминание о сделке (%s)", common.FormatDays(r.Day))
	var msg string
	priority := notify.PriorityMedium

	switch {
	case r.Final && role == RoleUnlocker:
		title += ": последнее предупреждение"
		msg = fmt.Sprintf("Сделка по посту «%s» будет автоматически закрыта через %s, если статус не обновится. Обновите статус, чтобы избежать штрафа.",
			postTitle, common.FormatDays(daysLeft))
		priority = notify.PriorityUrgent
	case r.Final:
		title += ": последнее предупреждение"
		msg = fmt.Sprintf("Сделка по вашему посту «%s» будет автоматически закрыта через %s, если статус не обновится. Попросите вторую сторону обновить статус.",
			postTitle, common.FormatDays(daysLeft))
		priority = notify.PriorityUrgent
	case role == RoleUnlocker:
		msg = fmt.Sprintf("Обновите статус сделки по посту «%s». С момента разблокировки прошло %s.",
			postTitle, common.FormatDays(r.Day))
	default:
		msg = fmt.Sprintf("Обновите статус сделки по вашему посту «%s». С момента разблокировки прошло %s.",
			postTitle, common.FormatDays(r.Day))
	}

	return notify.Notification{
		Type:     notify.TypeDealReminder,
		Title:    title,
		Message:  msg,
		Data:     map[string]any{"dealId": d.DealID, "id": d.ID, "day": r.Day, "final": r.Final},
		Priority: priority,
	}
}
