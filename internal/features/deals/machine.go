package deals

import (
	"time"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/features/credits"
)

// transitions: граф статусов. Contacted не достижим ни из одного статуса.
var transitions = map[Status][]Status{
	StatusContacted: {StatusOngoing, StatusClosed},
	StatusOngoing:   {StatusSuccess, StatusFail, StatusClosed},
	StatusSuccess:   {StatusClosed},
	StatusFail:      {StatusClosed},
	StatusClosed:    {},
}

// CanTransition: переход разрешён графом.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition возвращает ErrInvalidTransition с обоими статусами в тексте.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return common.Wrapf(common.ErrInvalidTransition, "нельзя перевести сделку из %s в %s", from, to)
	}
	return nil
}

// TimingAdjustment: бонус или штраф за скорость закрытия, считается от createdAt
// в дробных сутках в момент фактической смены статуса.
//
//	≤ 1 дня   → бонус 5
//	≤ 7 дней  → бонус 3
//	≤ 30 дней → бонус 1
//	иначе     → штраф 2
func TimingAdjustment(createdAt, now time.Time) credits.Adjustment {
	days := common.DaysBetween(createdAt, now)
	switch {
	case days <= 1:
		return credits.Adjustment{Bonus: 5}
	case days <= 7:
		return credits.Adjustment{Bonus: 3}
	case days <= 30:
		return credits.Adjustment{Bonus: 1}
	default:
		return credits.Adjustment{Penalty: 2}
	}
}

// SettlesCredits: переход применяет creditAdjustments к балансам.
// Срабатывает один раз: только при выходе из открытого статуса в терминальный.
func SettlesCredits(from, to Status) bool {
	return from.IsOpen() && to.IsTerminal()
}

func addAdjustments(a, b credits.Adjustment) credits.Adjustment {
	return credits.Adjustment{Bonus: a.Bonus + b.Bonus, Penalty: a.Penalty + b.Penalty}
}
