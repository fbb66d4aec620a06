// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: источник времени, русская плюрализация, форматирование дат.
package common

import (
	"math"
	"time"
)

// Day: длительность суток. Все «дни» сделок считаются от createdAt в сутках по 24 часа.
const Day = 24 * time.Hour

// Clock: источник текущего времени.
// В тестах подменяется фиксированными часами.
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает реальное время.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// DaysBetween возвращает дробное число суток между from и to.
func DaysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// WholeDaysBetween возвращает целое число полных суток (floor).
func WholeDaysBetween(from, to time.Time) int {
	return int(math.Floor(DaysBetween(from, to)))
}

// Round2 округляет до двух знаков после запятой.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LoadLocation загружает часовой пояс по имени.
// Если tzdata нет в образе: UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
