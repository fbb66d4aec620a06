// Package workspace ведёт историю сделок пользователя (выигранные/проваленные)
// и выдаёт значки за количество успешных сделок.
package workspace

import "time"

// Result: итог сделки для участника.
type Result string

const (
	ResultWon    Result = "Won"
	ResultFailed Result = "Failed"
)

// Workspace: счётчики сделок пользователя.
type Workspace struct {
	UserID      int64 `json:"userId"`
	TotalDeals  int   `json:"totalDeals"`
	WonDeals    int   `json:"wonDeals"`
	FailedDeals int   `json:"failedDeals"`
}

// Entry: запись истории, одна на пост.
type Entry struct {
	PostID    int64     `json:"postId"`
	DealID    int64     `json:"dealId"`
	Result    Result    `json:"result"`
	Notes     string    `json:"notes"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Badge: полученный значок.
type Badge struct {
	Level    int       `json:"level"`
	EarnedAt time.Time `json:"earnedAt"`
}

// BadgeLevels: пороги выигранных сделок.
var BadgeLevels = []int{10, 20, 50, 100, 150}

// BadgeTitle: название значка для уведомления.
func BadgeTitle(level int) string {
	switch level {
	case 10:
		return "Silver Badge"
	case 20:
		return "Gold Badge"
	case 50:
		return "Platinum Badge"
	case 100:
		return "Diamond Badge"
	case 150:
		return "Elite Badge"
	default:
		return "Achievement Badge"
	}
}

// Apply пересчитывает счётчики при записи итога по посту.
// prior: предыдущий итог по тому же посту (nil, если записи не было).
// Повторная запись того же итога ничего не меняет.
func Apply(ws Workspace, prior *Result, result Result) Workspace {
	if prior == nil {
		ws.TotalDeals++
		ws.bump(result, 1)
		return ws
	}
	if *prior == result {
		return ws
	}
	ws.bump(*prior, -1)
	ws.bump(result, 1)
	return ws
}

func (ws *Workspace) bump(r Result, delta int) {
	switch r {
	case ResultWon:
		ws.WonDeals = max(0, ws.WonDeals+delta)
	case ResultFailed:
		ws.FailedDeals = max(0, ws.FailedDeals+delta)
	}
}

// Missing возвращает пороги, которые уже пройдены, но значков за них ещё нет.
func Missing(wonDeals int, earned []Badge) []int {
	have := make(map[int]bool, len(earned))
	for _, b := range earned {
		have[b.Level] = true
	}
	var out []int
	for _, level := range BadgeLevels {
		if wonDeals >= level && !have[level] {
			out = append(out, level)
		}
	}
	return out
}
