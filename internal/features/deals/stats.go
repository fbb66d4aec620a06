package deals

import (
	"context"
	"math"

	"serotonyl.ru/deal-desk/internal/common"
)

// Stats: статистика сделок пользователя.
type Stats struct {
	Counts          map[Status]int `json:"stats"`
	AvgResponseTime float64        `json:"avgResponseTime"` // сутки, 2 знака
}

// ComputeStats: гистограмма по всем пяти статусам и среднее время ответа по завершённым сделкам.
func ComputeStats(deals []*Deal) *Stats {
	st := &Stats{Counts: make(map[Status]int, len(AllStatuses))}
	for _, s := range AllStatuses {
		st.Counts[s] = 0
	}
	var sum float64
	var n int
	for _, d := range deals {
		st.Counts[d.Status]++
		if d.Status.IsTerminal() {
			sum += common.DaysBetween(d.CreatedAt, d.LastUpdate())
			n++
		}
	}
	if n > 0 {
		st.AvgResponseTime = common.Round2(sum / float64(n))
	}
	return st
}

// Stats: статистика по всем сделкам пользователя (включая закрытые).
func (s *Service) Stats(ctx context.Context, userID int64) (*Stats, error) {
	deals, err := s.store.ListForParty(ctx, PartyFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	return ComputeStats(deals), nil
}

// Page: страница списка сделок.
type Page struct {
	Deals []*Deal `json:"deals"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Pages int     `json:"pages"`
}

// AdminList: все сделки с фильтром по статусу и поиском по dealId.
func (s *Service) AdminList(ctx context.Context, status, search string, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	f := AdminFilter{Search: search, Offset: (page - 1) * limit, Limit: limit}
	if status != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		f.Status = &st
	}

	deals, total, err := s.store.ListAdmin(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Page{
		Deals: deals,
		Total: total,
		Page:  page,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// AdminGet: сделка по ID без проверки участия.
func (s *Service) AdminGet(ctx context.Context, id int64) (*Deal, error) {
	return s.store.Get(ctx, id)
}

// Analytics: сводка по сделкам для админки.
type Analytics struct {
	StatusCounts          map[Status]int `json:"statusCounts"`
	TotalDeals            int            `json:"totalDeals"`
	SuccessRate           float64        `json:"successRate"`
	FailRate              float64        `json:"failRate"`
	CompletionRate        float64        `json:"completionRate"`
	ChronicNonUpdateCount int            `json:"chronicNonUpdateCount"`
	TotalPenaltiesApplied int64          `json:"totalPenaltiesApplied"`
	AvgPenaltyPerDeal     float64        `json:"avgPenaltyPerDeal"`
	AvgResponseTime       float64        `json:"avgResponseTime"`
	DealsByMonth          []MonthBucket  `json:"dealsByMonth"`
	RecentDeals           []*Deal        `json:"recentDeals"`
}

// BuildAnalytics считает доли (в процентах, 2 знака) из сырых агрегатов.
func BuildAnalytics(raw *AnalyticsRaw) *Analytics {
	a := &Analytics{
		StatusCounts:          make(map[Status]int, len(AllStatuses)),
		TotalDeals:            raw.Total,
		ChronicNonUpdateCount: raw.Chronic,
		TotalPenaltiesApplied: raw.TotalPenalties,
		AvgResponseTime:       common.Round2(raw.AvgResponseDays),
		DealsByMonth:          raw.ByMonth,
		RecentDeals:           raw.Recent,
	}
	for _, s := range AllStatuses {
		a.StatusCounts[s] = raw.StatusCounts[s]
	}
	if raw.Total == 0 {
		return a
	}

	total := float64(raw.Total)
	success := float64(a.StatusCounts[StatusSuccess])
	fail := float64(a.StatusCounts[StatusFail])
	closed := float64(a.StatusCounts[StatusClosed])
	a.SuccessRate = common.Round2(success / total * 100)
	a.FailRate = common.Round2(fail / total * 100)
	a.CompletionRate = common.Round2((success + fail + closed) / total * 100)
	a.AvgPenaltyPerDeal = common.Round2(float64(raw.TotalPenalties) / total)
	return a
}

// Analytics: сводка за всё время и помесячная динамика за 6 месяцев.
func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	raw, err := s.store.Analytics(ctx, s.clock.Now().AddDate(0, -6, 0))
	if err != nil {
		return nil, err
	}
	return BuildAnalytics(raw), nil
}
