// Package metrics: счётчики Prometheus для сделок, кредитов и планировщика.
// Регистрируются в глобальном реестре через promauto и отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_http_requests_total",
			Help: "Количество HTTP-запросов",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealdesk_http_request_duration_seconds",
			Help:    "Длительность HTTP-запроса (секунды)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	DealsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealdesk_deals_created_total",
			Help: "Созданные сделки",
		},
	)

	DealTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_deal_transitions_total",
			Help: "Реализованные переходы статусов сделок",
		},
		[]string{"from", "to", "initiator"},
	)

	DealConfirmationsPending = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_deal_confirmations_pending_total",
			Help: "Подтверждения, ожидающие вторую сторону",
		},
		[]string{"resolution"},
	)

	CreditsAdjusted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_credits_adjusted_total",
			Help: "Начисленные бонусы и списанные штрафы (в кредитах)",
		},
		[]string{"kind"},
	)

	Unlocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_post_unlocks_total",
			Help: "Попытки разблокировки постов",
		},
		[]string{"result"},
	)

	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_sweep_runs_total",
			Help: "Запуски фоновых обходов",
		},
		[]string{"job"},
	)

	SweepItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_sweep_items_total",
			Help: "Обработанные записи фоновых обходов",
		},
		[]string{"job", "outcome"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_notifications_total",
			Help: "Отправленные уведомления по каналам",
		},
		[]string{"channel", "result"},
	)
)
