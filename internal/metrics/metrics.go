// Package metrics: счётчики Prometheus для отправки сообщений, вызовов сервиса ответов
// и перечиток уведомлений. Экспортируются через /metrics (promhttp).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatSends считает завершённые отправки по режиму и исходу (ok, error, aborted).
	ChatSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_chat_sends_total",
		Help: "Chat submissions by mode and outcome",
	}, []string{"mode", "outcome"})

	CompletionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workspace_completion_duration_seconds",
		Help:    "Latency of chat completion endpoint calls",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45, 90},
	}, []string{"variant", "result"})

	NotificationRefetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workspace_notification_refetches_total",
		Help: "Full task list re-fetches performed by notification pollers",
	})

	ActivePollers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workspace_notification_pollers",
		Help: "Notification pollers currently running",
	})

	Chimes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workspace_notification_chimes_total",
		Help: "Unread-increase chimes emitted",
	})
)

var (
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workspace_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	HTTPPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workspace_http_panics_total",
		Help: "Handler panics converted to JSON 500",
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_http_rate_limited_total",
		Help: "Requests rejected by the API rate limiter",
	}, []string{"by"})
)
