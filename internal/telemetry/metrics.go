package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики ядра. Экспортируются через /metrics супервизора и,
// при заданном DON_WORKER_PORT, воркеров.
var (
	// MessagesSent — успешные отправки по профилям.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "don_messages_sent_total",
		Help: "Successful sends per profile.",
	}, []string{"profile_id"})

	// SendFailures — неуспешные попытки по тегу исхода.
	SendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "don_send_failures_total",
		Help: "Failed send attempts by outcome kind.",
	}, []string{"kind"})

	// TasksClaimed — успешные claim задач.
	TasksClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "don_tasks_claimed_total",
		Help: "Tasks claimed by workers.",
	})

	// HourlyLimitHits — отказы claim по часовому лимиту профиля.
	HourlyLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "don_hourly_limit_hits_total",
		Help: "Claim attempts rejected by the per-profile hourly cap.",
	})

	// ProxyRotations — выполненные ротации прокси.
	ProxyRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "don_proxy_rotations_total",
		Help: "Proxy rotations performed.",
	})

	// WorkerRestarts — перезапуски воркеров супервизором.
	WorkerRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "don_worker_restarts_total",
		Help: "Worker processes restarted by the supervisor.",
	})

	// StaleTasksReset — задачи, возвращённые reaper'ом в pending.
	StaleTasksReset = promauto.NewCounter(prometheus.CounterOpts{
		Name: "don_stale_tasks_reset_total",
		Help: "In-progress tasks returned to pending by the stale reaper.",
	})
)
