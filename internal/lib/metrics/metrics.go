// Package metrics объявляет счётчики Prometheus, которые отдаёт /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CatchUpAdvanced число подписок, у которых догоняющий пересчёт перенёс дату списания.
	CatchUpAdvanced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "subtrack",
		Subsystem: "scheduler",
		Name:      "catch_up_advanced_total",
		Help:      "Subscriptions whose next billing date was moved forward.",
	})

	// CatchUpFailed число подписок, которые не удалось пересчитать.
	CatchUpFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "subtrack",
		Subsystem: "scheduler",
		Name:      "catch_up_failed_total",
		Help:      "Subscriptions the catch-up job failed to update.",
	})

	// RemindersPublished число опубликованных напоминаний о списании.
	RemindersPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "subtrack",
		Subsystem: "scheduler",
		Name:      "reminders_published_total",
		Help:      "Upcoming billing reminders published to the broker.",
	})

	// PlanChanges число оценок и подтверждений смены тарифа по типу.
	PlanChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subtrack",
		Subsystem: "billing",
		Name:      "plan_changes_total",
		Help:      "Plan change previews and confirmations by stage and upgrade type.",
	}, []string{"stage", "upgrade_type"})
)

// Стадии смены тарифа для метки stage.
const (
	StagePreview = "preview"
	StageConfirm = "confirm"
)
