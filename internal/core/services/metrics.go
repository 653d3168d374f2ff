package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type mutationKind string

const (
	mutationCreate     mutationKind = "create"
	mutationTransition mutationKind = "transition"
	mutationRating     mutationKind = "rating"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repairdesk_mutations_total",
		Help: "Optimistic mutations by kind and remote outcome",
	}, []string{"kind", "outcome"})

	rollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repairdesk_rollbacks_total",
		Help: "Optimistic mutations reverted after the remote store refused them",
	}, []string{"kind"})

	activeWorkspaces = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "repairdesk_active_workspaces",
		Help: "Client workspaces currently held in memory",
	})
)

func recordMutation(kind mutationKind, persisted bool) {
	outcome := "persisted"
	if !persisted {
		outcome = "rejected"
	}
	mutationsTotal.WithLabelValues(string(kind), outcome).Inc()
}
