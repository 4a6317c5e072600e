package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvitesDispatched counts approved orders that received a fresh invite link.
	InvitesDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storebot_invites_dispatched_total",
			Help: "Total number of invite links issued to approved orders",
		},
	)

	// InvitesRevoked counts invite links revoked by the expiry sweeper.
	InvitesRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storebot_invites_revoked_total",
			Help: "Total number of expired invite links revoked",
		},
	)

	// CartsReclaimed counts idle carts reclaimed by the reaper.
	CartsReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storebot_carts_reclaimed_total",
			Help: "Total number of idle carts reclaimed",
		},
	)

	// JobItemFailures counts per-item failures inside batch jobs by job name.
	JobItemFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storebot_job_item_failures_total",
			Help: "Total number of per-item failures during background job runs",
		},
		[]string{"job"},
	)
)
