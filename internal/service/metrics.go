package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_sync_passes_total",
			Help: "Sync passes by platform and result",
		},
		[]string{"platform", "result"},
	)

	syncMessagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_sync_messages_stored_total",
			Help: "Messages upserted by sync passes",
		},
		[]string{"platform"},
	)

	syncMessagesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_sync_messages_skipped_total",
			Help: "Platform messages dropped because they could not be normalized",
		},
		[]string{"platform"},
	)

	syncPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_sync_pass_duration_seconds",
			Help:    "Duration of a full sync pass",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"platform"},
	)

	autoRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_auto_replies_total",
			Help: "Auto-reply attempts by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)
)
