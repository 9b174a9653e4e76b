package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics - счетчики и датчики relay для /metrics
type Metrics struct {
	OpenSessions    prometheus.Gauge
	PairingAttempts *prometheus.CounterVec
	SyncRounds      *prometheus.CounterVec
	ActionsApplied  prometheus.Counter
}

// NewMetrics регистрирует метрики в переданном registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OpenSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "listsync_open_sessions",
			Help: "Number of currently open device sessions.",
		}),
		PairingAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "listsync_pairing_attempts_total",
			Help: "Pairing attempts by result.",
		}, []string{"result"}),
		SyncRounds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "listsync_sync_rounds_total",
			Help: "Completed sync rounds by result.",
		}, []string{"result"}),
		ActionsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "listsync_actions_applied_total",
			Help: "Incremental list actions applied.",
		}),
	}
}
