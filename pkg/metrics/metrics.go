package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RiskChecks counts pre-trade admission decisions by result (approved/rejected)
var RiskChecks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "riskguard_risk_checks_total",
		Help: "Total number of pre-trade risk checks by result",
	},
	[]string{"result"},
)

// KillSwitchActive reports whether the kill switch is latched (1) or armed (0)
var KillSwitchActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "riskguard_kill_switch_active",
		Help: "Whether the kill switch is currently active",
	},
)

// EventsPublished counts events published on the bus by severity
var EventsPublished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "riskguard_events_published_total",
		Help: "Total number of events published on the event bus",
	},
	[]string{"severity"},
)

// Broker and audit failure counters
var (
	BrokerPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskguard_broker_publish_failures_total",
			Help: "Number of best-effort broker publishes that failed",
		},
	)

	AuditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskguard_audit_write_failures_total",
			Help: "Number of audit trail writes that failed and were rolled back",
		},
	)

	PositionsForceClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskguard_positions_force_closed_total",
			Help: "Number of positions force-closed by kill switch activations",
		},
	)
)

func init() {
	prometheus.MustRegister(RiskChecks, KillSwitchActive, EventsPublished)
	prometheus.MustRegister(BrokerPublishFailures, AuditWriteFailures, PositionsForceClosed)
}
