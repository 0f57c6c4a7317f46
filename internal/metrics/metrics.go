package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chess_duel"

// Move outcome label values.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeFault     = "fault"
	OutcomeDiscarded = "discarded"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	liveConnections prometheus.Gauge
	roleAssignments *prometheus.CounterVec
	movesTotal      *prometheus.CounterVec
	evictionsTotal  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		liveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections",
			Help:      "Number of connections currently attached to the session",
		}),

		roleAssignments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_assignments_total",
			Help:      "Roles handed out on connect",
		}, []string{"role"}),

		movesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Move submissions by outcome",
		}, []string{"outcome"}),

		evictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Connections dropped because their outbound buffer was full",
		}),
	}
}

func (m *Metrics) ConnectionOpened(role string) {
	if m == nil {
		return
	}

	m.liveConnections.Inc()
	m.roleAssignments.WithLabelValues(role).Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}

	m.liveConnections.Dec()
}

func (m *Metrics) MoveOutcome(outcome string) {
	if m == nil {
		return
	}

	m.movesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Evicted() {
	if m == nil {
		return
	}

	m.evictionsTotal.Inc()
}
