package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors shared by the services.
type Metrics struct {
	ReconcileOutcomes *prometheus.CounterVec
	IntegrationErrors *prometheus.CounterVec
	CertificateSends  *prometheus.CounterVec
	TicketIndexSize   prometheus.Gauge
	RefreshDuration   prometheus.Histogram
	GameAnswers       *prometheus.CounterVec
	GamePlayers       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReconcileOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confops_reconcile_outcomes_total",
			Help: "Registration reconciliations by outcome",
		}, []string{"outcome"}),
		IntegrationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confops_integration_errors_total",
			Help: "Upstream dependency failures by operation",
		}, []string{"op"}),
		CertificateSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confops_certificate_sends_total",
			Help: "Certificate email attempts by result",
		}, []string{"result"}),
		TicketIndexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confops_ticket_index_orders",
			Help: "Orders held in the ticket index after the last refresh",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "confops_ticket_index_refresh_seconds",
			Help:    "Duration of full ticket index refreshes",
			Buckets: prometheus.DefBuckets,
		}),
		GameAnswers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confops_game_answers_total",
			Help: "Trivia game answers by outcome",
		}, []string{"outcome"}),
		GamePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confops_game_players",
			Help: "Players with a trivia score",
		}),
	}
	reg.MustRegister(m.ReconcileOutcomes, m.IntegrationErrors, m.CertificateSends, m.TicketIndexSize, m.RefreshDuration,
		m.GameAnswers, m.GamePlayers)
	return m
}
