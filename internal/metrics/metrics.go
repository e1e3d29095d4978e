package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the swap bot. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Orchestrator
	attemptsTotal      *prometheus.CounterVec
	stageFailuresTotal *prometheus.CounterVec
	outcomesTotal      *prometheus.CounterVec
	pollsTotal         *prometheus.CounterVec
	resubmitsTotal     *prometheus.CounterVec
	settlementDuration prometheus.Histogram

	// Scheduler
	roundsTotal    *prometheus.CounterVec
	decisionsTotal *prometheus.CounterVec
	panicsTotal    *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swap_attempts_total",
				Help: "Total number of swap attempts by result",
			},
			[]string{"result"},
		),
		stageFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swap_stage_failures_total",
				Help: "Total number of failed swap attempts by the stage that failed",
			},
			[]string{"stage"},
		),
		outcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swap_requests_total",
				Help: "Total number of finished swap requests by outcome",
			},
			[]string{"outcome"},
		),
		pollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundle_status_polls_total",
				Help: "Total number of bundle status polls by reported status",
			},
			[]string{"status"},
		),
		resubmitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundle_resubmits_total",
				Help: "Total number of bundle resubmissions by mode",
			},
			[]string{"mode"},
		),
		settlementDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "swap_settlement_duration_seconds",
				Help:    "Time from first quote to landed bundle",
				Buckets: []float64{5, 15, 30, 45, 60, 120, 300, 600},
			},
		),
		roundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_rounds_total",
				Help: "Total number of scheduler rounds by strategy",
			},
			[]string{"strategy"},
		),
		decisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategy_decisions_total",
				Help: "Total number of strategy decisions by strategy and decision",
			},
			[]string{"strategy", "decision"},
		),
		panicsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_panics_total",
				Help: "Total number of recovered panics inside scheduler rounds",
			},
			[]string{"strategy"},
		),
	}
}

// Orchestrator metric helpers

// RecordAttempt records the result of one attempt (landed, failed, skipped).
func (m *Metrics) RecordAttempt(result string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(result).Inc()
}

// RecordStageFailure records the stage at which an attempt failed.
func (m *Metrics) RecordStageFailure(stage string) {
	if m == nil {
		return
	}
	m.stageFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordOutcome records the terminal outcome of a request.
func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordPoll records one status poll.
func (m *Metrics) RecordPoll(status string) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(status).Inc()
}

// RecordResubmit records a resubmission after a Failed status.
func (m *Metrics) RecordResubmit(mode string) {
	if m == nil {
		return
	}
	m.resubmitsTotal.WithLabelValues(mode).Inc()
}

// ObserveSettlement records how long a landed request took.
func (m *Metrics) ObserveSettlement(seconds float64) {
	if m == nil {
		return
	}
	m.settlementDuration.Observe(seconds)
}

// Scheduler metric helpers

// RecordRound records a completed scheduler round.
func (m *Metrics) RecordRound(strategy string) {
	if m == nil {
		return
	}
	m.roundsTotal.WithLabelValues(strategy).Inc()
}

// RecordDecision records whether a strategy asked for a swap on a target.
func (m *Metrics) RecordDecision(strategy, decision string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(strategy, decision).Inc()
}

// RecordPanic records a recovered panic.
func (m *Metrics) RecordPanic(strategy string) {
	if m == nil {
		return
	}
	m.panicsTotal.WithLabelValues(strategy).Inc()
}
