package gate

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reelgate/reelgate/internal/domain/event"
)

const namespace = "reelgate"

// Metrics holds the Prometheus metrics of the gating engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PendingCalls        prometheus.Gauge
	CallsQueued         prometheus.Counter
	CallsMerged         prometheus.Counter
	CallsPurged         prometheus.Counter
	Replays             *prometheus.CounterVec
	SessionInvalidated  prometheus.Counter
	VerificationDemands *prometheus.CounterVec
	ChallengeOutcomes   *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		PendingCalls: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_calls",
				Help:      "Calls currently suspended waiting for verification",
			},
		),
		CallsQueued: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_queued_total",
				Help:      "Calls suspended as new queue entries",
			},
		),
		CallsMerged: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_merged_total",
				Help:      "Calls merged onto an already queued identical request",
			},
		),
		CallsPurged: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_purged_total",
				Help:      "Queue entries cancelled by a purge",
			},
		),
		Replays: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replays_total",
				Help:      "Replays of suspended calls after verification",
			},
			[]string{"result"}, // result=ok/network_error/auth_error/verification_renewed
		),
		SessionInvalidated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_invalidations_total",
				Help:      "Stored sessions cleared after a 401",
			},
		),
		VerificationDemands: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verification_demands_total",
				Help:      "Calls blocked for verification, by cause",
			},
			[]string{"cause"}, // cause=no_clearance/server_signal
		),
		ChallengeOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "challenge_outcomes_total",
				Help:      "Challenge answers by outcome",
			},
			[]string{"outcome"}, // outcome=granted/failed/exhausted
		),
	}
}

// Observe counts session and challenge events delivered by bus.
func (m *Metrics) Observe(bus *event.Bus) {
	if m == nil {
		return
	}
	bus.Subscribe(event.SessionInvalidated, func(context.Context, event.Event) {
		m.SessionInvalidated.Inc()
	})
	bus.Subscribe(event.VerificationGranted, func(context.Context, event.Event) {
		m.ChallengeOutcomes.WithLabelValues("granted").Inc()
	})
	bus.Subscribe(event.ChallengeFailed, func(_ context.Context, e event.Event) {
		outcome := "failed"
		if e.AttemptsRemaining == 0 {
			outcome = "exhausted"
		}
		m.ChallengeOutcomes.WithLabelValues(outcome).Inc()
	})
}

func (m *Metrics) callQueued(pending int) {
	if m == nil {
		return
	}
	m.CallsQueued.Inc()
	m.PendingCalls.Set(float64(pending))
}

func (m *Metrics) callMerged() {
	if m == nil {
		return
	}
	m.CallsMerged.Inc()
}

func (m *Metrics) callsPurged(n int) {
	if m == nil {
		return
	}
	m.CallsPurged.Add(float64(n))
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.PendingCalls.Set(float64(n))
}

func (m *Metrics) replay(result string) {
	if m == nil {
		return
	}
	m.Replays.WithLabelValues(result).Inc()
}

func (m *Metrics) verificationDemand(cause string) {
	if m == nil {
		return
	}
	m.VerificationDemands.WithLabelValues(cause).Inc()
}
