// Package metrics owns the prometheus collectors of one engine process.
// Collectors hang off a *Metrics value instead of package globals so tests
// and multiple engines in one binary never share counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "killrewards"

type Metrics struct {
	Registry *prometheus.Registry

	AccrualUsers   prometheus.Counter
	AccrualCreated prometheus.Counter
	AccrualZero    prometheus.Counter
	AccrualKills   prometheus.Counter
	AccrualSkipped *prometheus.CounterVec

	SettlementCandidates prometheus.Counter
	SettlementDeferred   prometheus.Counter
	Payouts              *prometheus.CounterVec
	PayoutAttempts       prometheus.Counter

	RepairedEntries *prometheus.CounterVec

	HoldingScanned prometheus.Counter
	HoldingUpdated prometheus.Counter

	OperatorBalance prometheus.Gauge

	SchedulerErrors prometheus.Counter
	PhaseDuration   *prometheus.HistogramVec
}

// New builds the collector set and registers it on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		AccrualUsers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accrual",
			Name:      "users_considered_total",
			Help:      "Players considered for accrual.",
		}),
		AccrualCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accrual",
			Name:      "entries_created_total",
			Help:      "Ledger entries created by accrual.",
		}),
		AccrualZero: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accrual",
			Name:      "zero_delta_total",
			Help:      "Players with no positive kill delta.",
		}),
		AccrualKills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accrual",
			Name:      "kills_total",
			Help:      "Kills accrued into new ledger entries.",
		}),
		AccrualSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accrual",
			Name:      "skipped_total",
			Help:      "Players skipped during accrual by reason.",
		}, []string{"reason"}),

		SettlementCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "candidates_total",
			Help:      "Settlement candidates considered.",
		}),
		SettlementDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "deferred_entries_total",
			Help:      "Unsettled entries deferred by caps.",
		}),
		Payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "payouts_total",
			Help:      "Payout outcomes by final status.",
		}, []string{"status"}),
		PayoutAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "transfer_attempts_total",
			Help:      "Transfer attempts against the payment rail.",
		}),

		RepairedEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repair",
			Name:      "entries_reset_total",
			Help:      "Ledger entries returned to the unsettled pool by repair pass.",
		}, []string{"pass"}),

		HoldingScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "holding",
			Name:      "scanned_total",
			Help:      "Players whose holding balance was queried.",
		}),
		HoldingUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "holding",
			Name:      "updated_total",
			Help:      "Players whose holding balance changed.",
		}),

		OperatorBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rail",
			Name:      "operator_available_balance",
			Help:      "Operator available balance in display units at the last check.",
		}),

		SchedulerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "errors_total",
			Help:      "Ticks that ended with at least one failed phase.",
		}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "phase_duration_seconds",
			Help:      "Duration of scheduler phases.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}, []string{"phase", "outcome"}),
	}

	m.Registry.MustRegister(
		m.AccrualUsers,
		m.AccrualCreated,
		m.AccrualZero,
		m.AccrualKills,
		m.AccrualSkipped,
		m.SettlementCandidates,
		m.SettlementDeferred,
		m.Payouts,
		m.PayoutAttempts,
		m.RepairedEntries,
		m.HoldingScanned,
		m.HoldingUpdated,
		m.OperatorBalance,
		m.SchedulerErrors,
		m.PhaseDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
