package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(claimsTotal, redemptionsTotal, tokensAwarded, tokensSpent, ledgerLatency, codesGenerated)
}

var (
	claimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_claims_total",
			Help: "Earn code claims by result (ok, not_found, already_consumed, store_failure).",
		},
		[]string{"result"},
	)

	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_redemptions_total",
			Help: "Reward redemptions by result.",
		},
		[]string{"result"},
	)

	tokensAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_tokens_awarded_total",
		Help: "Tokens credited by successful claims.",
	})

	tokensSpent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_tokens_spent_total",
		Help: "Tokens debited by successful redemptions.",
	})

	ledgerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Latency of ledger transactions.",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	codesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rvm_codes_generated_total",
			Help: "Earn codes generated per item type.",
		},
		[]string{"item_type"},
	)
)

// ObserveClaim records one claim attempt.
func ObserveClaim(result string, tokens int, elapsed time.Duration) {
	claimsTotal.WithLabelValues(norm(result)).Inc()
	if tokens > 0 {
		tokensAwarded.Add(float64(tokens))
	}
	ledgerLatency.WithLabelValues("claim").Observe(elapsed.Seconds())
}

// ObserveRedemption records one redemption attempt.
func ObserveRedemption(result string, cost int, elapsed time.Duration) {
	redemptionsTotal.WithLabelValues(norm(result)).Inc()
	if cost > 0 {
		tokensSpent.Add(float64(cost))
	}
	ledgerLatency.WithLabelValues("redeem").Observe(elapsed.Seconds())
}

func IncCodeGenerated(itemType string) {
	codesGenerated.WithLabelValues(norm(itemType)).Inc()
}
