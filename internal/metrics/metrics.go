package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// WalletOpsTotal counts ledger operations by kind and outcome.
	WalletOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ibet",
			Name:      "wallet_operations_total",
			Help:      "Total wallet ledger operations by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// WalletOpDuration observes ledger operation latency by kind.
	WalletOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ibet",
			Name:      "wallet_operation_duration_seconds",
			Help:      "Wallet ledger operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"kind"},
	)

	// OTPChallengesTotal counts OTP challenge outcomes.
	OTPChallengesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ibet",
			Name:      "otp_challenges_total",
			Help:      "Total OTP challenge events by outcome.",
		},
		[]string{"outcome"},
	)

	// SecurityEventsTotal counts security events by type and severity.
	SecurityEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ibet",
			Name:      "security_events_total",
			Help:      "Total security events by type and severity.",
		},
		[]string{"event_type", "severity"},
	)

	// RateLimitDenialsTotal counts rate limit denials by scope.
	RateLimitDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ibet",
			Name:      "rate_limit_denials_total",
			Help:      "Total rate limit denials by scope.",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		WalletOpsTotal,
		WalletOpDuration,
		OTPChallengesTotal,
		SecurityEventsTotal,
		RateLimitDenialsTotal,
	)
}

// ObserveWalletOp increments the operation counter and returns a
// function to observe duration on completion.
func ObserveWalletOp(kind string, outcome *string) func() {
	start := time.Now()
	return func() {
		WalletOpsTotal.WithLabelValues(kind, *outcome).Inc()
		WalletOpDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}
