package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quizgate"

var (
	otpOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "otp",
		Name:      "outcomes_total",
		Help:      "OTP admission gate transitions by outcome.",
	}, []string{"outcome"})

	attemptOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attempt",
		Name:      "outcomes_total",
		Help:      "Attempts reaching a terminal state, by status.",
	}, []string{"status"})

	attemptPercentage = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "attempt",
		Name:      "percentage",
		Help:      "Score percentage of completed attempts.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})
)

// OTP outcomes.
const (
	OTPChallengeSent     = "challenge_sent"
	OTPChallengeFailed   = "challenge_failed"
	OTPGranted           = "granted"
	OTPInvalidCode       = "invalid_code"
	OTPVerificationError = "verification_failed"
)

func ObserveOTP(outcome string) {
	otpOutcomes.WithLabelValues(outcome).Inc()
}

func ObserveAttempt(status string) {
	attemptOutcomes.WithLabelValues(status).Inc()
}

func ObservePercentage(p float64) {
	attemptPercentage.Observe(p)
}
