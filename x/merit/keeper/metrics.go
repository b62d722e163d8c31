package keeper

import (
	"math/big"
	"sync"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MeritMetrics holds all Prometheus metrics for the merit module
type MeritMetrics struct {
	// Staking metrics
	PositionsOpened *prometheus.CounterVec
	PositionsClosed *prometheus.CounterVec
	RewardsPaid     *prometheus.CounterVec

	// Contribution metrics
	ContributionsSubmitted *prometheus.CounterVec
	ContributionsResolved  *prometheus.CounterVec
	ReviewsSubmitted       prometheus.Counter
	RewardsDeferred        prometheus.Counter
	ProofVerificationTime  prometheus.Histogram

	// Validator metrics
	Slashes            *prometheus.CounterVec
	InsurancePool      prometheus.Gauge
	ValidatorsRevoked  prometheus.Counter
	PerformanceReports prometheus.Counter

	// Governance metrics
	VotesCast          *prometheus.CounterVec
	ProposalsFinalized *prometheus.CounterVec

	// Security metrics
	InvariantViolations prometheus.Counter
}

var (
	meritMetricsOnce sync.Once
	meritMetrics     *MeritMetrics
)

// NewMeritMetrics creates and registers merit metrics (singleton pattern)
func NewMeritMetrics() *MeritMetrics {
	meritMetricsOnce.Do(func() {
		meritMetrics = &MeritMetrics{
			PositionsOpened: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "stake",
					Name:      "positions_opened_total",
					Help:      "Total stake positions opened",
				},
				[]string{"role"},
			),
			PositionsClosed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "stake",
					Name:      "positions_closed_total",
					Help:      "Total stake positions closed",
				},
				[]string{"role"},
			),
			RewardsPaid: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "treasury",
					Name:      "rewards_paid_total",
					Help:      "Total reward tokens paid out of the reward pool",
				},
				[]string{"source"},
			),
			ContributionsSubmitted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "contribution",
					Name:      "submitted_total",
					Help:      "Total contributions submitted",
				},
				[]string{"category"},
			),
			ContributionsResolved: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "contribution",
					Name:      "resolved_total",
					Help:      "Total contributions that reached a review verdict",
				},
				[]string{"status"},
			),
			ReviewsSubmitted: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "contribution",
					Name:      "reviews_total",
					Help:      "Total peer reviews recorded",
				},
			),
			RewardsDeferred: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "contribution",
					Name:      "rewards_deferred_total",
					Help:      "Approved contributions whose payout failed and awaits retry",
				},
			),
			ProofVerificationTime: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "merit",
					Subsystem: "oracle",
					Name:      "proof_verification_seconds",
					Help:      "Time spent in the proof oracle",
					Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
				},
			),
			Slashes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "validator",
					Name:      "slashes_total",
					Help:      "Total validator slashes",
				},
				[]string{"reason"},
			),
			InsurancePool: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "merit",
					Subsystem: "treasury",
					Name:      "insurance_pool",
					Help:      "Tokens accumulated in the insurance pool",
				},
			),
			ValidatorsRevoked: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "validator",
					Name:      "revoked_total",
					Help:      "Total validators revoked",
				},
			),
			PerformanceReports: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "validator",
					Name:      "performance_reports_total",
					Help:      "Total validator performance reports",
				},
			),
			VotesCast: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "governance",
					Name:      "votes_cast_total",
					Help:      "Total quadratic votes cast",
				},
				[]string{"option"},
			),
			ProposalsFinalized: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "governance",
					Name:      "proposals_finalized_total",
					Help:      "Total proposals finalized",
				},
				[]string{"status"},
			),
			InvariantViolations: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "merit",
					Subsystem: "security",
					Name:      "invariant_violations_total",
					Help:      "Ledger invariant violations detected",
				},
			),
		}
	})
	return meritMetrics
}

// GetMeritMetrics returns the singleton metrics instance
func GetMeritMetrics() *MeritMetrics {
	return NewMeritMetrics()
}

// tokens converts an amount to a float for gauges and counters.
func tokens(amount math.Int) float64 {
	if amount.IsNil() {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount.BigInt()).Float64()
	return f
}
