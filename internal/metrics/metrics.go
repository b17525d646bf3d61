// Package metrics exposes vault activity as Prometheus collectors.
package metrics

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"YieldHarbor/internal/fund"
	"YieldHarbor/internal/live"
)

// Indicators groups the vault collectors registered on one registry.
type Indicators struct {
	deposits      prometheus.Counter
	depositVolume prometheus.Counter
	withdrawals   prometheus.Counter
	yieldPaid     prometheus.Counter
	failures      *prometheus.CounterVec
	sessions      prometheus.Gauge
	refreshes     prometheus.Counter
}

// NewPromIndicators creates the collectors under namespace and registers them on reg.
func NewPromIndicators(reg prometheus.Registerer, namespace string) *Indicators {
	in := &Indicators{
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "deposits_total",
			Help: "Successful simulated deposits.",
		}),
		depositVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "deposit_tokens_total",
			Help: "Tokens moved into the simulated vault.",
		}),
		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "withdrawals_total",
			Help: "Successful simulated withdrawals.",
		}),
		yieldPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "yield_paid_tokens_total",
			Help: "Accrued yield credited on withdrawal.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "operation_failures_total",
			Help: "Rejected or failed vault operations by operation and reason.",
		}, []string{"op", "reason"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connected_sessions",
			Help: "Currently connected identities.",
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "worth_refreshes_total",
			Help: "Displayed worth recomputations.",
		}),
	}
	reg.MustRegister(in.deposits, in.depositVolume, in.withdrawals, in.yieldPaid, in.failures, in.sessions, in.refreshes)
	return in
}

func (in *Indicators) Deposited(amount decimal.Decimal) {
	in.deposits.Inc()
	in.depositVolume.Add(amount.InexactFloat64())
}

func (in *Indicators) Withdrew(_, yield decimal.Decimal) {
	in.withdrawals.Inc()
	if yield.IsPositive() {
		in.yieldPaid.Add(yield.InexactFloat64())
	}
}

func (in *Indicators) Failed(op string, err error) {
	in.failures.WithLabelValues(op, Reason(err)).Inc()
}

// SessionOpened and SessionClosed track the connected gauge.
func (in *Indicators) SessionOpened() { in.sessions.Inc() }
func (in *Indicators) SessionClosed() { in.sessions.Dec() }

// Refreshed counts a worth recomputation.
func (in *Indicators) Refreshed() { in.refreshes.Inc() }

// Reason maps an error to a low-cardinality label.
func Reason(err error) string {
	switch {
	case errors.Is(err, fund.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, fund.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, fund.ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, live.ErrCollaboratorFailure):
		return "collaborator"
	default:
		return "internal"
	}
}
