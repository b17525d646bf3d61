package metrics

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"YieldHarbor/internal/fund"
	"YieldHarbor/internal/live"
)

func TestIndicators(t *testing.T) {
	reg := prometheus.NewRegistry()
	in := NewPromIndicators(reg, "test")

	in.Deposited(decimal.NewFromInt(250))
	in.Deposited(decimal.NewFromInt(50))
	in.Withdrew(decimal.NewFromInt(100), decimal.RequireFromString("0.5"))
	in.Failed("withdraw", errors.Wrap(fund.ErrInsufficientShares, "withdraw"))
	in.Failed("live_deposit", errors.Mark(errors.New("execution reverted"), live.ErrCollaboratorFailure))
	in.SessionOpened()
	in.SessionOpened()
	in.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(in.deposits))
	assert.Equal(t, 300.0, testutil.ToFloat64(in.depositVolume))
	assert.Equal(t, 1.0, testutil.ToFloat64(in.withdrawals))
	assert.Equal(t, 0.5, testutil.ToFloat64(in.yieldPaid))
	assert.Equal(t, 1.0, testutil.ToFloat64(in.failures.WithLabelValues("withdraw", "insufficient_shares")))
	assert.Equal(t, 1.0, testutil.ToFloat64(in.failures.WithLabelValues("live_deposit", "collaborator")))
	assert.Equal(t, 1.0, testutil.ToFloat64(in.sessions))

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "invalid_amount", Reason(fund.ErrInvalidAmount))
	assert.Equal(t, "internal", Reason(errors.New("boom")))
	assert.Equal(t, "collaborator", Reason(errors.Mark(errors.New("user rejected the request"), live.ErrCollaboratorFailure)))
}
