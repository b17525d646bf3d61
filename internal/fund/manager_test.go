package fund

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldHarbor/internal/calculator"
	"YieldHarbor/internal/model"
	"YieldHarbor/internal/store"
	"YieldHarbor/internal/strategy"
)

const alice = "0x00000000000000000000000000000000000a11ce"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type failingRepo struct {
	store.Repository
}

func (failingRepo) Commit(context.Context, string, model.AccountState, model.Transaction) error {
	return errors.New("disk full")
}

func fivePercent() *strategy.Catalog {
	return strategy.NewCatalog([]model.Strategy{{Name: "Five", APY: 5, Risk: model.RiskLow}})
}

func newTestLedger(t *testing.T, repo store.Repository, cat Catalog) (*Ledger, *fakeClock) {
	t.Helper()
	if repo == nil {
		repo = store.NewKVRepository(store.NewMemoryKV())
	}
	if cat == nil {
		cat = fivePercent()
	}
	clk := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewLedger(repo, cat, WithClock(clk.Now)), clk
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOpen_GrantsOnce(t *testing.T) {
	l, _ := newTestLedger(t, nil, nil)
	ctx := context.Background()

	st, err := l.Open(ctx, alice)
	require.NoError(t, err)
	assert.True(t, st.TokenBalance.Equal(d("1000")))
	assert.True(t, st.HasReceivedInitialAllocation)

	_, err = l.Deposit(ctx, alice, d("100"))
	require.NoError(t, err)

	st, err = l.Open(ctx, alice)
	require.NoError(t, err)
	assert.True(t, st.TokenBalance.Equal(d("900")), "grant must not be applied twice, got %s", st.TokenBalance)
}

func TestOpen_CustomGrant(t *testing.T) {
	repo := store.NewKVRepository(store.NewMemoryKV())
	l := NewLedger(repo, fivePercent(), WithInitialGrant(d("42")))

	st, err := l.Open(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, st.TokenBalance.Equal(d("42")))
}

func TestDeposit_Scenario(t *testing.T) {
	l, clk := newTestLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)

	tx, err := l.Deposit(ctx, alice, d("250"))
	require.NoError(t, err)
	assert.Equal(t, model.TxDeposit, tx.Kind)
	assert.True(t, tx.Amount.Equal(d("250")))
	assert.Equal(t, clk.Now().UnixMilli(), tx.Timestamp)
	assert.Equal(t, "Five", tx.PrimaryStrategy)
	require.Len(t, tx.Allocation, 1)
	assert.Equal(t, 60, tx.Allocation[0].Percentage)
	assert.Nil(t, tx.YieldEarned)

	st, err := l.State(ctx, alice)
	require.NoError(t, err)
	assert.True(t, st.TokenBalance.Equal(d("750")))
	assert.True(t, st.VaultShares.Equal(d("250")))
	assert.True(t, st.LastDepositAt.Equal(clk.Now()))

	seq, err := l.Transactions(ctx, alice, model.FilterAll)
	require.NoError(t, err)
	var n int
	for range seq {
		n++
	}
	assert.Equal(t, 1, n)
}

func TestWithdraw_OneSimulatedDayAtFivePercent(t *testing.T) {
	l, clk := newTestLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, alice, d("250"))
	require.NoError(t, err)

	// 24 real seconds at 3600x is one simulated day.
	clk.Advance(24 * time.Second)

	tx, err := l.Withdraw(ctx, alice, d("250"))
	require.NoError(t, err)
	require.NotNil(t, tx.YieldEarned)
	assert.InDelta(t, 0.0342, tx.YieldEarned.InexactFloat64(), 0.001)

	st, err := l.State(ctx, alice)
	require.NoError(t, err)
	assert.True(t, st.VaultShares.IsZero())
	assert.True(t, st.LastDepositAt.IsZero())
	assert.InDelta(t, 1000.0342, st.TokenBalance.InexactFloat64(), 0.001)
}

func TestWithdraw_ZeroElapsedRoundTrip(t *testing.T) {
	l, _ := newTestLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, alice, d("333.33"))
	require.NoError(t, err)

	tx, err := l.Withdraw(ctx, alice, d("333.33"))
	require.NoError(t, err)
	assert.True(t, tx.YieldEarned.IsZero())

	st, err := l.State(ctx, alice)
	require.NoError(t, err)
	assert.True(t, st.TokenBalance.Equal(d("1000")), "got %s", st.TokenBalance)
}

func TestWithdraw_PartialKeepsTimestamp(t *testing.T) {
	l, clk := newTestLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, alice, d("500"))
	require.NoError(t, err)
	depositedAt := clk.Now()

	clk.Advance(10 * time.Second)
	_, err = l.Withdraw(ctx, alice, d("100"))
	require.NoError(t, err)

	st, err := l.State(ctx, alice)
	require.NoError(t, err)
	assert.True(t, st.VaultShares.Equal(d("400")))
	assert.True(t, st.LastDepositAt.Equal(depositedAt))
	assert.True(t, st.TokenBalance.GreaterThan(d("600")))
}

func TestSequentialDeposits_AccrueFromLatest(t *testing.T) {
	l, clk := newTestLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)

	_, err = l.Deposit(ctx, alice, d("100"))
	require.NoError(t, err)
	clk.Advance(time.Hour)
	_, err = l.Deposit(ctx, alice, d("100"))
	require.NoError(t, err)

	// No time passes after the second deposit, so the first hour is not credited.
	tx, err := l.Withdraw(ctx, alice, d("200"))
	require.NoError(t, err)
	assert.True(t, tx.YieldEarned.IsZero(), "got %s", tx.YieldEarned)
}

func TestRejectedOperations_LeaveStateUnchanged(t *testing.T) {
	l, _ := newTestLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, alice, d("100"))
	require.NoError(t, err)

	before, err := l.State(ctx, alice)
	require.NoError(t, err)

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"deposit zero", func() error { _, err := l.Deposit(ctx, alice, decimal.Zero); return err }, ErrInvalidAmount},
		{"deposit negative", func() error { _, err := l.Deposit(ctx, alice, d("-1")); return err }, ErrInvalidAmount},
		{"deposit over balance", func() error { _, err := l.Deposit(ctx, alice, d("900.01")); return err }, ErrInsufficientBalance},
		{"withdraw zero", func() error { _, err := l.Withdraw(ctx, alice, decimal.Zero); return err }, ErrInvalidAmount},
		{"withdraw over shares", func() error { _, err := l.Withdraw(ctx, alice, d("100.5")); return err }, ErrInsufficientShares},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			after, err := l.State(ctx, alice)
			require.NoError(t, err)
			assert.True(t, before.TokenBalance.Equal(after.TokenBalance))
			assert.True(t, before.VaultShares.Equal(after.VaultShares))
			assert.True(t, before.LastDepositAt.Equal(after.LastDepositAt))
		})
	}

	seq, err := l.Transactions(ctx, alice, model.FilterAll)
	require.NoError(t, err)
	var n int
	for range seq {
		n++
	}
	assert.Equal(t, 1, n)
}

func TestCommitFailure_LeavesStateUnchanged(t *testing.T) {
	base := store.NewKVRepository(store.NewMemoryKV())
	ok, _ := newTestLedger(t, base, nil)
	ctx := context.Background()
	_, err := ok.Open(ctx, alice)
	require.NoError(t, err)

	l, _ := newTestLedger(t, failingRepo{base}, nil)
	_, err = l.Deposit(ctx, alice, d("10"))
	require.Error(t, err)

	st, err := base.Load(ctx, alice)
	require.NoError(t, err)
	assert.True(t, st.TokenBalance.Equal(d("1000")))
	txs, err := base.Transactions(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestRefreshDisplayedWorth_MonotonicAndReadOnly(t *testing.T) {
	l, clk := newTestLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, alice, d("250"))
	require.NoError(t, err)

	prev := d("250")
	for i := 0; i < 5; i++ {
		clk.Advance(5 * time.Second)
		w, err := l.RefreshDisplayedWorth(ctx, alice, clk.Now())
		require.NoError(t, err)
		assert.True(t, w.Value.GreaterThanOrEqual(prev), "worth decreased at tick %d", i)
		assert.True(t, w.Shares.Equal(d("250")))
		prev = w.Value
	}

	st, err := l.State(ctx, alice)
	require.NoError(t, err)
	assert.True(t, st.VaultShares.Equal(d("250")))
	assert.True(t, st.TokenBalance.Equal(d("750")))
}

func TestPreviewWithdraw(t *testing.T) {
	l, clk := newTestLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, alice, d("250"))
	require.NoError(t, err)
	clk.Advance(24 * time.Second)

	est, err := l.PreviewWithdraw(ctx, alice, d("250"), clk.Now())
	require.NoError(t, err)
	assert.InDelta(t, 250.0342, est.InexactFloat64(), 0.001)

	_, err = l.PreviewWithdraw(ctx, alice, d("251"), clk.Now())
	assert.ErrorIs(t, err, ErrInsufficientShares)

	tx, err := l.Withdraw(ctx, alice, d("250"))
	require.NoError(t, err)
	assert.True(t, est.Sub(d("250")).Equal(*tx.YieldEarned))
}

func TestRunawayAPY_ValuationSaturates(t *testing.T) {
	cat := strategy.NewCatalog([]model.Strategy{{Name: "Runaway", APY: 1e9, Risk: model.RiskHigh}})
	l, clk := newTestLedger(t, nil, cat)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, alice, d("250"))
	require.NoError(t, err)
	clk.Advance(time.Minute)

	capped := d("250").Mul(decimal.NewFromFloat(calculator.MaxGrowthFactor))

	var w model.Worth
	require.NotPanics(t, func() { w, err = l.RefreshDisplayedWorth(ctx, alice, clk.Now()) })
	require.NoError(t, err)
	assert.True(t, w.Value.Equal(capped), "got %s", w.Value)

	var est decimal.Decimal
	require.NotPanics(t, func() { est, err = l.PreviewWithdraw(ctx, alice, d("250"), clk.Now()) })
	require.NoError(t, err)
	assert.True(t, est.Equal(capped))

	var tx model.Transaction
	require.NotPanics(t, func() { tx, err = l.Withdraw(ctx, alice, d("250")) })
	require.NoError(t, err)
	assert.True(t, tx.YieldEarned.Equal(capped.Sub(d("250"))))
}

func TestTransactions_FilterNewestFirst(t *testing.T) {
	l, clk := newTestLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)

	_, err = l.Deposit(ctx, alice, d("100"))
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = l.Withdraw(ctx, alice, d("40"))
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = l.Deposit(ctx, alice, d("10"))
	require.NoError(t, err)

	collect := func(f model.TxFilter) []model.TxKind {
		seq, err := l.Transactions(ctx, alice, f)
		require.NoError(t, err)
		var kinds []model.TxKind
		for tx := range seq {
			kinds = append(kinds, tx.Kind)
		}
		return kinds
	}

	assert.Equal(t, []model.TxKind{model.TxDeposit, model.TxWithdraw, model.TxDeposit}, collect(model.FilterAll))
	assert.Equal(t, []model.TxKind{model.TxDeposit, model.TxDeposit}, collect(model.FilterDeposits))
	assert.Equal(t, []model.TxKind{model.TxWithdraw}, collect(model.FilterWithdrawals))

	// restartable
	seq, err := l.Transactions(ctx, alice, model.FilterAll)
	require.NoError(t, err)
	for range 2 {
		var n int
		for range seq {
			n++
		}
		assert.Equal(t, 3, n)
	}
}

func TestPerformance(t *testing.T) {
	l, clk := newTestLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)

	p, err := l.Performance(ctx, alice, clk.Now())
	require.NoError(t, err)
	assert.True(t, p.YieldPercent.IsZero())

	_, err = l.Deposit(ctx, alice, d("200"))
	require.NoError(t, err)
	clk.Advance(24 * time.Second)
	tx, err := l.Withdraw(ctx, alice, d("100"))
	require.NoError(t, err)

	p, err = l.Performance(ctx, alice, clk.Now())
	require.NoError(t, err)
	assert.True(t, p.TotalDeposited.Equal(d("200")))
	assert.True(t, p.TotalWithdrawn.Equal(d("100")))
	assert.True(t, p.NetDeposited.Equal(d("100")))
	assert.True(t, p.RealizedYield.Equal(*tx.YieldEarned))
	assert.True(t, p.CurrentValue.GreaterThan(d("100")))
	assert.True(t, p.YieldPercent.IsPositive())
}

func TestConcurrentDeposits_Serialized(t *testing.T) {
	l, _ := newTestLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Deposit(ctx, alice, d("10"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := l.State(ctx, alice)
	require.NoError(t, err)
	assert.True(t, st.TokenBalance.Equal(d("800")))
	assert.True(t, st.VaultShares.Equal(d("200")))
	assert.False(t, st.TokenBalance.IsNegative())
}

type countingObserver struct {
	deposits, withdrawals, failures int
}

func (o *countingObserver) Deposited(decimal.Decimal)     { o.deposits++ }
func (o *countingObserver) Withdrew(_, _ decimal.Decimal) { o.withdrawals++ }
func (o *countingObserver) Failed(string, error)          { o.failures++ }

func TestObserver(t *testing.T) {
	obs := &countingObserver{}
	repo := store.NewKVRepository(store.NewMemoryKV())
	l := NewLedger(repo, fivePercent(), WithObserver(obs))
	ctx := context.Background()
	_, err := l.Open(ctx, alice)
	require.NoError(t, err)

	_, err = l.Deposit(ctx, alice, d("10"))
	require.NoError(t, err)
	_, err = l.Withdraw(ctx, alice, d("10"))
	require.NoError(t, err)
	_, err = l.Withdraw(ctx, alice, d("10"))
	require.Error(t, err)

	assert.Equal(t, 1, obs.deposits)
	assert.Equal(t, 1, obs.withdrawals)
	assert.Equal(t, 1, obs.failures)
}
