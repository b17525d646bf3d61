package fund

import (
	"context"
	"iter"
	"log"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"YieldHarbor/internal/calculator"
	"YieldHarbor/internal/model"
	"YieldHarbor/internal/store"
)

// DefaultInitialGrant is the one-time token balance given to a new identity.
var DefaultInitialGrant = decimal.NewFromInt(1000)

// Catalog is the slice of the strategy catalog the ledger reads.
type Catalog interface {
	AverageAPY() float64
	Primary() model.Strategy
	Allocation() []model.AllocationSlice
}

// Observer receives ledger outcomes, typically for metrics.
type Observer interface {
	Deposited(amount decimal.Decimal)
	Withdrew(shares, yield decimal.Decimal)
	Failed(op string, err error)
}

// Ledger applies deposit and withdraw transitions to simulated accounts.
// Operations on one identity are serialized; different identities never contend.
type Ledger struct {
	repo     store.Repository
	catalog  Catalog
	accrual  calculator.Accrual
	grant    decimal.Decimal
	now      func() time.Time
	observer Observer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithInitialGrant overrides the one-time starting balance.
func WithInitialGrant(d decimal.Decimal) Option { return func(l *Ledger) { l.grant = d } }

// WithAcceleration overrides the simulated clock multiplier.
func WithAcceleration(a float64) Option {
	return func(l *Ledger) { l.accrual = calculator.NewAccrual(a) }
}

// WithObserver attaches an outcome observer.
func WithObserver(o Observer) Option { return func(l *Ledger) { l.observer = o } }

// NewLedger creates a Ledger over a repository and catalog.
func NewLedger(repo store.Repository, catalog Catalog, opts ...Option) *Ledger {
	l := &Ledger{
		repo:    repo,
		catalog: catalog,
		accrual: calculator.NewAccrual(calculator.DefaultAcceleration),
		grant:   DefaultInitialGrant,
		now:     time.Now,
		locks:   map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (l *Ledger) clock() time.Time {
	// persisted timestamps carry millisecond precision
	return l.now().Truncate(time.Millisecond)
}

// Open loads an identity's state, applying the one-time initial grant on first sight.
func (l *Ledger) Open(ctx context.Context, id string) (model.AccountState, error) {
	defer l.lock(id)()

	st, err := l.repo.Load(ctx, id)
	if err != nil {
		return model.AccountState{}, errors.Wrapf(err, "load %s", id)
	}
	if st.HasReceivedInitialAllocation {
		return st, nil
	}
	st.TokenBalance = st.TokenBalance.Add(l.grant)
	st.HasReceivedInitialAllocation = true
	if err := l.repo.Save(ctx, id, st); err != nil {
		return model.AccountState{}, errors.Wrapf(err, "save initial grant for %s", id)
	}
	log.Printf("[INFO] granted %s tokens to new identity %s", l.grant, id)
	return st, nil
}

// State returns the persisted state for an identity.
func (l *Ledger) State(ctx context.Context, id string) (model.AccountState, error) {
	defer l.lock(id)()
	return l.repo.Load(ctx, id)
}

// Deposit moves amount from the token balance into vault shares.
func (l *Ledger) Deposit(ctx context.Context, id string, amount decimal.Decimal) (model.Transaction, error) {
	tx, err := l.deposit(ctx, id, amount)
	if err != nil {
		l.failed("deposit", err)
		return model.Transaction{}, err
	}
	if l.observer != nil {
		l.observer.Deposited(amount)
	}
	return tx, nil
}

func (l *Ledger) deposit(ctx context.Context, id string, amount decimal.Decimal) (model.Transaction, error) {
	if !amount.IsPositive() {
		return model.Transaction{}, errors.Wrapf(ErrInvalidAmount, "deposit %s", amount)
	}
	defer l.lock(id)()

	st, err := l.repo.Load(ctx, id)
	if err != nil {
		return model.Transaction{}, errors.Wrapf(err, "load %s", id)
	}
	if amount.GreaterThan(st.TokenBalance) {
		return model.Transaction{}, errors.Wrapf(ErrInsufficientBalance, "deposit %s with balance %s", amount, st.TokenBalance)
	}

	now := l.clock()
	st.TokenBalance = st.TokenBalance.Sub(amount)
	st.VaultShares = st.VaultShares.Add(amount)
	// Later deposits restart the accrual clock for the whole position.
	st.LastDepositAt = now

	tx := l.newTransaction(model.TxDeposit, amount, now)
	if err := l.repo.Commit(ctx, id, st, tx); err != nil {
		return model.Transaction{}, err
	}
	return tx, nil
}

// Withdraw redeems shares, crediting principal plus accrued yield to the token balance.
// Yield is computed as if the withdrawn shares had been deposited at LastDepositAt.
func (l *Ledger) Withdraw(ctx context.Context, id string, shares decimal.Decimal) (model.Transaction, error) {
	tx, err := l.withdraw(ctx, id, shares)
	if err != nil {
		l.failed("withdraw", err)
		return model.Transaction{}, err
	}
	if l.observer != nil {
		l.observer.Withdrew(shares, *tx.YieldEarned)
	}
	return tx, nil
}

func (l *Ledger) withdraw(ctx context.Context, id string, shares decimal.Decimal) (model.Transaction, error) {
	if !shares.IsPositive() {
		return model.Transaction{}, errors.Wrapf(ErrInvalidAmount, "withdraw %s", shares)
	}
	defer l.lock(id)()

	st, err := l.repo.Load(ctx, id)
	if err != nil {
		return model.Transaction{}, errors.Wrapf(err, "load %s", id)
	}
	if shares.GreaterThan(st.VaultShares) {
		return model.Transaction{}, errors.Wrapf(ErrInsufficientShares, "withdraw %s with %s held", shares, st.VaultShares)
	}

	now := l.clock()
	payout := l.accrual.Worth(shares, st.LastDepositAt, now, l.catalog.AverageAPY())
	earned := payout.Sub(shares)

	st.VaultShares = st.VaultShares.Sub(shares)
	st.TokenBalance = st.TokenBalance.Add(payout)
	if st.VaultShares.IsZero() {
		st.LastDepositAt = time.Time{}
	}

	tx := l.newTransaction(model.TxWithdraw, shares, now)
	tx.YieldEarned = &earned
	if err := l.repo.Commit(ctx, id, st, tx); err != nil {
		return model.Transaction{}, err
	}
	return tx, nil
}

// PreviewWithdraw estimates the payout for redeeming shares at now without mutating anything.
func (l *Ledger) PreviewWithdraw(ctx context.Context, id string, shares decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !shares.IsPositive() {
		return decimal.Zero, errors.Wrapf(ErrInvalidAmount, "preview %s", shares)
	}
	st, err := l.State(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if shares.GreaterThan(st.VaultShares) {
		return decimal.Zero, errors.Wrapf(ErrInsufficientShares, "preview %s with %s held", shares, st.VaultShares)
	}
	return l.accrual.Worth(shares, st.LastDepositAt, now, l.catalog.AverageAPY()), nil
}

// RefreshDisplayedWorth values the whole position at now. It never mutates state.
func (l *Ledger) RefreshDisplayedWorth(ctx context.Context, id string, now time.Time) (model.Worth, error) {
	st, err := l.State(ctx, id)
	if err != nil {
		return model.Worth{}, err
	}
	value := l.accrual.Worth(st.VaultShares, st.LastDepositAt, now, l.catalog.AverageAPY())
	return model.Worth{
		Account:    id,
		Shares:     st.VaultShares,
		Value:      value,
		Yield:      value.Sub(st.VaultShares),
		ComputedAt: now,
	}, nil
}

// Transactions returns a restartable newest-first sequence over the identity's history.
func (l *Ledger) Transactions(ctx context.Context, id string, filter model.TxFilter) (iter.Seq[model.Transaction], error) {
	txs, err := l.repo.Transactions(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "load transactions for %s", id)
	}
	return func(yield func(model.Transaction) bool) {
		for _, tx := range txs {
			if !filter.Match(tx) {
				continue
			}
			if !yield(tx) {
				return
			}
		}
	}, nil
}

// Performance summarizes deposits, withdrawals and yield for an identity at now.
func (l *Ledger) Performance(ctx context.Context, id string, now time.Time) (model.Performance, error) {
	seq, err := l.Transactions(ctx, id, model.FilterAll)
	if err != nil {
		return model.Performance{}, err
	}
	var p model.Performance
	for tx := range seq {
		switch tx.Kind {
		case model.TxDeposit:
			p.TotalDeposited = p.TotalDeposited.Add(tx.Amount)
		case model.TxWithdraw:
			p.TotalWithdrawn = p.TotalWithdrawn.Add(tx.Amount)
			if tx.YieldEarned != nil {
				p.RealizedYield = p.RealizedYield.Add(*tx.YieldEarned)
			}
		}
	}

	w, err := l.RefreshDisplayedWorth(ctx, id, now)
	if err != nil {
		return model.Performance{}, err
	}
	p.CurrentValue = w.Value
	p.NetDeposited = p.TotalDeposited.Sub(p.TotalWithdrawn)
	p.TotalYield = p.CurrentValue.Sub(p.NetDeposited).Add(p.RealizedYield)
	if p.NetDeposited.IsPositive() {
		p.YieldPercent = p.CurrentValue.Sub(p.NetDeposited).Div(p.NetDeposited).Mul(decimal.NewFromInt(100))
	}
	return p, nil
}

func (l *Ledger) newTransaction(kind model.TxKind, amount decimal.Decimal, now time.Time) model.Transaction {
	return model.Transaction{
		ID:              "tx-" + uuid.NewString(),
		Kind:            kind,
		Amount:          amount,
		Timestamp:       now.UnixMilli(),
		PrimaryStrategy: l.catalog.Primary().Name,
		Allocation:      l.catalog.Allocation(),
	}
}

func (l *Ledger) failed(op string, err error) {
	if l.observer != nil {
		l.observer.Failed(op, err)
	}
	if !errors.Is(err, ErrInvalidAmount) && !errors.Is(err, ErrInsufficientBalance) && !errors.Is(err, ErrInsufficientShares) {
		log.Printf("[ERROR] %s failed: %v", op, err)
	}
}
