package live

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryProvider is an in-process Provider for local runs and tests.
type MemoryProvider struct {
	mu        sync.Mutex
	seed      decimal.Decimal
	pps       decimal.Decimal
	balances  map[common.Address]decimal.Decimal
	shares    map[common.Address]decimal.Decimal
	allowance map[common.Address]decimal.Decimal
	seen      map[common.Address]bool
	failure   error
}

// NewMemoryProvider seeds every new owner with seed tokens and values shares at pricePerShare.
func NewMemoryProvider(seed, pricePerShare decimal.Decimal) *MemoryProvider {
	if !pricePerShare.IsPositive() {
		pricePerShare = decimal.NewFromInt(1)
	}
	return &MemoryProvider{
		seed:      seed,
		pps:       pricePerShare,
		balances:  map[common.Address]decimal.Decimal{},
		shares:    map[common.Address]decimal.Decimal{},
		allowance: map[common.Address]decimal.Decimal{},
		seen:      map[common.Address]bool{},
	}
}

// FailWith makes every subsequent call return err. A nil err clears it.
func (m *MemoryProvider) FailWith(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()
}

// SetPricePerShare changes the share price.
func (m *MemoryProvider) SetPricePerShare(pps decimal.Decimal) {
	m.mu.Lock()
	m.pps = pps
	m.mu.Unlock()
}

func (m *MemoryProvider) touch(owner common.Address) {
	if !m.seen[owner] {
		m.seen[owner] = true
		m.balances[owner] = m.seed
	}
}

func (m *MemoryProvider) TokenBalance(_ context.Context, owner common.Address) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return decimal.Zero, m.failure
	}
	m.touch(owner)
	return m.balances[owner], nil
}

func (m *MemoryProvider) Shares(_ context.Context, owner common.Address) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return decimal.Zero, m.failure
	}
	return m.shares[owner], nil
}

func (m *MemoryProvider) TotalAssets(context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return decimal.Zero, m.failure
	}
	total := decimal.Zero
	for _, s := range m.shares {
		total = total.Add(s)
	}
	return total.Mul(m.pps), nil
}

func (m *MemoryProvider) PricePerShare(context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return decimal.Zero, m.failure
	}
	return m.pps, nil
}

func (m *MemoryProvider) Allowance(_ context.Context, owner common.Address) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return decimal.Zero, m.failure
	}
	return m.allowance[owner], nil
}

func (m *MemoryProvider) Approve(_ context.Context, owner common.Address, amount decimal.Decimal) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return "", m.failure
	}
	m.allowance[owner] = amount
	return txHash(), nil
}

func (m *MemoryProvider) Deposit(_ context.Context, owner common.Address, amount decimal.Decimal) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return "", m.failure
	}
	m.touch(owner)
	if m.allowance[owner].LessThan(amount) {
		return "", errors.New("ERC20: insufficient allowance")
	}
	if m.balances[owner].LessThan(amount) {
		return "", errors.New("ERC20: transfer amount exceeds balance")
	}
	m.allowance[owner] = m.allowance[owner].Sub(amount)
	m.balances[owner] = m.balances[owner].Sub(amount)
	m.shares[owner] = m.shares[owner].Add(amount.DivRound(m.pps, 18))
	return txHash(), nil
}

func (m *MemoryProvider) Withdraw(_ context.Context, owner common.Address, shares decimal.Decimal) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return "", m.failure
	}
	if m.shares[owner].LessThan(shares) {
		return "", errors.New("vault: burn amount exceeds balance")
	}
	m.shares[owner] = m.shares[owner].Sub(shares)
	m.balances[owner] = m.balances[owner].Add(shares.Mul(m.pps))
	return txHash(), nil
}

func txHash() string {
	id := uuid.New()
	return common.BytesToHash(append(id[:], id[:]...)).Hex()
}
