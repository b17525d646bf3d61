package live

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldHarbor/internal/fund"
)

var owner = common.HexToAddress("0x00000000000000000000000000000000000b0b00")

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// countingProvider records how often Approve is called.
type countingProvider struct {
	*MemoryProvider
	approvals int
}

func (c *countingProvider) Approve(ctx context.Context, o common.Address, amount decimal.Decimal) (string, error) {
	c.approvals++
	return c.MemoryProvider.Approve(ctx, o, amount)
}

func TestDeposit_ApprovesOnlyWhenShort(t *testing.T) {
	p := &countingProvider{MemoryProvider: NewMemoryProvider(d("1000"), d("1"))}
	v := NewVault(p)
	ctx := context.Background()

	r, err := v.Deposit(ctx, owner, d("100"))
	require.NoError(t, err)
	assert.Len(t, r.Hashes, 2)
	assert.Equal(t, 1, p.approvals)

	_, err = p.Approve(ctx, owner, d("500"))
	require.NoError(t, err)
	r, err = v.Deposit(ctx, owner, d("100"))
	require.NoError(t, err)
	assert.Len(t, r.Hashes, 1)
	assert.Equal(t, 2, p.approvals)

	pos, err := v.Position(ctx, owner)
	require.NoError(t, err)
	assert.True(t, pos.TokenBalance.Equal(d("800")))
	assert.True(t, pos.Shares.Equal(d("200")))
}

func TestPosition_ValueUsesPricePerShare(t *testing.T) {
	p := NewMemoryProvider(d("1000"), d("1"))
	v := NewVault(p)
	ctx := context.Background()

	_, err := v.Deposit(ctx, owner, d("100"))
	require.NoError(t, err)
	p.SetPricePerShare(d("1.05"))

	pos, err := v.Position(ctx, owner)
	require.NoError(t, err)
	assert.True(t, pos.Value.Equal(d("105")), "got %s", pos.Value)
	assert.True(t, pos.TotalAssets.Equal(d("105")))

	_, err = v.Withdraw(ctx, owner, d("100"))
	require.NoError(t, err)
	pos, err = v.Position(ctx, owner)
	require.NoError(t, err)
	assert.True(t, pos.TokenBalance.Equal(d("1005")))
}

func TestValidation(t *testing.T) {
	v := NewVault(NewMemoryProvider(d("10"), d("1")))
	ctx := context.Background()

	_, err := v.Deposit(ctx, owner, decimal.Zero)
	assert.ErrorIs(t, err, fund.ErrInvalidAmount)
	_, err = v.Deposit(ctx, owner, d("11"))
	assert.ErrorIs(t, err, fund.ErrInsufficientBalance)
	_, err = v.Withdraw(ctx, owner, d("1"))
	assert.ErrorIs(t, err, fund.ErrInsufficientShares)
}

func TestProviderFailure_KeepsMessage(t *testing.T) {
	p := NewMemoryProvider(d("10"), d("1"))
	v := NewVault(p)
	p.FailWith(errors.New("execution reverted: paused"))

	_, err := v.Deposit(context.Background(), owner, d("1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollaboratorFailure))
	assert.Equal(t, "execution reverted: paused", err.Error())

	_, err = v.Position(context.Background(), owner)
	assert.True(t, errors.Is(err, ErrCollaboratorFailure))
}
