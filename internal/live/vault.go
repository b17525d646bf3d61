package live

import (
	"context"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"YieldHarbor/internal/fund"
)

// Position is an owner's live holdings.
type Position struct {
	TokenBalance  decimal.Decimal `json:"token_balance"`
	Shares        decimal.Decimal `json:"shares"`
	PricePerShare decimal.Decimal `json:"price_per_share"`
	Value         decimal.Decimal `json:"value"`
	TotalAssets   decimal.Decimal `json:"total_assets"`
}

// Receipt lists the transaction hashes one operation submitted, approval first.
type Receipt struct {
	Hashes []string `json:"hashes"`
}

// Vault drives deposit and withdraw flows against a Provider.
type Vault struct {
	p Provider
}

func NewVault(p Provider) *Vault {
	return &Vault{p: p}
}

// Position reads the owner's balance, shares and their current value.
func (v *Vault) Position(ctx context.Context, owner common.Address) (Position, error) {
	var (
		pos Position
		err error
	)
	if pos.TokenBalance, err = v.p.TokenBalance(ctx, owner); err != nil {
		return Position{}, fail(err)
	}
	if pos.Shares, err = v.p.Shares(ctx, owner); err != nil {
		return Position{}, fail(err)
	}
	if pos.PricePerShare, err = v.p.PricePerShare(ctx); err != nil {
		return Position{}, fail(err)
	}
	if pos.TotalAssets, err = v.p.TotalAssets(ctx); err != nil {
		return Position{}, fail(err)
	}
	pos.Value = pos.Shares.Mul(pos.PricePerShare)
	return pos, nil
}

// Deposit approves the vault when the allowance is short, then deposits amount.
func (v *Vault) Deposit(ctx context.Context, owner common.Address, amount decimal.Decimal) (Receipt, error) {
	if !amount.IsPositive() {
		return Receipt{}, errors.Wrapf(fund.ErrInvalidAmount, "deposit %s", amount)
	}
	bal, err := v.p.TokenBalance(ctx, owner)
	if err != nil {
		return Receipt{}, fail(err)
	}
	if amount.GreaterThan(bal) {
		return Receipt{}, errors.Wrapf(fund.ErrInsufficientBalance, "deposit %s with balance %s", amount, bal)
	}

	var r Receipt
	allowance, err := v.p.Allowance(ctx, owner)
	if err != nil {
		return Receipt{}, fail(err)
	}
	if allowance.LessThan(amount) {
		hash, err := v.p.Approve(ctx, owner, amount)
		if err != nil {
			return Receipt{}, fail(err)
		}
		log.Printf("[INFO] live approve %s for %s: %s", amount, owner.Hex(), hash)
		r.Hashes = append(r.Hashes, hash)
	}

	hash, err := v.p.Deposit(ctx, owner, amount)
	if err != nil {
		return r, fail(err)
	}
	log.Printf("[INFO] live deposit %s for %s: %s", amount, owner.Hex(), hash)
	r.Hashes = append(r.Hashes, hash)
	return r, nil
}

// Withdraw redeems shares.
func (v *Vault) Withdraw(ctx context.Context, owner common.Address, shares decimal.Decimal) (Receipt, error) {
	if !shares.IsPositive() {
		return Receipt{}, errors.Wrapf(fund.ErrInvalidAmount, "withdraw %s", shares)
	}
	held, err := v.p.Shares(ctx, owner)
	if err != nil {
		return Receipt{}, fail(err)
	}
	if shares.GreaterThan(held) {
		return Receipt{}, errors.Wrapf(fund.ErrInsufficientShares, "withdraw %s with %s held", shares, held)
	}
	hash, err := v.p.Withdraw(ctx, owner, shares)
	if err != nil {
		return Receipt{}, fail(err)
	}
	log.Printf("[INFO] live withdraw %s for %s: %s", shares, owner.Hex(), hash)
	return Receipt{Hashes: []string{hash}}, nil
}
