// Package live reaches the on-chain vault through an injected Provider.
package live

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ErrCollaboratorFailure marks errors returned by the live provider. The provider's
// message is kept verbatim.
var ErrCollaboratorFailure = errors.New("live provider failure")

// Provider is the read/write surface of the deployed vault and its underlying token.
type Provider interface {
	TokenBalance(ctx context.Context, owner common.Address) (decimal.Decimal, error)
	Shares(ctx context.Context, owner common.Address) (decimal.Decimal, error)
	TotalAssets(ctx context.Context) (decimal.Decimal, error)
	PricePerShare(ctx context.Context) (decimal.Decimal, error)
	Allowance(ctx context.Context, owner common.Address) (decimal.Decimal, error)
	// Approve, Deposit and Withdraw return the submitted transaction hash.
	Approve(ctx context.Context, owner common.Address, amount decimal.Decimal) (string, error)
	Deposit(ctx context.Context, owner common.Address, amount decimal.Decimal) (string, error)
	Withdraw(ctx context.Context, owner common.Address, shares decimal.Decimal) (string, error)
}

func fail(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrCollaboratorFailure)
}
