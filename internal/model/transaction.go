package model

import "github.com/shopspring/decimal"

// TxKind is the direction of a ledger entry.
type TxKind string

const (
	TxDeposit  TxKind = "deposit"
	TxWithdraw TxKind = "withdraw"
)

// TxFilter selects which entries a ledger listing yields.
type TxFilter string

const (
	FilterAll         TxFilter = "all"
	FilterDeposits    TxFilter = "deposits"
	FilterWithdrawals TxFilter = "withdrawals"
)

// Match reports whether a transaction passes the filter. Unknown filters match everything.
func (f TxFilter) Match(tx Transaction) bool {
	switch f {
	case FilterDeposits:
		return tx.Kind == TxDeposit
	case FilterWithdrawals:
		return tx.Kind == TxWithdraw
	default:
		return true
	}
}

// AllocationSlice is one strategy's share of an allocation snapshot.
type AllocationSlice struct {
	Name       string  `json:"name"`
	Percentage int     `json:"percentage"`
	APY        float64 `json:"apy"`
	IsPrimary  bool    `json:"isPrimary,omitempty"`
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID              string            `json:"id"`
	Kind            TxKind            `json:"type"`
	Amount          decimal.Decimal   `json:"amount"`
	Timestamp       int64             `json:"timestamp"` // ms since epoch
	PrimaryStrategy string            `json:"primaryStrategy"`
	Allocation      []AllocationSlice `json:"strategies"`
	YieldEarned     *decimal.Decimal  `json:"yieldEarned,omitempty"`
}
