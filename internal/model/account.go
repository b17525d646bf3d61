package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountState is the simulated ledger position held for one identity.
type AccountState struct {
	TokenBalance                 decimal.Decimal `json:"token_balance"`
	VaultShares                  decimal.Decimal `json:"vault_shares"`
	LastDepositAt                time.Time       `json:"last_deposit_at"`
	HasReceivedInitialAllocation bool            `json:"has_received_initial_allocation"`
}

// Worth is the non-authoritative display value of a position at a point in time.
type Worth struct {
	Account    string          `json:"account"`
	Shares     decimal.Decimal `json:"shares"`
	Value      decimal.Decimal `json:"value"`
	Yield      decimal.Decimal `json:"yield"`
	ComputedAt time.Time       `json:"computed_at"`
}

// Performance summarizes a portfolio from its transaction history.
type Performance struct {
	TotalDeposited decimal.Decimal `json:"total_deposited"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	RealizedYield  decimal.Decimal `json:"realized_yield"`
	NetDeposited   decimal.Decimal `json:"net_deposited"`
	CurrentValue   decimal.Decimal `json:"current_value"`
	TotalYield     decimal.Decimal `json:"total_yield"`
	YieldPercent   decimal.Decimal `json:"yield_percent"`
}
