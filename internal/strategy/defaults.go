package strategy

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"YieldHarbor/internal/model"
)

// Defaults returns the seed catalog used when no source is configured or the source fails.
func Defaults() []model.Strategy {
	return []model.Strategy{
		seed("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0", "AlphaStaker ETH", "stETH", 5.25, 150000, model.RiskMedium),
		seed("0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9", "BetaLender USDC", "USDC", 3.75, 250000, model.RiskLow),
		seed("0x0000000000000000000000000000000000000003", "GammaPool BTC", "WBTC", 4.50, 100000, model.RiskMediumHigh),
		seed("0x0000000000000000000000000000000000000004", "DeltaYield USDT", "USDT", 6.10, 300000, model.RiskHigh),
	}
}

func seed(address, name, symbol string, apy float64, tvl int64, risk model.RiskTier) model.Strategy {
	return model.Strategy{
		ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(address)).String(),
		Address:     address,
		Name:        name,
		AssetSymbol: symbol,
		Asset:       model.AssetKindOf(symbol),
		APY:         apy,
		TVL:         decimal.NewFromInt(tvl),
		Risk:        risk,
	}
}
