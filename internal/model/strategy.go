package model

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// MaxAPY is the highest accepted strategy APY, in percent.
const MaxAPY = 1000.0

// ErrInvalidStrategy is returned when strategy fields fail validation.
var ErrInvalidStrategy = errors.New("invalid strategy")

// AssetKind is the closed set of asset families a strategy can hold.
type AssetKind int

const (
	AssetOther AssetKind = iota
	AssetEther
	AssetStable
	AssetBitcoin
)

var assetKinds = map[string]AssetKind{
	"ETH":   AssetEther,
	"STETH": AssetEther,
	"WETH":  AssetEther,
	"USDC":  AssetStable,
	"USDT":  AssetStable,
	"DAI":   AssetStable,
	"WBTC":  AssetBitcoin,
	"BTC":   AssetBitcoin,
}

// AssetKindOf resolves a token symbol to its asset family, falling back to AssetOther.
func AssetKindOf(symbol string) AssetKind {
	if k, ok := assetKinds[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return k
	}
	return AssetOther
}

func (k AssetKind) String() string {
	switch k {
	case AssetEther:
		return "ether"
	case AssetStable:
		return "stable"
	case AssetBitcoin:
		return "bitcoin"
	default:
		return "other"
	}
}

func (k AssetKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *AssetKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ether":
		*k = AssetEther
	case "stable":
		*k = AssetStable
	case "bitcoin":
		*k = AssetBitcoin
	default:
		*k = AssetOther
	}
	return nil
}

// RiskTier grades a strategy's risk.
type RiskTier string

const (
	RiskLow        RiskTier = "Low"
	RiskMedium     RiskTier = "Medium"
	RiskMediumHigh RiskTier = "Medium-High"
	RiskHigh       RiskTier = "High"
)

// Score maps the tier onto a 0-100 gauge.
func (r RiskTier) Score() int {
	switch r {
	case RiskLow:
		return 25
	case RiskMedium:
		return 50
	case RiskMediumHigh:
		return 75
	default:
		return 90
	}
}

// Valid reports whether r is one of the known tiers.
func (r RiskTier) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskMediumHigh, RiskHigh:
		return true
	}
	return false
}

// Strategy is one yield strategy in the catalog.
type Strategy struct {
	ID          string          `json:"id"`
	Address     string          `json:"address"`
	Name        string          `json:"name"`
	AssetSymbol string          `json:"assetSymbol"`
	Asset       AssetKind       `json:"asset"`
	APY         float64         `json:"apy"` // percent, 5.25 means 5.25%
	TVL         decimal.Decimal `json:"tvl"`
	Risk        RiskTier        `json:"risk"`
}

// MarshalJSON adds the derived riskScore.
func (s Strategy) MarshalJSON() ([]byte, error) {
	type plain Strategy
	return json.Marshal(struct {
		plain
		RiskScore int `json:"riskScore"`
	}{plain(s), s.Risk.Score()})
}

// CheckStrategy applies the field rules shared by user candidates and registry rows.
func CheckStrategy(name, symbol string, apy float64, tvl decimal.Decimal, risk RiskTier) error {
	if name == "" {
		return errors.Wrap(ErrInvalidStrategy, "name is required")
	}
	if symbol == "" {
		return errors.Wrap(ErrInvalidStrategy, "token symbol is required")
	}
	if !(apy > 0 && apy <= MaxAPY) {
		return errors.Wrapf(ErrInvalidStrategy, "apy must be in (0, %v], got %v", MaxAPY, apy)
	}
	if !tvl.IsPositive() {
		return errors.Wrapf(ErrInvalidStrategy, "tvl must be positive, got %s", tvl)
	}
	if !risk.Valid() {
		return errors.Wrapf(ErrInvalidStrategy, "unknown risk level %q", risk)
	}
	return nil
}
