package calculator

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PerSecondRate converts an annual percentage yield into a per-simulated-second rate.
func PerSecondRate(apyPercent float64) float64 {
	return apyPercent / 100 / SecondsPerYear
}

// MaxGrowthFactor caps compounding so long-idle or high-APY positions stay representable.
const MaxGrowthFactor = 1e12

// GrowthFactor returns (1 + rate)^elapsed for a per-second rate, saturating at
// MaxGrowthFactor. Non-positive or NaN inputs give 1.
func GrowthFactor(rate, elapsed float64) float64 {
	if !(elapsed > 0) || !(rate > 0) {
		return 1
	}
	// exp(t*log1p(r)) keeps precision where 1+r rounds badly in float64.
	f := math.Exp(elapsed * math.Log1p(rate))
	if math.IsNaN(f) {
		return 1
	}
	if f > MaxGrowthFactor {
		return MaxGrowthFactor
	}
	return f
}

// Accrual values positions under compounding on an accelerated clock.
type Accrual struct {
	Acceleration float64
}

// NewAccrual returns an Accrual, defaulting a non-positive acceleration to DefaultAcceleration.
func NewAccrual(acceleration float64) Accrual {
	if acceleration <= 0 {
		acceleration = DefaultAcceleration
	}
	return Accrual{Acceleration: acceleration}
}

// Worth returns principal compounded from since to now at the given average APY.
// A non-positive principal or an unset since returns principal unchanged.
func (a Accrual) Worth(principal decimal.Decimal, since, now time.Time, averageAPY float64) decimal.Decimal {
	if !principal.IsPositive() || since.IsZero() {
		return principal
	}
	t := ElapsedSimulated(now, since, a.Acceleration)
	factor := GrowthFactor(PerSecondRate(averageAPY), t)
	if factor == 1 {
		return principal
	}
	return principal.Mul(decimal.NewFromFloat(factor))
}
