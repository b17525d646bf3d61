package calculator

import "time"

// DefaultAcceleration maps one wall-clock second to one simulated hour.
const DefaultAcceleration = 3600

// SecondsPerYear is the simulated-time denominator for per-second rates.
const SecondsPerYear = 365 * 24 * 60 * 60

// ElapsedSimulated returns the simulated seconds between since and now.
// A zero since means no position is open and yields zero.
func ElapsedSimulated(now, since time.Time, acceleration float64) float64 {
	if since.IsZero() {
		return 0
	}
	d := now.Sub(since)
	if d <= 0 {
		return 0
	}
	return d.Seconds() * acceleration
}
