package model

// Mode selects which ledger a session reads and writes.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeLive      Mode = "live"
)

// Toggled returns the other mode.
func (m Mode) Toggled() Mode {
	if m == ModeLive {
		return ModeSimulated
	}
	return ModeLive
}
