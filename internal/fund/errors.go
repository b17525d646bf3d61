package fund

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidAmount is returned for non-positive or unparsable amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientBalance is returned when a deposit exceeds the token balance.
	ErrInsufficientBalance = errors.New("insufficient token balance")
	// ErrInsufficientShares is returned when a withdrawal exceeds the held shares.
	ErrInsufficientShares = errors.New("insufficient vault shares")
)
