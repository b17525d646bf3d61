package session

import "github.com/cockroachdb/errors"

var (
	ErrIdentityNotConnected = errors.New("identity not connected")
	ErrInvalidIdentity      = errors.New("invalid identity")
	ErrOperationInProgress  = errors.New("another operation is in progress")
	ErrSimulationOnly       = errors.New("only available in simulated mode")
)
