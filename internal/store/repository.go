package store

import (
	"context"

	"YieldHarbor/internal/model"
)

// Repository persists per-identity ledger state and history.
type Repository interface {
	// Load returns the stored state, zero-valued if the identity was never seen.
	Load(ctx context.Context, id string) (model.AccountState, error)
	Save(ctx context.Context, id string, state model.AccountState) error
	AppendTransaction(ctx context.Context, id string, tx model.Transaction) error
	// Transactions returns the history newest first.
	Transactions(ctx context.Context, id string) ([]model.Transaction, error)
	// Commit saves state and appends tx as one atomic write.
	Commit(ctx context.Context, id string, state model.AccountState, tx model.Transaction) error
}

// KV is the flat key/value surface every backend provides.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Apply writes puts and removes dels atomically.
	Apply(ctx context.Context, puts map[string]string, dels []string) error
	Close() error
}
