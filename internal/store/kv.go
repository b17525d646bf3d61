package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"YieldHarbor/internal/model"
)

const (
	keyTokenBalance     = "tokenBalance:"
	keyVaultShares      = "vaultShares:"
	keyLastDeposit      = "lastDepositTimestamp:"
	keyInitialAlloc     = "hasReceivedInitialAllocation:"
	keyTransactions     = "transactions:"
	keyCustomStrategies = "customStrategies"
)

// KVRepository lays account state out over a KV backend, one key per field.
type KVRepository struct {
	kv KV
}

// NewKVRepository wraps a backend.
func NewKVRepository(kv KV) *KVRepository {
	return &KVRepository{kv: kv}
}

// Close closes the underlying backend.
func (r *KVRepository) Close() error { return r.kv.Close() }

func (r *KVRepository) Load(ctx context.Context, id string) (model.AccountState, error) {
	var st model.AccountState
	var err error

	if st.TokenBalance, err = r.getDecimal(ctx, keyTokenBalance+id); err != nil {
		return model.AccountState{}, err
	}
	if st.VaultShares, err = r.getDecimal(ctx, keyVaultShares+id); err != nil {
		return model.AccountState{}, err
	}

	v, ok, err := r.kv.Get(ctx, keyLastDeposit+id)
	if err != nil {
		return model.AccountState{}, errors.Wrapf(err, "get %s", keyLastDeposit+id)
	}
	if ok && v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return model.AccountState{}, errors.Wrapf(err, "parse %s", keyLastDeposit+id)
		}
		st.LastDepositAt = time.UnixMilli(ms)
	}

	v, ok, err = r.kv.Get(ctx, keyInitialAlloc+id)
	if err != nil {
		return model.AccountState{}, errors.Wrapf(err, "get %s", keyInitialAlloc+id)
	}
	if ok {
		st.HasReceivedInitialAllocation, _ = strconv.ParseBool(v)
	}
	return st, nil
}

func (r *KVRepository) Save(ctx context.Context, id string, state model.AccountState) error {
	puts, dels := stateWrites(id, state)
	return errors.Wrapf(r.kv.Apply(ctx, puts, dels), "save state for %s", id)
}

func (r *KVRepository) AppendTransaction(ctx context.Context, id string, tx model.Transaction) error {
	encoded, err := r.prepend(ctx, id, tx)
	if err != nil {
		return err
	}
	return errors.Wrapf(r.kv.Apply(ctx, map[string]string{keyTransactions + id: encoded}, nil), "append transaction for %s", id)
}

func (r *KVRepository) Commit(ctx context.Context, id string, state model.AccountState, tx model.Transaction) error {
	encoded, err := r.prepend(ctx, id, tx)
	if err != nil {
		return err
	}
	puts, dels := stateWrites(id, state)
	puts[keyTransactions+id] = encoded
	return errors.Wrapf(r.kv.Apply(ctx, puts, dels), "commit %s for %s", tx.Kind, id)
}

func (r *KVRepository) Transactions(ctx context.Context, id string) ([]model.Transaction, error) {
	v, ok, err := r.kv.Get(ctx, keyTransactions+id)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", keyTransactions+id)
	}
	if !ok || v == "" {
		return nil, nil
	}
	var txs []model.Transaction
	if err := json.Unmarshal([]byte(v), &txs); err != nil {
		return nil, errors.Wrapf(err, "decode %s", keyTransactions+id)
	}
	return txs, nil
}

// CustomStrategies returns user-added strategies in insertion order.
func (r *KVRepository) CustomStrategies(ctx context.Context) ([]model.Strategy, error) {
	v, ok, err := r.kv.Get(ctx, keyCustomStrategies)
	if err != nil {
		return nil, errors.Wrap(err, "get custom strategies")
	}
	if !ok || v == "" {
		return nil, nil
	}
	var out []model.Strategy
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil, errors.Wrap(err, "decode custom strategies")
	}
	return out, nil
}

// AppendCustomStrategy adds a user strategy to the persisted list.
func (r *KVRepository) AppendCustomStrategy(ctx context.Context, s model.Strategy) error {
	existing, err := r.CustomStrategies(ctx)
	if err != nil {
		return err
	}
	b, err := json.Marshal(append(existing, s))
	if err != nil {
		return errors.Wrap(err, "encode custom strategies")
	}
	return errors.Wrap(r.kv.Apply(ctx, map[string]string{keyCustomStrategies: string(b)}, nil), "save custom strategies")
}

func (r *KVRepository) prepend(ctx context.Context, id string, tx model.Transaction) (string, error) {
	existing, err := r.Transactions(ctx, id)
	if err != nil {
		return "", err
	}
	txs := make([]model.Transaction, 0, len(existing)+1)
	txs = append(txs, tx)
	txs = append(txs, existing...)
	b, err := json.Marshal(txs)
	if err != nil {
		return "", errors.Wrap(err, "encode transactions")
	}
	return string(b), nil
}

func (r *KVRepository) getDecimal(ctx context.Context, key string) (decimal.Decimal, error) {
	v, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "get %s", key)
	}
	if !ok || v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %s", key)
	}
	return d, nil
}

func stateWrites(id string, st model.AccountState) (map[string]string, []string) {
	puts := map[string]string{
		keyTokenBalance + id: st.TokenBalance.String(),
		keyVaultShares + id:  st.VaultShares.String(),
		keyInitialAlloc + id: strconv.FormatBool(st.HasReceivedInitialAllocation),
	}
	var dels []string
	if st.LastDepositAt.IsZero() {
		dels = append(dels, keyLastDeposit+id)
	} else {
		puts[keyLastDeposit+id] = strconv.FormatInt(st.LastDepositAt.UnixMilli(), 10)
	}
	return puts, dels
}
