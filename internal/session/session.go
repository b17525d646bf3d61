// Package session binds a connected identity to its mode and routes each action
// to the simulated ledger or the live vault.
package session

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"YieldHarbor/internal/live"
	"YieldHarbor/internal/model"
	"YieldHarbor/internal/notifier"
	"YieldHarbor/internal/strategy"
)

// Balance is the position shown for the active mode.
type Balance struct {
	Mode          model.Mode      `json:"mode"`
	Account       string          `json:"account"`
	TokenBalance  decimal.Decimal `json:"token_balance"`
	Shares        decimal.Decimal `json:"shares"`
	Value         decimal.Decimal `json:"value"`
	Yield         decimal.Decimal `json:"yield"`
	PricePerShare decimal.Decimal `json:"price_per_share,omitempty"`
}

// Result reports a completed deposit or withdrawal.
type Result struct {
	Mode        model.Mode         `json:"mode"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
	Receipt     *live.Receipt      `json:"receipt,omitempty"`
}

// Session is one connected identity.
type Session struct {
	m        *Manager
	identity common.Address

	mu        sync.Mutex
	mode      model.Mode
	connected bool

	busy atomic.Bool
}

// Identity returns the checksummed address.
func (s *Session) Identity() string { return s.identity.Hex() }

// Mode returns the active mode.
func (s *Session) Mode() model.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) acquire() (func(), error) {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return nil, errors.Wrapf(ErrIdentityNotConnected, "%s", s.Identity())
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, errors.Wrapf(ErrOperationInProgress, "%s", s.Identity())
	}
	return func() { s.busy.Store(false) }, nil
}

// ToggleMode flips between simulated and live. Simulated state is untouched;
// the refresh job stops while live and resumes on return. If the job cannot be
// restarted the mode is left unchanged.
func (s *Session) ToggleMode() (model.Mode, error) {
	release, err := s.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	id := s.Identity()
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return "", errors.Wrapf(ErrIdentityNotConnected, "%s", id)
	}
	mode := s.mode.Toggled()
	if r := s.m.Refresher; r != nil {
		if mode == model.ModeSimulated {
			if err := r.Watch(id); err != nil {
				s.mu.Unlock()
				return s.mode, errors.Wrapf(err, "resume refresh for %s", id)
			}
		} else {
			r.Unwatch(id)
		}
	}
	s.mode = mode
	s.mu.Unlock()

	s.m.publish(notifier.ModeEvent(id, mode))
	return mode, nil
}

// Balance reads the position for the active mode.
func (s *Session) Balance(ctx context.Context) (Balance, error) {
	if err := s.ensureConnected(); err != nil {
		return Balance{}, err
	}
	id := s.Identity()
	if s.Mode() == model.ModeLive {
		pos, err := s.m.Live.Position(ctx, s.identity)
		if err != nil {
			return Balance{}, err
		}
		return Balance{
			Mode:          model.ModeLive,
			Account:       id,
			TokenBalance:  pos.TokenBalance,
			Shares:        pos.Shares,
			Value:         pos.Value,
			Yield:         pos.Value.Sub(pos.Shares),
			PricePerShare: pos.PricePerShare,
		}, nil
	}

	st, err := s.m.Ledger.State(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	w, err := s.m.Ledger.RefreshDisplayedWorth(ctx, id, s.m.now())
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		Mode:         model.ModeSimulated,
		Account:      id,
		TokenBalance: st.TokenBalance,
		Shares:       w.Shares,
		Value:        w.Value,
		Yield:        w.Yield,
	}, nil
}

// Deposit moves amount into the vault for the active mode.
func (s *Session) Deposit(ctx context.Context, amount decimal.Decimal) (Result, error) {
	release, err := s.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	if s.Mode() == model.ModeLive {
		r, err := s.m.Live.Deposit(ctx, s.identity, amount)
		if err != nil {
			s.m.failed("live_deposit", err)
			return Result{}, err
		}
		return Result{Mode: model.ModeLive, Receipt: &r}, nil
	}
	tx, err := s.m.Ledger.Deposit(ctx, s.Identity(), amount)
	if err != nil {
		return Result{}, err
	}
	s.afterSimulated(tx)
	return Result{Mode: model.ModeSimulated, Transaction: &tx}, nil
}

// Withdraw redeems shares for the active mode.
func (s *Session) Withdraw(ctx context.Context, shares decimal.Decimal) (Result, error) {
	release, err := s.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	if s.Mode() == model.ModeLive {
		r, err := s.m.Live.Withdraw(ctx, s.identity, shares)
		if err != nil {
			s.m.failed("live_withdraw", err)
			return Result{}, err
		}
		return Result{Mode: model.ModeLive, Receipt: &r}, nil
	}
	tx, err := s.m.Ledger.Withdraw(ctx, s.Identity(), shares)
	if err != nil {
		return Result{}, err
	}
	s.afterSimulated(tx)
	return Result{Mode: model.ModeSimulated, Transaction: &tx}, nil
}

// PreviewWithdraw estimates the payout for shares without submitting anything.
func (s *Session) PreviewWithdraw(ctx context.Context, shares decimal.Decimal) (decimal.Decimal, error) {
	if err := s.ensureConnected(); err != nil {
		return decimal.Zero, err
	}
	if s.Mode() == model.ModeLive {
		pos, err := s.m.Live.Position(ctx, s.identity)
		if err != nil {
			return decimal.Zero, err
		}
		return shares.Mul(pos.PricePerShare), nil
	}
	return s.m.Ledger.PreviewWithdraw(ctx, s.Identity(), shares, s.m.now())
}

// Transactions lists the simulated ledger.
func (s *Session) Transactions(ctx context.Context, filter model.TxFilter) (iter.Seq[model.Transaction], error) {
	if err := s.ensureSimulated(); err != nil {
		return nil, err
	}
	return s.m.Ledger.Transactions(ctx, s.Identity(), filter)
}

// Performance summarizes the simulated portfolio.
func (s *Session) Performance(ctx context.Context) (model.Performance, error) {
	if err := s.ensureSimulated(); err != nil {
		return model.Performance{}, err
	}
	return s.m.Ledger.Performance(ctx, s.Identity(), s.m.now())
}

// AddStrategy appends a user strategy to the catalog.
func (s *Session) AddStrategy(ctx context.Context, cand strategy.Candidate) (model.Strategy, error) {
	if err := s.ensureSimulated(); err != nil {
		return model.Strategy{}, err
	}
	return s.m.Catalog.Add(ctx, cand)
}

func (s *Session) ensureConnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return errors.Wrapf(ErrIdentityNotConnected, "%s", s.identity.Hex())
	}
	return nil
}

func (s *Session) ensureSimulated() error {
	if err := s.ensureConnected(); err != nil {
		return err
	}
	if s.Mode() != model.ModeSimulated {
		return ErrSimulationOnly
	}
	return nil
}

func (s *Session) afterSimulated(tx model.Transaction) {
	id := s.Identity()
	s.m.publish(notifier.TransactionEvent(id, tx))
	if r := s.m.Refresher; r != nil {
		r.Kick(id)
	}
}
