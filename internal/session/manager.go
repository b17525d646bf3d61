package session

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"YieldHarbor/internal/fund"
	"YieldHarbor/internal/live"
	"YieldHarbor/internal/model"
	"YieldHarbor/internal/notifier"
	"YieldHarbor/internal/scheduler"
	"YieldHarbor/internal/strategy"
)

// Tracker observes session lifecycle and live-mode failures.
type Tracker interface {
	SessionOpened()
	SessionClosed()
	Failed(op string, err error)
}

// Watcher runs the periodic worth refresh for an identity.
type Watcher interface {
	Watch(id string) error
	Unwatch(id string)
	Kick(id string)
}

// Manager holds the connected sessions and the collaborators they share.
// Refresher, Publisher and Tracker are optional.
type Manager struct {
	Ledger    *fund.Ledger
	Live      *live.Vault
	Catalog   *strategy.Catalog
	Refresher Watcher
	Publisher scheduler.Publisher
	Tracker   Tracker

	now func() time.Time

	mu       sync.Mutex
	sessions map[common.Address]*Session
}

// NewManager creates a Manager.
func NewManager(ledger *fund.Ledger, vault *live.Vault, catalog *strategy.Catalog) *Manager {
	return &Manager{
		Ledger:   ledger,
		Live:     vault,
		Catalog:  catalog,
		now:      time.Now,
		sessions: map[common.Address]*Session{},
	}
}

// ParseIdentity validates and normalizes a hex address.
func ParseIdentity(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.Wrapf(ErrInvalidIdentity, "%q", raw)
	}
	return common.HexToAddress(raw), nil
}

// Connect opens a session in simulated mode, applying the initial grant on first
// sight. Connecting an already connected identity returns the existing session.
func (m *Manager) Connect(ctx context.Context, raw string) (*Session, model.AccountState, error) {
	addr, err := ParseIdentity(raw)
	if err != nil {
		return nil, model.AccountState{}, err
	}
	st, err := m.Ledger.Open(ctx, addr.Hex())
	if err != nil {
		return nil, model.AccountState{}, err
	}

	m.mu.Lock()
	s, ok := m.sessions[addr]
	if !ok {
		s = &Session{m: m, identity: addr, mode: model.ModeSimulated, connected: true}
		m.sessions[addr] = s
	}
	m.mu.Unlock()
	if ok {
		return s, st, nil
	}

	if m.Refresher != nil {
		s.mu.Lock()
		if s.connected {
			if err := m.Refresher.Watch(addr.Hex()); err != nil {
				log.Printf("[WARN] refresh not started for %s: %v", addr.Hex(), err)
			}
		}
		s.mu.Unlock()
	}
	if m.Tracker != nil {
		m.Tracker.SessionOpened()
	}
	log.Printf("[INFO] session connected: %s", addr.Hex())
	return s, st, nil
}

// Get returns the connected session for raw.
func (m *Manager) Get(raw string) (*Session, error) {
	addr, err := ParseIdentity(raw)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[addr]
	if !ok {
		return nil, errors.Wrapf(ErrIdentityNotConnected, "%s", addr.Hex())
	}
	return s, nil
}

// Disconnect drops the in-memory session and stops its refresh. Persisted state stays.
func (m *Manager) Disconnect(raw string) error {
	addr, err := ParseIdentity(raw)
	if err != nil {
		return err
	}
	m.mu.Lock()
	s, ok := m.sessions[addr]
	delete(m.sessions, addr)
	m.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrIdentityNotConnected, "%s", addr.Hex())
	}

	// Unwatch under s.mu so an in-flight ToggleMode cannot re-register the job.
	s.mu.Lock()
	s.connected = false
	if m.Refresher != nil {
		m.Refresher.Unwatch(addr.Hex())
	}
	s.mu.Unlock()

	if m.Tracker != nil {
		m.Tracker.SessionClosed()
	}
	log.Printf("[INFO] session disconnected: %s", addr.Hex())
	return nil
}

// Connected returns the number of open sessions.
func (m *Manager) Connected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) publish(e notifier.Event) {
	if e.Type != notifier.EventWorth {
		log.Printf("[INFO] %s", e)
	}
	if m.Publisher != nil {
		m.Publisher.Publish(e)
	}
}

func (m *Manager) failed(op string, err error) {
	if m.Tracker != nil {
		m.Tracker.Failed(op, err)
	}
}
