package strategy

import (
	"context"
	"crypto/rand"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"YieldHarbor/internal/collector"
	"YieldHarbor/internal/model"
)

// ErrInvalidStrategy is returned when a candidate fails validation.
var ErrInvalidStrategy = model.ErrInvalidStrategy

// Persister stores user-submitted strategies across restarts.
type Persister interface {
	CustomStrategies(ctx context.Context) ([]model.Strategy, error)
	AppendCustomStrategy(ctx context.Context, s model.Strategy) error
}

// Candidate is a user-submitted strategy before it receives an identity.
type Candidate struct {
	Name        string          `json:"name"`
	AssetSymbol string          `json:"tokenSymbol"`
	APY         float64         `json:"apy"`
	TVL         decimal.Decimal `json:"tvl"`
	Risk        model.RiskTier  `json:"riskLevel"`
}

// Validate checks the required fields and fills the default risk tier.
func (c *Candidate) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.AssetSymbol = strings.TrimSpace(c.AssetSymbol)
	if c.Risk == "" {
		c.Risk = model.RiskMedium
	}
	return model.CheckStrategy(c.Name, c.AssetSymbol, c.APY, c.TVL, c.Risk)
}

// Catalog is the append-only list of yield strategies.
type Catalog struct {
	mu         sync.RWMutex
	strategies []model.Strategy
	persister  Persister
}

// NewCatalog seeds a catalog; an empty seed falls back to Defaults.
func NewCatalog(seed []model.Strategy) *Catalog {
	if len(seed) == 0 {
		seed = Defaults()
	}
	s := make([]model.Strategy, len(seed))
	copy(s, seed)
	return &Catalog{strategies: s}
}

// LoadCatalog fetches the seed from src and appends persisted custom strategies.
// A failing source falls back to Defaults so the catalog is never empty.
func LoadCatalog(ctx context.Context, src collector.Fetcher, p Persister) (*Catalog, error) {
	var seed []model.Strategy
	if src != nil {
		fetched, err := src.FetchStrategies(ctx)
		if err != nil {
			log.Printf("[WARN] strategy source %s failed, using defaults: %v", src.Name(), err)
		} else {
			seed = fetched
		}
	}
	c := NewCatalog(seed)
	c.persister = p
	if p == nil {
		return c, nil
	}
	custom, err := p.CustomStrategies(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load custom strategies")
	}
	c.strategies = append(c.strategies, custom...)
	log.Printf("[INFO] strategy catalog loaded: %d entries (%d custom)", len(c.strategies), len(custom))
	return c, nil
}

// List returns the strategies in insertion order.
func (c *Catalog) List() []model.Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Strategy, len(c.strategies))
	copy(out, c.strategies)
	return out
}

// Add validates a candidate, assigns it an ID and address, and appends it.
func (c *Catalog) Add(ctx context.Context, cand Candidate) (model.Strategy, error) {
	if err := cand.Validate(); err != nil {
		return model.Strategy{}, err
	}
	addr, err := randomAddress()
	if err != nil {
		return model.Strategy{}, errors.Wrap(err, "generate strategy address")
	}
	s := model.Strategy{
		ID:          uuid.NewString(),
		Address:     addr,
		Name:        cand.Name,
		AssetSymbol: cand.AssetSymbol,
		Asset:       model.AssetKindOf(cand.AssetSymbol),
		APY:         cand.APY,
		TVL:         cand.TVL,
		Risk:        cand.Risk,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.persister != nil {
		if err := c.persister.AppendCustomStrategy(ctx, s); err != nil {
			return model.Strategy{}, errors.Wrap(err, "persist strategy")
		}
	}
	c.strategies = append(c.strategies, s)
	return s, nil
}

// AverageAPY is the arithmetic mean APY across the catalog.
func (c *Catalog) AverageAPY() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.strategies) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range c.strategies {
		sum += s.APY
	}
	return sum / float64(len(c.strategies))
}

// Primary returns the highest-APY strategy; the first one wins on ties.
func (c *Catalog) Primary() model.Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var best model.Strategy
	for i, s := range c.strategies {
		if i == 0 || s.APY > best.APY {
			best = s
		}
	}
	return best
}

// Ranked returns the strategies by descending APY.
func (c *Catalog) Ranked() []model.Strategy {
	return Rank(c.List())
}

// Allocation returns the current allocation snapshot.
func (c *Catalog) Allocation() []model.AllocationSlice {
	return Snapshot(c.List())
}

// Lookup finds a strategy by address, case-insensitively.
func (c *Catalog) Lookup(address string) (model.Strategy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.strategies {
		if strings.EqualFold(s.Address, address) {
			return s, true
		}
	}
	return model.Strategy{}, false
}

// SortOption names an ordering for catalog listings.
type SortOption string

const (
	SortAPYDesc  SortOption = "apy_desc"
	SortAPYAsc   SortOption = "apy_asc"
	SortTVLDesc  SortOption = "tvl_desc"
	SortTVLAsc   SortOption = "tvl_asc"
	SortNameAsc  SortOption = "name_asc"
	SortNameDesc SortOption = "name_desc"
)

// Sorted returns the strategies in the requested order. Unknown options sort by APY descending.
func (c *Catalog) Sorted(opt SortOption) []model.Strategy {
	out := c.List()
	var less func(a, b model.Strategy) bool
	switch opt {
	case SortAPYAsc:
		less = func(a, b model.Strategy) bool { return a.APY < b.APY }
	case SortTVLDesc:
		less = func(a, b model.Strategy) bool { return a.TVL.GreaterThan(b.TVL) }
	case SortTVLAsc:
		less = func(a, b model.Strategy) bool { return a.TVL.LessThan(b.TVL) }
	case SortNameAsc:
		less = func(a, b model.Strategy) bool { return a.Name < b.Name }
	case SortNameDesc:
		less = func(a, b model.Strategy) bool { return a.Name > b.Name }
	default:
		less = func(a, b model.Strategy) bool { return a.APY > b.APY }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func randomAddress() (string, error) {
	b := make([]byte, common.AddressLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return common.BytesToAddress(b).Hex(), nil
}
