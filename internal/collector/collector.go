package collector

import (
	"context"

	"YieldHarbor/internal/model"
)

// StaticFetcher returns a fixed strategy list. Used for the built-in catalog and in tests.
type StaticFetcher struct {
	Strategies []model.Strategy
	Err        error
}

func (s *StaticFetcher) Name() string { return "static" }

func (s *StaticFetcher) FetchStrategies(_ context.Context) ([]model.Strategy, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]model.Strategy, len(s.Strategies))
	copy(out, s.Strategies)
	return out, nil
}
