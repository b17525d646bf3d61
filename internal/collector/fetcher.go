package collector

import (
	"context"

	"YieldHarbor/internal/model"
)

// Fetcher supplies the seed strategy list for the catalog.
type Fetcher interface {
	FetchStrategies(ctx context.Context) ([]model.Strategy, error)
	Name() string
}
