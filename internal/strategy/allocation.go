package strategy

import (
	"sort"

	"YieldHarbor/internal/model"
)

// AllocationWeights is the fixed split applied to strategies ranked by APY.
var AllocationWeights = []int{60, 20, 15, 5}

// Rank returns a copy of strategies sorted by descending APY. Ties keep catalog order.
func Rank(strategies []model.Strategy) []model.Strategy {
	ranked := make([]model.Strategy, len(strategies))
	copy(ranked, strategies)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].APY > ranked[j].APY })
	return ranked
}

// Snapshot maps the allocation weights onto the top ranked strategies.
func Snapshot(strategies []model.Strategy) []model.AllocationSlice {
	ranked := Rank(strategies)
	n := len(AllocationWeights)
	if len(ranked) < n {
		n = len(ranked)
	}
	out := make([]model.AllocationSlice, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.AllocationSlice{
			Name:       ranked[i].Name,
			Percentage: AllocationWeights[i],
			APY:        ranked[i].APY,
			IsPrimary:  i == 0,
		})
	}
	return out
}
