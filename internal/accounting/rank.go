package accounting

import (
	"cmp"
	"slices"
)

// rankWeights orders weights by total size descending, ties broken by branch
// name ascending, so output is deterministic across runs and worker
// schedules.
func rankWeights(weights []BranchWeight) {
	slices.SortFunc(weights, func(a, b BranchWeight) int {
		if c := cmp.Compare(b.TotalSize, a.TotalSize); c != 0 {
			return c
		}

		return cmp.Compare(a.Branch, b.Branch)
	})
}

// sumTotals folds per-branch weights and the ownership map into run totals.
// Unique and shared sums count an object once per owning branch; the distinct
// figures count every object exactly once.
func sumTotals(weights []BranchWeight, owners *ownershipMap) Totals {
	totals := Totals{Branches: len(weights)}

	for _, weight := range weights {
		totals.UniqueSize += weight.UniqueSize
		totals.SharedSize += weight.SharedSize
	}

	totals.DistinctSize, totals.DistinctObjects = owners.DistinctTotals()

	return totals
}
