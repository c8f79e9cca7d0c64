package accounting

import (
	"context"
	"sync"

	"github.com/Sumatoshi-tech/branchweight/pkg/gitcli"
)

// partitionSet splits one branch's set against the frozen ownership map:
// objects referenced by exactly one branch are unique, the rest are shared.
// Pure read; every size is exact integer byte arithmetic.
func partitionSet(branch string, set BranchSet, owners *ownershipMap) BranchWeight {
	weight := BranchWeight{Branch: branch}

	for id, size := range set {
		if owners.OwnerCount(id) == 1 {
			weight.UniqueSize += size
			weight.UniqueObjects++
		} else {
			weight.SharedSize += size
			weight.SharedObjects++
		}
	}

	weight.TotalSize = weight.UniqueSize + weight.SharedSize
	weight.TotalObjects = weight.UniqueObjects + weight.SharedObjects

	return weight
}

// partitionBranches computes every collected branch's weight in parallel.
// The ownership map is immutable at this point, so workers share it without
// locking. Order of the returned slice matches the input branch order;
// entries for failed branches stay zero and are filtered by the caller.
func (e *Engine) partitionBranches(
	ctx context.Context,
	branches []gitcli.Branch,
	outcomes []collectOutcome,
	owners *ownershipMap,
) []BranchWeight {
	weights := make([]BranchWeight, len(branches))
	work := make(chan int)

	var wg sync.WaitGroup

	workers := e.workerCount(len(branches))
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()

			for idx := range work {
				weights[idx] = partitionSet(branches[idx].Name, outcomes[idx].set, owners)
			}
		}()
	}

dispatch:
	for idx := range branches {
		if outcomes[idx].err != nil {
			continue
		}

		select {
		case work <- idx:
		case <-ctx.Done():
			break dispatch
		}
	}

	close(work)
	wg.Wait()

	return weights
}
