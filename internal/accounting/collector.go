package accounting

import (
	"context"
	"sync"

	"github.com/Sumatoshi-tech/branchweight/pkg/gitcli"
)

// progressLogInterval is how many branches between collection progress logs.
const progressLogInterval = 100

// collectOutcome is one branch's collection result, produced by exactly one
// worker and read only after the pool drains.
type collectOutcome struct {
	set     BranchSet
	dropped int
	err     error
}

// collectBranches drives the object source for every branch on a fixed-size
// worker pool. Each worker builds its branch's deduplicated set and publishes
// it into the ownership map as soon as it is complete. Per-branch failures
// land in the outcome slice and never abort sibling branches.
//
// Returning from this function is the run's one synchronization barrier:
// every non-failed branch has contributed its full set to owners.
func (e *Engine) collectBranches(
	ctx context.Context,
	branches []gitcli.Branch,
	defaultRef string,
	owners *ownershipMap,
) []collectOutcome {
	outcomes := make([]collectOutcome, len(branches))
	work := make(chan int)

	var wg sync.WaitGroup

	workers := e.workerCount(len(branches))
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()

			for idx := range work {
				outcomes[idx] = e.collectOne(ctx, branches[idx], defaultRef, int32(idx), owners)
			}
		}()
	}

	// Dispatch branch indexes; stop handing out work once the run is
	// cancelled so in-flight collections wind down promptly.
dispatch:
	for idx := range branches {
		if idx > 0 && idx%progressLogInterval == 0 {
			e.log().InfoContext(ctx, "collecting branches", "done", idx, "total", len(branches))
		}

		select {
		case work <- idx:
		case <-ctx.Done():
			break dispatch
		}
	}

	close(work)
	wg.Wait()

	return outcomes
}

// collectOne builds one branch's exclusive object set and merges it into the
// ownership map. The set map itself deduplicates objects reachable through
// multiple paths.
func (e *Engine) collectOne(
	ctx context.Context,
	branch gitcli.Branch,
	defaultRef string,
	index int32,
	owners *ownershipMap,
) collectOutcome {
	set := make(BranchSet)

	dropped, err := e.Source.ExclusiveBlobs(ctx, branch.Tip, defaultRef, func(record gitcli.BlobRecord) {
		set[record.ID] = record.Size
	})
	if err != nil {
		e.Metrics.BranchFailed(ctx)

		return collectOutcome{err: err}
	}

	if dropped > 0 {
		e.log().WarnContext(ctx, "objects vanished during collection",
			"branch", branch.Name, "dropped", dropped)
	}

	owners.AddSet(index, set)

	e.Metrics.BranchCollected(ctx, len(set), set.TotalSize())
	e.Metrics.ObjectsDropped(ctx, dropped)

	return collectOutcome{set: set, dropped: dropped}
}

// workerCount bounds the pool size by the amount of work available.
func (e *Engine) workerCount(branches int) int {
	workers := e.Workers
	if workers < 1 {
		workers = defaultWorkers
	}

	if workers > branches {
		workers = branches
	}

	return workers
}
