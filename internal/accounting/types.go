// Package accounting computes how much on-disk object storage each unmerged
// branch is responsible for. Collection runs in parallel per branch, branch
// sets are merged into a shared ownership map behind one barrier, and sizes
// are partitioned into unique (one owning branch) and shared (several).
package accounting

import (
	"github.com/Sumatoshi-tech/branchweight/pkg/gitcli"
)

// BranchSet is one branch's deduplicated exclusive object set: every blob
// reachable from the branch but not from the default branch, with its
// on-disk size. Written by exactly one collector worker, read-only after
// the aggregation barrier.
type BranchSet map[gitcli.OID]uint64

// TotalSize sums the on-disk size of every object in the set.
func (s BranchSet) TotalSize() uint64 {
	var total uint64

	for _, size := range s {
		total += size
	}

	return total
}

// BranchWeight is the per-branch result: the branch's total exclusive
// footprint partitioned into unique and shared bytes and object counts.
type BranchWeight struct {
	Branch string

	TotalSize  uint64
	UniqueSize uint64
	SharedSize uint64

	TotalObjects  int
	UniqueObjects int
	SharedObjects int
}

// Totals aggregates the whole run. DistinctSize counts every object once,
// no matter how many branches share it, so it is the disk space actually
// occupied by all unmerged work combined.
type Totals struct {
	Branches        int
	UniqueSize      uint64
	SharedSize      uint64
	DistinctSize    uint64
	DistinctObjects int
}

// Result is the outcome of one accounting run. Weights is ordered by
// TotalSize descending (ties by branch name ascending). Errors maps branch
// name to the error that excluded it; branches listed there have no weight.
type Result struct {
	Weights []BranchWeight
	Errors  map[string]error
	Totals  Totals
}

// CommitWeight attributes part of a branch's unique footprint to the commit
// that first introduced it.
type CommitWeight struct {
	Commit  string
	Size    uint64
	Objects int
}
