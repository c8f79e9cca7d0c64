package accounting

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchweight/pkg/gitcli"
)

// CommitBreakdown attributes a branch's unique objects to the commits that
// first introduced them, oldest commit wins. Only callable after Run, and
// only for branches the run collected, so the cost of the finer-grained
// commit walk is paid solely for branches the caller selected.
func (e *Engine) CommitBreakdown(ctx context.Context, branchName string) ([]CommitWeight, error) {
	if e.state == nil {
		return nil, ErrNoRun
	}

	branch, ok := e.state.branches[branchName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBranch, branchName)
	}

	ctx, span := e.tracer().Start(ctx, "branchweight.breakdown",
		trace.WithAttributes(attribute.String("branch", branchName)))
	defer span.End()

	// Shared objects are excluded: deleting this branch alone would not
	// reclaim them, so no single commit meaningfully "costs" their size.
	remaining := e.uniqueObjects(branchName)
	if len(remaining) == 0 {
		return nil, nil
	}

	commits, commitsErr := e.Source.UnmergedCommits(ctx, branch.Tip, e.state.defaultRef)
	if commitsErr != nil {
		return nil, fmt.Errorf("breakdown %s: %w", branchName, commitsErr)
	}

	weights, walkErr := e.attributeCommits(ctx, commits, remaining)
	if walkErr != nil {
		return nil, walkErr
	}

	slices.SortFunc(weights, func(a, b CommitWeight) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}

		return cmp.Compare(a.Commit, b.Commit)
	})

	return weights, nil
}

// uniqueObjects filters a collected branch set down to objects owned by that
// branch alone.
func (e *Engine) uniqueObjects(branchName string) map[gitcli.OID]uint64 {
	set := e.state.sets[branchName]
	unique := make(map[gitcli.OID]uint64)

	for id, size := range set {
		if e.state.owners.OwnerCount(id) == 1 {
			unique[id] = size
		}
	}

	return unique
}

// attributeCommits walks the branch's unmerged commits oldest-first as an
// explicit worklist, assigning each remaining unique object to the first
// commit whose diff introduces it. Exits early once everything is
// attributed; deep histories never recurse.
func (e *Engine) attributeCommits(
	ctx context.Context,
	commits []string,
	remaining map[gitcli.OID]uint64,
) ([]CommitWeight, error) {
	var weights []CommitWeight

	// UnmergedCommits yields newest first; introduce objects oldest first.
	for i := len(commits) - 1; i >= 0 && len(remaining) > 0; i-- {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		commit := commits[i]

		ids, diffErr := e.Source.CommitBlobs(ctx, commit)
		if diffErr != nil {
			// A single unreadable commit (e.g. pruned mid-run) loses its
			// attribution but not the whole breakdown.
			e.log().WarnContext(ctx, "skipping unreadable commit",
				"commit", commit, "error", diffErr)

			continue
		}

		weight := CommitWeight{Commit: commit}

		for _, id := range ids {
			size, owns := remaining[id]
			if !owns {
				continue
			}

			weight.Size += size
			weight.Objects++

			delete(remaining, id)
		}

		if weight.Objects > 0 {
			weights = append(weights, weight)
		}
	}

	return weights, nil
}
