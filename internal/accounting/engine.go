package accounting

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchweight/internal/observability"
	"github.com/Sumatoshi-tech/branchweight/pkg/gitcli"
)

// tracerName is the fallback OTel tracer name for the accounting package.
const tracerName = "branchweight"

// ErrNoRun is returned when a commit breakdown is requested before a
// completed accounting run.
var ErrNoRun = errors.New("no completed accounting run")

// ErrUnknownBranch is returned when a commit breakdown is requested for a
// branch the run did not collect.
var ErrUnknownBranch = errors.New("branch was not collected in this run")

// Engine runs the branch object accounting pipeline. All state is scoped to
// one run; nothing persists across invocations.
type Engine struct {
	// Source is the repository's object-graph view.
	Source gitcli.Source

	// Workers bounds the collection and partition pools.
	// Zero or negative uses GOMAXPROCS.
	Workers int

	// Logger receives progress and warnings. Nil uses slog.Default.
	Logger *slog.Logger

	// Tracer creates pipeline phase spans. Nil falls back to the global provider.
	Tracer trace.Tracer

	// Metrics records run instruments. Nil records nothing.
	Metrics *observability.RunMetrics

	// state holds the previous run's sets and ownership map so commit
	// breakdowns can be computed afterwards for selected branches.
	state *runState
}

// runState is the retained outcome of one Run, consumed by CommitBreakdown.
type runState struct {
	defaultRef string
	branches   map[string]gitcli.Branch
	sets       map[string]BranchSet
	owners     *ownershipMap
}

// Run executes the full accounting pipeline: parallel per-branch collection,
// the ownership barrier, parallel size partitioning, and deterministic
// ranking. Per-branch failures are reported in Result.Errors and never abort
// sibling branches. A cancelled context aborts the run with ctx.Err() and no
// partial result.
func (e *Engine) Run(ctx context.Context, defaultRef string, branches []gitcli.Branch) (*Result, error) {
	start := time.Now()

	ctx, span := e.tracer().Start(ctx, "branchweight.run",
		trace.WithAttributes(attribute.Int("run.branches", len(branches))))
	defer span.End()

	e.state = nil

	owners := newOwnershipMap()

	collectCtx, collectSpan := e.tracer().Start(ctx, "branchweight.collect")
	outcomes := e.collectBranches(collectCtx, branches, defaultRef, owners)
	collectSpan.End()

	if ctxErr := ctx.Err(); ctxErr != nil {
		observability.RecordSpanError(span, ctxErr, observability.ErrTypeCancelled)

		return nil, ctxErr
	}

	// Barrier passed: the ownership map is complete and immutable from here.
	partitionCtx, partitionSpan := e.tracer().Start(ctx, "branchweight.partition")
	weights := e.partitionBranches(partitionCtx, branches, outcomes, owners)
	partitionSpan.End()

	if ctxErr := ctx.Err(); ctxErr != nil {
		observability.RecordSpanError(span, ctxErr, observability.ErrTypeCancelled)

		return nil, ctxErr
	}

	result := e.assembleResult(branches, outcomes, weights, owners, defaultRef)

	span.SetAttributes(
		attribute.Int("run.collected", result.Totals.Branches),
		attribute.Int("run.failed", len(result.Errors)),
		attribute.Int("run.distinct_objects", result.Totals.DistinctObjects),
	)

	e.Metrics.RunCompleted(ctx, time.Since(start))
	e.log().InfoContext(ctx, "accounting run complete",
		"branches", result.Totals.Branches,
		"failed", len(result.Errors),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return result, nil
}

// assembleResult separates failed branches from ranked weights and retains
// the run state for later commit breakdowns.
func (e *Engine) assembleResult(
	branches []gitcli.Branch,
	outcomes []collectOutcome,
	weights []BranchWeight,
	owners *ownershipMap,
	defaultRef string,
) *Result {
	result := &Result{Errors: make(map[string]error)}

	state := &runState{
		defaultRef: defaultRef,
		branches:   make(map[string]gitcli.Branch, len(branches)),
		sets:       make(map[string]BranchSet, len(branches)),
		owners:     owners,
	}

	for idx, branch := range branches {
		if outcomes[idx].err != nil {
			result.Errors[branch.Name] = outcomes[idx].err

			continue
		}

		result.Weights = append(result.Weights, weights[idx])
		state.branches[branch.Name] = branch
		state.sets[branch.Name] = outcomes[idx].set
	}

	rankWeights(result.Weights)

	result.Totals = sumTotals(result.Weights, owners)
	e.state = state

	return result
}

// tracer returns the configured tracer, falling back to the global provider.
func (e *Engine) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}

	return otel.Tracer(tracerName)
}

// log returns the configured logger, falling back to slog.Default.
func (e *Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}

	return slog.Default()
}

// defaultWorkers is the pool size when the caller does not set one.
var defaultWorkers = runtime.GOMAXPROCS(0)
