package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RunMetrics holds the instruments recorded on the accounting hot path.
// A nil *RunMetrics is valid and records nothing, so callers never need to
// branch on whether metrics are enabled.
type RunMetrics struct {
	branchesProcessed metric.Int64Counter
	branchesFailed    metric.Int64Counter
	objectsScanned    metric.Int64Counter
	objectsDropped    metric.Int64Counter
	bytesAccounted    metric.Int64Counter
	runDuration       metric.Float64Histogram
}

// NewRunMetrics registers the accounting instruments on meter.
func NewRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	branchesProcessed, err := meter.Int64Counter(
		"branchweight.branches.processed",
		metric.WithDescription("Branches whose exclusive object set was collected."),
	)
	if err != nil {
		return nil, fmt.Errorf("register branches.processed: %w", err)
	}

	branchesFailed, err := meter.Int64Counter(
		"branchweight.branches.failed",
		metric.WithDescription("Branches excluded from the run by a per-branch error."),
	)
	if err != nil {
		return nil, fmt.Errorf("register branches.failed: %w", err)
	}

	objectsScanned, err := meter.Int64Counter(
		"branchweight.objects.scanned",
		metric.WithDescription("Blob objects streamed out of the object source."),
	)
	if err != nil {
		return nil, fmt.Errorf("register objects.scanned: %w", err)
	}

	objectsDropped, err := meter.Int64Counter(
		"branchweight.objects.dropped",
		metric.WithDescription("Objects skipped because their metadata could not be read."),
	)
	if err != nil {
		return nil, fmt.Errorf("register objects.dropped: %w", err)
	}

	bytesAccounted, err := meter.Int64Counter(
		"branchweight.bytes.accounted",
		metric.WithUnit("By"),
		metric.WithDescription("On-disk bytes attributed across all collected branch sets."),
	)
	if err != nil {
		return nil, fmt.Errorf("register bytes.accounted: %w", err)
	}

	runDuration, err := meter.Float64Histogram(
		"branchweight.run.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of one full accounting run."),
	)
	if err != nil {
		return nil, fmt.Errorf("register run.duration: %w", err)
	}

	return &RunMetrics{
		branchesProcessed: branchesProcessed,
		branchesFailed:    branchesFailed,
		objectsScanned:    objectsScanned,
		objectsDropped:    objectsDropped,
		bytesAccounted:    bytesAccounted,
		runDuration:       runDuration,
	}, nil
}

// BranchCollected records one successfully collected branch set.
func (m *RunMetrics) BranchCollected(ctx context.Context, objects int, bytes uint64) {
	if m == nil {
		return
	}

	m.branchesProcessed.Add(ctx, 1)
	m.objectsScanned.Add(ctx, int64(objects))
	m.bytesAccounted.Add(ctx, int64(bytes)) //nolint:gosec // object sizes fit int64.
}

// BranchFailed records one branch excluded by a per-branch error.
func (m *RunMetrics) BranchFailed(ctx context.Context) {
	if m == nil {
		return
	}

	m.branchesFailed.Add(ctx, 1)
}

// ObjectsDropped records objects skipped during one branch's collection.
func (m *RunMetrics) ObjectsDropped(ctx context.Context, count int) {
	if m == nil || count == 0 {
		return
	}

	m.objectsDropped.Add(ctx, int64(count))
}

// RunCompleted records the wall time of one finished run.
func (m *RunMetrics) RunCompleted(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.runDuration.Record(ctx, elapsed.Seconds())
}
