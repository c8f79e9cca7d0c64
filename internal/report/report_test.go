package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchweight/internal/accounting"
)

func TestFormatSizeMB(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		bytes uint64
		want  string
	}{
		{name: "zero", bytes: 0, want: "0 MB"},
		{name: "one_mebibyte", bytes: 1024 * 1024, want: "1.0 MB"},
		{name: "half_mebibyte", bytes: 512 * 1024, want: "0.5 MB"},
		{name: "hundred_kib", bytes: 100 * 1024, want: "0.10 MB"},
		{name: "fifteen_kib", bytes: 15 * 1024, want: "0.01 MB"},
		{name: "ten_kib_rounds_to_zero", bytes: 10 * 1024, want: "0 MB"},
		{name: "gigabyte_scale", bytes: 3 * 1024 * 1024 * 1024, want: "3072.0 MB"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, FormatSizeMB(tc.bytes))
		})
	}
}

func sampleResult() *accounting.Result {
	return &accounting.Result{
		Weights: []accounting.BranchWeight{
			{
				Branch:    "feature-a",
				TotalSize: 150 * 1024 * 1024, UniqueSize: 100 * 1024 * 1024, SharedSize: 50 * 1024 * 1024,
				TotalObjects: 2, UniqueObjects: 1, SharedObjects: 1,
			},
			{
				Branch:    "feature-b",
				TotalSize: 80 * 1024 * 1024, UniqueSize: 30 * 1024 * 1024, SharedSize: 50 * 1024 * 1024,
				TotalObjects: 2, UniqueObjects: 1, SharedObjects: 1,
			},
		},
		Errors: map[string]error{
			"stale-branch": errors.New("resolving objects: exit status 128"),
		},
		Totals: accounting.Totals{
			Branches:        2,
			UniqueSize:      130 * 1024 * 1024,
			SharedSize:      100 * 1024 * 1024,
			DistinctSize:    180 * 1024 * 1024,
			DistinctObjects: 3,
		},
	}
}

func TestWriter_WriteResult(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writer, err := NewWriter(filepath.Join(dir, "reports"))
	require.NoError(t, err)

	require.NoError(t, writer.WriteResult("master", sampleResult()))

	var entries []BranchEntry

	data, err := os.ReadFile(filepath.Join(writer.Dir(), "branches.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &entries))

	require.Len(t, entries, 2)
	assert.Equal(t, "feature-a", entries[0].Branch)
	assert.Equal(t, "150.0 MB", entries[0].TotalSizeMB)
	assert.Equal(t, "100.0 MB", entries[0].UniqueSizeMB)
	assert.Equal(t, "50.0 MB", entries[0].SharedSizeMB)

	var full []BranchEntryFull

	data, err = os.ReadFile(filepath.Join(writer.Dir(), "branches_full.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &full))

	require.Len(t, full, 2)
	assert.Equal(t, uint64(150*1024*1024), full[0].TotalSizeBytes)
	assert.Equal(t, 1, full[0].UniqueObjects)

	var summary Summary

	data, err = os.ReadFile(filepath.Join(writer.Dir(), "summary.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &summary))

	assert.Equal(t, "master", summary.DefaultBranch)
	assert.Equal(t, 2, summary.BranchCount)
	assert.Equal(t, []string{"stale-branch"}, summary.FailedBranches)
	assert.Equal(t, "130.0 MB", summary.UniqueSizeMB)
	assert.Equal(t, "180.0 MB", summary.DistinctSizeMB)
	assert.Equal(t, 3, summary.DistinctObjects)
}

func TestWriter_WriteBreakdown(t *testing.T) {
	t.Parallel()

	writer, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	weights := []accounting.CommitWeight{
		{Commit: "c1", Size: 1024 * 1024, Objects: 3},
		{Commit: "c2", Size: 10 * 1024, Objects: 1},
	}

	require.NoError(t, writer.WriteBreakdown("origin/feature-x", weights))

	// Remote branch names must not escape the report directory.
	data, err := os.ReadFile(filepath.Join(writer.Dir(), "breakdown_origin_feature-x.json"))
	require.NoError(t, err)

	var entries []CommitEntry

	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "1.0 MB", entries[0].SizeMB)
	assert.Equal(t, uint64(1024*1024), entries[0].Bytes)
	assert.Equal(t, "0 MB", entries[1].SizeMB)
}

func TestRenderTable(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	RenderTable(&buf, "master", sampleResult(), TableOptions{NoColor: true})

	out := buf.String()
	assert.Contains(t, out, "feature-a")
	assert.Contains(t, out, "feature-b")
	assert.Contains(t, out, "not merged into master")
	assert.Contains(t, out, "stale-branch")
	assert.Contains(t, out, "2 branches")
}

func TestRenderTable_Limit(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	RenderTable(&buf, "master", sampleResult(), TableOptions{Limit: 1, NoColor: true})

	out := buf.String()
	assert.Contains(t, out, "feature-a")
	assert.NotContains(t, out, "feature-b")
}

func TestWriter_WritePlot(t *testing.T) {
	t.Parallel()

	writer, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	path, err := writer.WritePlot("master", sampleResult())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "feature-a")
	assert.Contains(t, string(data), "Branch object weight")
}
