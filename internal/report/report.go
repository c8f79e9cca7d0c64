// Package report renders accounting results as JSON files, terminal tables
// and HTML charts.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/Sumatoshi-tech/branchweight/internal/accounting"
)

const (
	bytesPerMB = 1024 * 1024

	reportDirPerm  = 0o755
	reportFilePerm = 0o644

	// Sizes render with one decimal above this many megabytes and two
	// decimals above the lower bound; anything smaller collapses to "0 MB".
	oneDecimalFloorMB = 0.1
	twoDecimalFloorMB = 0.01
)

// BranchEntry is the compact per-branch record written to branches.json.
type BranchEntry struct {
	Branch       string `json:"branch"`
	TotalSizeMB  string `json:"totalSizeMB"`
	UniqueSizeMB string `json:"uniqueSizeMB"`
	SharedSizeMB string `json:"sharedSizeMB"`
}

// BranchEntryFull extends BranchEntry with raw byte and object counts for
// machine consumers.
type BranchEntryFull struct {
	BranchEntry

	TotalSizeBytes  uint64 `json:"totalSizeBytes"`
	UniqueSizeBytes uint64 `json:"uniqueSizeBytes"`
	SharedSizeBytes uint64 `json:"sharedSizeBytes"`
	TotalObjects    int    `json:"totalObjects"`
	UniqueObjects   int    `json:"uniqueObjects"`
	SharedObjects   int    `json:"sharedObjects"`
}

// Summary is the run-level record written to summary.json.
type Summary struct {
	DefaultBranch   string   `json:"defaultBranch"`
	BranchCount     int      `json:"branchCount"`
	FailedBranches  []string `json:"failedBranches,omitempty"`
	UniqueSizeMB    string   `json:"uniqueSizeMB"`
	SharedSizeMB    string   `json:"sharedSizeMB"`
	DistinctSizeMB  string   `json:"distinctSizeMB"`
	DistinctObjects int      `json:"distinctObjects"`
}

// CommitEntry is one row of a per-branch commit breakdown file.
type CommitEntry struct {
	Commit  string `json:"commit"`
	SizeMB  string `json:"sizeMB"`
	Bytes   uint64 `json:"bytes"`
	Objects int    `json:"objects"`
}

// FormatSizeMB renders a byte count as a megabyte string. Values above a
// tenth of a megabyte keep one decimal, values above a hundredth keep two,
// and everything smaller prints as "0 MB" to keep reports scannable.
func FormatSizeMB(bytes uint64) string {
	mb := float64(bytes) / bytesPerMB

	switch {
	case mb >= oneDecimalFloorMB:
		return fmt.Sprintf("%.1f MB", mb)
	case mb >= twoDecimalFloorMB:
		return fmt.Sprintf("%.2f MB", mb)
	default:
		return "0 MB"
	}
}

// Writer persists run results under a single output directory.
type Writer struct {
	dir string
}

// NewWriter creates the output directory if needed and returns a Writer
// rooted there.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, reportDirPerm); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	return &Writer{dir: dir}, nil
}

// Dir returns the directory reports are written into.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteResult writes branches.json, branches_full.json and summary.json for
// a completed run.
func (w *Writer) WriteResult(defaultBranch string, result *accounting.Result) error {
	entries := make([]BranchEntry, 0, len(result.Weights))
	full := make([]BranchEntryFull, 0, len(result.Weights))

	for _, weight := range result.Weights {
		entry := BranchEntry{
			Branch:       weight.Branch,
			TotalSizeMB:  FormatSizeMB(weight.TotalSize),
			UniqueSizeMB: FormatSizeMB(weight.UniqueSize),
			SharedSizeMB: FormatSizeMB(weight.SharedSize),
		}

		entries = append(entries, entry)
		full = append(full, BranchEntryFull{
			BranchEntry:     entry,
			TotalSizeBytes:  weight.TotalSize,
			UniqueSizeBytes: weight.UniqueSize,
			SharedSizeBytes: weight.SharedSize,
			TotalObjects:    weight.TotalObjects,
			UniqueObjects:   weight.UniqueObjects,
			SharedObjects:   weight.SharedObjects,
		})
	}

	if err := w.writeJSON("branches.json", entries); err != nil {
		return err
	}

	if err := w.writeJSON("branches_full.json", full); err != nil {
		return err
	}

	return w.writeJSON("summary.json", buildSummary(defaultBranch, result))
}

// WriteBreakdown writes breakdown_<branch>.json for one branch. Path
// separators in branch names are flattened so remote branches like
// "origin/feature" stay within the report directory.
func (w *Writer) WriteBreakdown(branch string, weights []accounting.CommitWeight) error {
	entries := make([]CommitEntry, 0, len(weights))
	for _, weight := range weights {
		entries = append(entries, CommitEntry{
			Commit:  weight.Commit,
			SizeMB:  FormatSizeMB(weight.Size),
			Bytes:   weight.Size,
			Objects: weight.Objects,
		})
	}

	return w.writeJSON(breakdownFileName(branch), entries)
}

func (w *Writer) writeJSON(name string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, append(data, '\n'), reportFilePerm); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}

func buildSummary(defaultBranch string, result *accounting.Result) Summary {
	summary := Summary{
		DefaultBranch:   defaultBranch,
		BranchCount:     result.Totals.Branches,
		UniqueSizeMB:    FormatSizeMB(result.Totals.UniqueSize),
		SharedSizeMB:    FormatSizeMB(result.Totals.SharedSize),
		DistinctSizeMB:  FormatSizeMB(result.Totals.DistinctSize),
		DistinctObjects: result.Totals.DistinctObjects,
	}

	for branch := range result.Errors {
		summary.FailedBranches = append(summary.FailedBranches, branch)
	}

	slices.Sort(summary.FailedBranches)

	return summary
}

func breakdownFileName(branch string) string {
	safe := make([]byte, len(branch))
	for i := 0; i < len(branch); i++ {
		switch branch[i] {
		case '/', '\\':
			safe[i] = '_'
		default:
			safe[i] = branch[i]
		}
	}

	return "breakdown_" + string(safe) + ".json"
}
