package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchweight/internal/accounting"
	"github.com/Sumatoshi-tech/branchweight/internal/config"
	"github.com/Sumatoshi-tech/branchweight/pkg/gitcli"
)

// stubSource is an in-memory gitcli.Source for command tests.
type stubSource struct {
	defaultRef string
	branches   []gitcli.Branch
	blobs      map[string][]gitcli.BlobRecord
	commits    map[string][]string
	perCommit  map[string][]gitcli.OID
}

func (s *stubSource) DefaultBranch(context.Context) (string, error) {
	return s.defaultRef, nil
}

func (s *stubSource) UnmergedBranches(context.Context, string) ([]gitcli.Branch, error) {
	return s.branches, nil
}

func (s *stubSource) ExclusiveBlobs(
	_ context.Context, tip, _ string, fn func(gitcli.BlobRecord),
) (int, error) {
	for _, record := range s.blobs[tip] {
		fn(record)
	}

	return 0, nil
}

func (s *stubSource) UnmergedCommits(_ context.Context, tip, _ string) ([]string, error) {
	return s.commits[tip], nil
}

func (s *stubSource) CommitBlobs(_ context.Context, commit string) ([]gitcli.OID, error) {
	ids, ok := s.perCommit[commit]
	if !ok {
		return nil, errors.New("unknown commit")
	}

	return ids, nil
}

func testSource() *stubSource {
	return &stubSource{
		defaultRef: "refs/heads/master",
		branches: []gitcli.Branch{
			{Name: "feature-a", Tip: "tip-a"},
			{Name: "feature-b", Tip: "tip-b"},
		},
		blobs: map[string][]gitcli.BlobRecord{
			"tip-a": {
				{ID: gitcli.OID{19: 1}, Size: 100},
				{ID: gitcli.OID{19: 2}, Size: 50},
			},
			"tip-b": {
				{ID: gitcli.OID{19: 2}, Size: 50},
			},
		},
		commits: map[string][]string{
			"tip-a": {"c1"},
		},
		perCommit: map[string][]gitcli.OID{
			"c1": {{19: 1}},
		},
	}
}

func execute(t *testing.T, source gitcli.Source, args ...string) (string, error) {
	t.Helper()

	cmd := newAnalyzeCommandWithDeps(func(context.Context, string) (gitcli.Source, error) {
		return source, nil
	})

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestAnalyze_WritesTableAndReports(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, testSource(), "--out", dir, "--no-color")
	require.NoError(t, err)

	assert.Contains(t, out, "feature-a")
	assert.Contains(t, out, "feature-b")
	assert.Contains(t, out, "not merged into master")

	for _, name := range []string{"branches.json", "branches_full.json", "summary.json"} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, statErr, name)
	}
}

func TestAnalyze_TopWritesBreakdown(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, testSource(), "--out", dir, "--no-color", "--top", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "by introducing commit")

	_, statErr := os.Stat(filepath.Join(dir, "breakdown_feature-a.json"))
	assert.NoError(t, statErr)
}

func TestAnalyze_ExplicitBreakdown(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, testSource(), "--out", dir, "--no-color", "--breakdown", "feature-a")
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "breakdown_feature-a.json"))
	assert.NoError(t, statErr)
}

func TestAnalyze_UnknownBreakdownBranchErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, testSource(), "--out", dir, "--breakdown", "nope")
	require.ErrorIs(t, err, accounting.ErrUnknownBranch)
}

func TestAnalyze_DefaultBranchOverride(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, testSource(), "--out", dir, "--no-color", "--branch", "develop")
	require.NoError(t, err)

	assert.Contains(t, out, "not merged into develop")
}

func TestAnalyze_NoUnmergedBranches(t *testing.T) {
	source := testSource()
	source.branches = nil

	out, err := execute(t, source, "--out", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "All branches are merged into master.")
}

func TestAnalyze_PlotWritesChart(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, testSource(), "--out", dir, "--no-color", "--plot")
	require.NoError(t, err)

	assert.Contains(t, out, "Chart written to")

	_, statErr := os.Stat(filepath.Join(dir, "branches.html"))
	assert.NoError(t, statErr)
}

func TestAnalyze_InvalidFlagValue(t *testing.T) {
	_, err := execute(t, testSource(), "--workers", "-2")
	require.ErrorIs(t, err, config.ErrInvalidWorkers)
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "yes_word", input: "Yes\n", want: true},
		{name: "no", input: "n\n", want: false},
		{name: "empty_line_defaults_to_no", input: "\n", want: false},
		{name: "eof_defaults_to_no", input: "", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var prompt bytes.Buffer

			got := confirm(strings.NewReader(tc.input), &prompt, 500)
			assert.Equal(t, tc.want, got)
			assert.Contains(t, prompt.String(), "500 branches")
		})
	}
}

func TestBreakdownTargets(t *testing.T) {
	t.Parallel()

	result := &accounting.Result{
		Weights: []accounting.BranchWeight{
			{Branch: "big"},
			{Branch: "medium"},
			{Branch: "small"},
		},
		Errors: map[string]error{"broken": errors.New("boom")},
	}

	cfg := &config.Config{Output: config.OutputConfig{Top: 2}}

	// Explicit branch first, then the heaviest, without duplicates.
	assert.Equal(t, []string{"medium", "big"}, breakdownTargets(cfg, "medium", result))

	// Failed branches are never selected.
	assert.Empty(t, breakdownTargets(&config.Config{}, "broken", result))
}
