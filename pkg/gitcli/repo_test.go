package gitcli

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireGit skips integration tests on machines without a git binary.
func requireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// gitCmd runs one git command in dir and fails the test on any error.
func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()

	full := append([]string{"-C", dir,
		"-c", "user.name=test",
		"-c", "user.email=test@example.com",
	}, args...)

	out, err := exec.Command("git", full...).CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)

	return strings.TrimSpace(string(out))
}

func writeAndCommit(t *testing.T, dir, name, content, message string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	gitCmd(t, dir, "add", name)
	gitCmd(t, dir, "commit", "-q", "-m", message)
}

// seedRepo builds a repository with one commit on master and a feature
// branch adding one extra file on top.
func seedRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	gitCmd(t, dir, "init", "-q", "-b", "master")
	writeAndCommit(t, dir, "base.txt", "shared payload\n", "base")
	gitCmd(t, dir, "checkout", "-q", "-b", "feature")
	writeAndCommit(t, dir, "extra.txt", strings.Repeat("feature payload\n", 64), "add extra")
	gitCmd(t, dir, "checkout", "-q", "master")

	return dir
}

func TestOpen_WorkTree(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir := seedRepo(t)

	repo, err := Open(context.Background(), dir)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved, repo.Root())
}

func TestOpen_BareRepository(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir := t.TempDir()
	gitCmd(t, dir, "init", "-q", "--bare", "-b", "master")

	repo, err := Open(context.Background(), dir)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved, repo.Root())
}

func TestOpen_NotARepository(t *testing.T) {
	t.Parallel()
	requireGit(t)

	_, err := Open(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrNotARepository)
}

func TestRepository_BranchEnumeration(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir := seedRepo(t)

	repo, err := Open(context.Background(), dir)
	require.NoError(t, err)

	ctx := context.Background()

	defaultRef, err := repo.DefaultBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/master", defaultRef)

	branches, err := repo.UnmergedBranches(ctx, defaultRef)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.Equal(t, "feature", branches[0].Name)
	assert.Equal(t, gitCmd(t, dir, "rev-parse", "feature"), branches[0].Tip)
}

func TestExclusiveBlobs_StreamsFeatureOnlyObjects(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir := seedRepo(t)

	repo, err := Open(context.Background(), dir)
	require.NoError(t, err)

	ctx := context.Background()
	tip := gitCmd(t, dir, "rev-parse", "feature")

	var records []BlobRecord

	dropped, err := repo.ExclusiveBlobs(ctx, tip, "refs/heads/master", func(record BlobRecord) {
		records = append(records, record)
	})
	require.NoError(t, err)
	assert.Zero(t, dropped)

	// Only extra.txt's blob is unreachable from master; the shared base.txt
	// blob and all commits/trees must not surface.
	require.Len(t, records, 1)
	assert.Equal(t, gitCmd(t, dir, "rev-parse", "feature:extra.txt"), records[0].ID.String())
	assert.Positive(t, records[0].Size)
}

func TestExclusiveBlobs_UnresolvableTip(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir := seedRepo(t)

	repo, err := Open(context.Background(), dir)
	require.NoError(t, err)

	calls := 0

	_, err = repo.ExclusiveBlobs(context.Background(),
		"deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", "refs/heads/master",
		func(BlobRecord) { calls++ })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rev-list")
	assert.Zero(t, calls)
}

func TestExclusiveBlobs_CancelledContext(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir := seedRepo(t)

	repo, err := Open(context.Background(), dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tip := gitCmd(t, dir, "rev-parse", "feature")

	_, err = repo.ExclusiveBlobs(ctx, tip, "refs/heads/master", func(BlobRecord) {})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRepository_CommitWalk(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir := seedRepo(t)

	repo, err := Open(context.Background(), dir)
	require.NoError(t, err)

	ctx := context.Background()
	tip := gitCmd(t, dir, "rev-parse", "feature")

	commits, err := repo.UnmergedCommits(ctx, tip, "refs/heads/master")
	require.NoError(t, err)
	require.Equal(t, []string{tip}, commits)

	blobs, err := repo.CommitBlobs(ctx, tip)
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, gitCmd(t, dir, "rev-parse", "feature:extra.txt"), blobs[0].String())
}
