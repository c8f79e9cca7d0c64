package gitcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Sentinel errors for repository access.
var (
	// ErrGitUnavailable indicates the git binary cannot be invoked at all.
	// This is fatal for a run: no branch can be processed without it.
	ErrGitUnavailable = errors.New("git binary not found in PATH")
	// ErrNoDefaultBranch indicates neither refs/heads/master nor
	// refs/heads/main resolves. Use an explicit branch override.
	ErrNoDefaultBranch = errors.New("could not detect default branch (master/main)")
	// ErrNotARepository indicates the path does not belong to a git work tree
	// or bare repository.
	ErrNotARepository = errors.New("not a git repository")
)

// Repository is the subprocess-backed Source implementation. It holds the
// resolved repository root and runs every git command with -C <root>.
type Repository struct {
	root string
}

// Open resolves path to a repository root and verifies git is invocable.
func Open(ctx context.Context, path string) (*Repository, error) {
	_, lookErr := exec.LookPath("git")
	if lookErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrGitUnavailable, lookErr)
	}

	abs, absErr := filepath.Abs(path)
	if absErr != nil {
		return nil, fmt.Errorf("resolve repository path: %w", absErr)
	}

	probe := &Repository{root: abs}

	bare, err := probe.runGit(ctx, "rev-parse", "--is-bare-repository")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotARepository, abs)
	}

	// Bare repositories have no work tree, so --show-toplevel would fail;
	// their root is the git directory itself.
	if strings.TrimSpace(bare) == "true" {
		gitDir, dirErr := probe.runGit(ctx, "rev-parse", "--absolute-git-dir")
		if dirErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotARepository, abs)
		}

		return &Repository{root: strings.TrimSpace(gitDir)}, nil
	}

	out, err := probe.runGit(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotARepository, abs)
	}

	return &Repository{root: strings.TrimSpace(out)}, nil
}

// Root returns the resolved repository root directory.
func (r *Repository) Root() string {
	return r.root
}

// runGit executes one git command in the repository and returns its stdout.
// Stderr is captured and folded into the returned error.
func (r *Repository) runGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", r.root}, args...)...)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], runErr, msg)
		}

		return "", fmt.Errorf("git %s: %w", args[0], runErr)
	}

	return stdout.String(), nil
}

// DefaultBranch implements Source.
func (r *Repository) DefaultBranch(ctx context.Context) (string, error) {
	for _, name := range []string{"refs/heads/master", "refs/heads/main"} {
		_, err := r.runGit(ctx, "rev-parse", "--verify", "--quiet", name)
		if err == nil {
			return name, nil
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", ErrNoDefaultBranch
}

// UnmergedBranches implements Source.
func (r *Repository) UnmergedBranches(ctx context.Context, defaultRef string) ([]Branch, error) {
	out, err := r.runGit(ctx,
		"for-each-ref",
		"--format=%(refname) %(objectname)",
		"--no-merged="+defaultRef,
		"refs/heads",
		"refs/remotes",
	)
	if err != nil {
		return nil, fmt.Errorf("list unmerged branches: %w", err)
	}

	var branches []Branch

	for line := range strings.Lines(out) {
		branch, ok := parseRefLine(line)
		if ok {
			branches = append(branches, branch)
		}
	}

	return branches, nil
}

// UnmergedCommits implements Source.
func (r *Repository) UnmergedCommits(ctx context.Context, tip, exclude string) ([]string, error) {
	out, err := r.runGit(ctx, "rev-list", tip, "--not", exclude)
	if err != nil {
		return nil, fmt.Errorf("list unmerged commits: %w", err)
	}

	var commits []string

	for line := range strings.Lines(out) {
		commit := strings.TrimSpace(line)
		if commit != "" {
			commits = append(commits, commit)
		}
	}

	return commits, nil
}

// CommitBlobs implements Source.
func (r *Repository) CommitBlobs(ctx context.Context, commit string) ([]OID, error) {
	out, err := r.runGit(ctx, "diff-tree", "-r", "--diff-filter=AM", "--no-commit-id", commit)
	if err != nil {
		return nil, fmt.Errorf("diff commit %s: %w", commit, err)
	}

	var ids []OID

	for line := range strings.Lines(out) {
		id, ok := parseDiffTreeLine(line)
		if ok {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// parseRefLine parses one "refname objectname" line from for-each-ref.
// Symbolic */HEAD refs are rejected; known ref namespaces are stripped.
func parseRefLine(line string) (Branch, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Branch{}, false
	}

	refname, tip := fields[0], fields[1]
	if strings.HasSuffix(refname, "/HEAD") {
		return Branch{}, false
	}

	name := refname
	if stripped, ok := strings.CutPrefix(refname, "refs/heads/"); ok {
		name = stripped
	} else if stripped, ok := strings.CutPrefix(refname, "refs/remotes/"); ok {
		name = stripped
	}

	return Branch{Name: name, Tip: tip}, true
}

// parseDiffTreeLine extracts the post-image blob id from one raw diff-tree
// line (":srcmode dstmode srcoid dstoid status\tpath").
func parseDiffTreeLine(line string) (OID, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return OID{}, false
	}

	return ParseOID(fields[3])
}
