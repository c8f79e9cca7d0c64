package gitcli

import "context"

// Branch is a named reference plus the tip it pointed at when branches were
// enumerated. Tips are snapshotted once per run; a branch moving afterwards
// surfaces as a per-branch resolution error, not as corrupted output.
type Branch struct {
	Name string
	Tip  string
}

// BlobRecord describes one blob object: its id and on-disk footprint as
// reported by the storage backend.
type BlobRecord struct {
	ID   OID
	Size uint64
}

// Source is the object-graph view the accounting engine consumes. All methods
// are safe for concurrent use; the repository is only ever read.
type Source interface {
	// DefaultBranch detects the repository's default branch
	// (refs/heads/master, then refs/heads/main).
	DefaultBranch(ctx context.Context) (string, error)

	// UnmergedBranches lists local and remote-tracking branches whose history
	// is not fully contained in defaultRef. Symbolic */HEAD refs are skipped.
	UnmergedBranches(ctx context.Context, defaultRef string) ([]Branch, error)

	// ExclusiveBlobs streams every blob reachable from tip but not from
	// exclude, calling fn once per blob. Objects whose metadata cannot be
	// read (for example deleted by a concurrent gc) are dropped; the count
	// of dropped objects is returned so the caller can log it.
	ExclusiveBlobs(ctx context.Context, tip, exclude string, fn func(BlobRecord)) (int, error)

	// UnmergedCommits lists commits reachable from tip but not from exclude,
	// newest first.
	UnmergedCommits(ctx context.Context, tip, exclude string) ([]string, error)

	// CommitBlobs returns the blob ids a commit introduces relative to its
	// parents (added or modified entries).
	CommitBlobs(ctx context.Context, commit string) ([]OID, error)
}
