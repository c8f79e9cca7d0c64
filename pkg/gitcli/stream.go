package gitcli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// batchCheckFormat asks cat-file for the on-disk (packed/compressed) size,
// not the logical size. This is the footprint actually freed by deleting
// the objects.
const batchCheckFormat = "--batch-check=%(objectname) %(objecttype) %(objectsize:disk)"

// scanBufferSize sizes the line scanners for plumbing output. rev-list
// --objects emits "oid path" lines; paths can be long.
const scanBufferSize = 512 * 1024

// ExclusiveBlobs implements Source. It pipes
//
//	git rev-list --objects <tip> --not <exclude>
//
// into
//
//	git cat-file --batch-check=%(objectname) %(objecttype) %(objectsize:disk)
//
// and invokes fn for every blob record. Both subprocesses are bound to ctx,
// so cancelling the run terminates them promptly.
func (r *Repository) ExclusiveBlobs(ctx context.Context, tip, exclude string, fn func(BlobRecord)) (int, error) {
	revList := exec.CommandContext(ctx, "git", "-C", r.root,
		"rev-list", "--objects", tip, "--not", exclude)
	catFile := exec.CommandContext(ctx, "git", "-C", r.root,
		"cat-file", batchCheckFormat)

	revOut, revPipeErr := revList.StdoutPipe()
	if revPipeErr != nil {
		return 0, fmt.Errorf("rev-list stdout: %w", revPipeErr)
	}

	catIn, catInErr := catFile.StdinPipe()
	if catInErr != nil {
		return 0, fmt.Errorf("cat-file stdin: %w", catInErr)
	}

	catOut, catOutErr := catFile.StdoutPipe()
	if catOutErr != nil {
		return 0, fmt.Errorf("cat-file stdout: %w", catOutErr)
	}

	if startErr := revList.Start(); startErr != nil {
		return 0, fmt.Errorf("start rev-list: %w", startErr)
	}

	if startErr := catFile.Start(); startErr != nil {
		_ = revList.Process.Kill()
		_ = revList.Wait()

		return 0, fmt.Errorf("start cat-file: %w", startErr)
	}

	// Feed object ids from rev-list into cat-file on a separate goroutine,
	// stripping the path column. The pipe is closed once rev-list is drained
	// so cat-file sees EOF and flushes its last records.
	feedDone := make(chan error, 1)

	go func() {
		defer catIn.Close()

		feedDone <- feedObjectIDs(revOut, catIn)
	}()

	dropped, scanErr := scanBatchCheck(catOut, fn)

	feedErr := <-feedDone

	revErr := revList.Wait()
	catErr := catFile.Wait()

	if ctx.Err() != nil {
		return dropped, ctx.Err()
	}

	if revErr != nil {
		// rev-list failing means the tip (or exclusion ref) did not resolve.
		return dropped, fmt.Errorf("rev-list %s: %w", tip, revErr)
	}

	if catErr != nil {
		return dropped, fmt.Errorf("cat-file: %w", catErr)
	}

	if scanErr != nil {
		return dropped, fmt.Errorf("read cat-file output: %w", scanErr)
	}

	if feedErr != nil {
		// A truncated id feed means the branch set is incomplete; that must
		// surface as a branch failure, not as a silent undercount.
		return dropped, fmt.Errorf("read rev-list output: %w", feedErr)
	}

	return dropped, nil
}

// feedObjectIDs copies the first field of every rev-list line into w,
// one id per line, and returns the scan error that stopped the copy, if any.
// Write errors stop the copy without being reported here; the consumer's
// exit status is what gets reported.
func feedObjectIDs(revOut io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(revOut)
	scanner.Buffer(make([]byte, 0, scanBufferSize), scanBufferSize)
	writer := bufio.NewWriter(w)

	for scanner.Scan() {
		id := firstField(scanner.Text())
		if id == "" {
			continue
		}

		_, writeErr := writer.WriteString(id + "\n")
		if writeErr != nil {
			return nil
		}
	}

	_ = writer.Flush()

	return scanner.Err()
}

// scanBatchCheck parses cat-file --batch-check output, calling fn for every
// blob record. Non-blob objects are traversal metadata and are skipped;
// missing or malformed records are counted as dropped.
func scanBatchCheck(catOut io.Reader, fn func(BlobRecord)) (int, error) {
	scanner := bufio.NewScanner(catOut)
	scanner.Buffer(make([]byte, 0, scanBufferSize), scanBufferSize)

	dropped := 0

	for scanner.Scan() {
		record, kind := parseBatchCheckLine(scanner.Text())

		switch kind {
		case recordBlob:
			fn(record)
		case recordOther:
			// Commits, trees, and tags structure the graph but carry no
			// file payload to account for.
		case recordDropped:
			dropped++
		}
	}

	if scanErr := scanner.Err(); scanErr != nil {
		return dropped, scanErr
	}

	return dropped, nil
}

// recordKind classifies one cat-file --batch-check output line.
type recordKind int

const (
	recordBlob recordKind = iota
	recordOther
	recordDropped
)

// parseBatchCheckLine parses one "oid type size" line.
func parseBatchCheckLine(line string) (BlobRecord, recordKind) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return BlobRecord{}, recordDropped
	}

	// "<oid> missing" means the object vanished between rev-list and
	// cat-file (concurrent repository mutation). Recoverable: drop it.
	if fields[1] == "missing" || fields[1] == "ambiguous" {
		return BlobRecord{}, recordDropped
	}

	if fields[1] != "blob" {
		return BlobRecord{}, recordOther
	}

	if len(fields) < 3 {
		return BlobRecord{}, recordDropped
	}

	id, okID := ParseOID(fields[0])
	if !okID {
		return BlobRecord{}, recordDropped
	}

	size, sizeErr := strconv.ParseUint(fields[2], 10, 64)
	if sizeErr != nil {
		return BlobRecord{}, recordDropped
	}

	return BlobRecord{ID: id, Size: size}, recordBlob
}

// firstField returns the first whitespace-separated field of line.
func firstField(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}
