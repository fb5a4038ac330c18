package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/hyperdrive-data/hyperdrive/internal/crypto"
	"github.com/hyperdrive-data/hyperdrive/internal/git"
)

// File states reported by Status
const (
	StateUnchanged     = "unchanged"
	StateModified      = "modified"
	StateEncryptedOnly = "encrypted only"
	StateBlobMissing   = "blob missing"
)

// FileStatus represents the status of a tracked file
type FileStatus struct {
	Path   string
	Blob   string
	State  string
	Size   int64
	Pushed bool
}

// StatusInfo contains status information
type StatusInfo struct {
	Files          []FileStatus
	LastModified   time.Time
	TrackedCount   int
	UnchangedCount int
	ModifiedCount  int
	EncryptedOnly  int
	MissingBlobs   int
	PushedCount    int
	TotalSize      int64
	Algorithm      string
	KDF            string
	Git            *git.Report
}

// Status compares every ledger entry with the files on disk. No password is needed.
func (w *Workspace) Status(ctx context.Context) (*StatusInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := w.openLedger(false)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	lastModified, err := db.GetModified()
	if err != nil {
		lastModified = time.Time{}
	}

	status := &StatusInfo{
		LastModified: lastModified,
		Files:        make([]FileStatus, 0),
		Algorithm:    "AES-256-GCM",
		KDF:          fmt.Sprintf("scrypt (N=%d, r=%d, p=%d)", crypto.ScryptN, crypto.ScryptR, crypto.ScryptP),
	}

	entries, err := db.Entries()
	if err != nil {
		return nil, err
	}

	var plain, blobs []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Entries from a tampered ledger must not point outside the workspace
		rel, err := w.root.Clean(entry.Path)
		if err != nil {
			w.logger.Warn("skipping invalid ledger entry", "path", entry.Path, "error", err)
			continue
		}
		blob, err := w.root.Clean(entry.Blob)
		if err != nil {
			w.logger.Warn("skipping invalid ledger entry", "blob", entry.Blob, "error", err)
			continue
		}

		st := FileStatus{Path: rel, Blob: blob, Size: entry.Size, Pushed: entry.Pushed()}
		status.TrackedCount++
		status.TotalSize += entry.Size
		if st.Pushed {
			status.PushedCount++
		}
		plain = append(plain, rel)
		blobs = append(blobs, blob)

		st.State = w.fileState(rel, blob, entry.Hash)
		switch st.State {
		case StateBlobMissing:
			status.MissingBlobs++
		case StateEncryptedOnly:
			status.EncryptedOnly++
		case StateModified:
			status.ModifiedCount++
		case StateUnchanged:
			status.UnchangedCount++
		}
		status.Files = append(status.Files, st)
	}

	report, err := git.Check(ctx, w.dir, w.ledgerName, plain, blobs)
	if err == nil && report.IsRepo {
		status.Git = report
	}

	return status, nil
}

func (w *Workspace) fileState(rel, blob, hash string) string {
	if !w.root.Exists(blob) {
		return StateBlobMissing
	}
	content, err := w.root.ReadFile(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return StateEncryptedOnly
	}
	if err != nil {
		return StateModified
	}
	defer crypto.ClearBytes(content)
	if hashHex(content) != hash {
		return StateModified
	}
	return StateUnchanged
}

// Diff writes a unified diff from each decrypted blob to its local file and
// returns how many files differ.
func (w *Workspace) Diff(ctx context.Context, c *crypto.Cryptographer, out io.Writer, paths []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	db, err := w.openLedger(false)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if err := verifyCheck(db, c); err != nil {
		return 0, err
	}
	entries, err := db.Entries()
	if err != nil {
		return 0, err
	}

	targets, unmatched := w.resolveTargets(entries, paths)
	if len(unmatched) > 0 {
		return 0, fmt.Errorf("%w: %v", ErrNoMatch, unmatched)
	}

	changed := 0
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		blob, err := w.root.ReadFile(t.blob)
		if err != nil {
			fmt.Fprintf(out, "Blob missing: %s\n", t.blob)
			changed++
			continue
		}
		decrypted, err := c.Decrypt(blob)
		if err != nil {
			return changed, fmt.Errorf("%s: %w", t.plain, err)
		}

		local, err := w.root.ReadFile(t.plain)
		if errors.Is(err, fs.ErrNotExist) {
			crypto.ClearBytes(decrypted)
			fmt.Fprintf(out, "Only encrypted: %s\n", t.plain)
			changed++
			continue
		}
		if err != nil {
			crypto.ClearBytes(decrypted)
			return changed, fmt.Errorf("%s: %w", t.plain, err)
		}

		if diff := UnifiedDiff(t.plain, decrypted, local); diff != "" {
			fmt.Fprint(out, diff)
			changed++
		}
		crypto.ClearBytes(decrypted)
		crypto.ClearBytes(local)
	}

	return changed, nil
}
