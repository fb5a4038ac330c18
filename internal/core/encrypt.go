package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/hyperdrive-data/hyperdrive/internal/crypto"
	"github.com/hyperdrive-data/hyperdrive/internal/storage"
)

// Result lists what an operation did per file
type Result struct {
	Done    []string // Files written, uploaded or downloaded
	Skipped []string // Files left alone
	Errors  []string // Per-file failures; the operation carried on
}

func (r *Result) fail(out func(string, ...any), format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Errors = append(r.Errors, msg)
	out("error: %s\n", msg)
}

func (w *Workspace) printf(format string, args ...any) {
	fmt.Fprintf(w.out, format, args...)
}

// Encrypt writes <path><suffix> for each plaintext path and records it in the ledger.
// A file whose plaintext and blob match the ledger is skipped. With remove the
// plaintext is deleted once its blob is written.
func (w *Workspace) Encrypt(ctx context.Context, c *crypto.Cryptographer, paths []string, remove bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	db, err := w.openLedger(true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := verifyCheck(db, c); err != nil {
		return nil, err
	}
	if _, err := db.GetCheck(); errors.Is(err, storage.ErrNotFound) {
		if err := writeCheck(db, c); err != nil {
			return nil, fmt.Errorf("failed to store password check: %w", err)
		}
	}

	result := &Result{}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		w.encryptOne(db, c, p, remove, result)
	}

	if len(result.Done) > 0 {
		if err := db.UpdateModified(); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (w *Workspace) encryptOne(db *storage.Ledger, c *crypto.Cryptographer, input string, remove bool, result *Result) {
	rel, err := w.root.Clean(input)
	if err != nil {
		result.fail(w.printf, "invalid path %s: %v", input, err)
		return
	}
	if w.isBlob(rel) {
		result.fail(w.printf, "%s is already encrypted", rel)
		return
	}
	if rel == w.ledgerName {
		result.fail(w.printf, "refusing to encrypt the ledger")
		return
	}

	info, err := w.root.Stat(rel)
	if err != nil {
		result.fail(w.printf, "cannot access %s: %v", rel, err)
		return
	}
	if info.IsDir() {
		result.Skipped = append(result.Skipped, rel)
		w.printf("warning: skipping directory %s\n", rel)
		return
	}

	content, err := w.root.ReadFile(rel)
	if err != nil {
		result.fail(w.printf, "cannot read %s: %v", rel, err)
		return
	}
	defer crypto.ClearBytes(content)
	hash := hashHex(content)
	blobPath := w.BlobPath(rel)

	prev, err := db.GetEntry(rel)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		result.fail(w.printf, "%s: cannot read ledger entry: %v", rel, err)
		return
	}
	if prev != nil && prev.Hash == hash && w.blobMatches(blobPath, prev.BlobHash) {
		result.Skipped = append(result.Skipped, rel)
		w.printf("unchanged: %s\n", rel)
		w.removePlaintext(rel, remove, result)
		return
	}

	blob, err := c.Encrypt(content)
	if err != nil {
		result.fail(w.printf, "%s: cannot encrypt: %v", rel, err)
		return
	}
	if err := w.root.WriteFile(blobPath, blob, FilePermSecure, DirPermSecure); err != nil {
		result.fail(w.printf, "%s: cannot write blob: %v", blobPath, err)
		return
	}

	entry := storage.Entry{
		Path:        rel,
		Blob:        blobPath,
		Size:        info.Size(),
		Mode:        uint32(info.Mode().Perm()),
		ModTime:     info.ModTime(),
		Hash:        hash,
		BlobHash:    hashHex(blob),
		EncryptedAt: time.Now().UTC(),
	}
	if prev != nil {
		entry.RemoteKey = prev.RemoteKey
	}
	if err := db.PutEntry(entry); err != nil {
		result.fail(w.printf, "%s: cannot update ledger: %v", rel, err)
		return
	}

	w.logger.Debug("encrypted file", "path", rel, "size", info.Size())
	result.Done = append(result.Done, rel)
	w.printf("encrypted: %s -> %s\n", rel, blobPath)
	w.removePlaintext(rel, remove, result)
}

func (w *Workspace) blobMatches(blobPath, want string) bool {
	if want == "" {
		return false
	}
	blob, err := w.root.ReadFile(blobPath)
	if err != nil {
		return false
	}
	return hashHex(blob) == want
}

func (w *Workspace) removePlaintext(rel string, remove bool, result *Result) {
	if !remove {
		return
	}
	if err := w.root.Remove(rel); err != nil && !errors.Is(err, fs.ErrNotExist) {
		result.fail(w.printf, "%s: cannot remove plaintext: %v", rel, err)
		return
	}
	w.printf("removed: %s\n", rel)
}
