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

// target is one plaintext/blob pair an operation works on
type target struct {
	plain string
	blob  string
	entry *storage.Entry
}

// resolveTargets maps user paths onto ledger entries. A path with no entry
// still becomes a target when its blob exists on disk.
func (w *Workspace) resolveTargets(entries []storage.Entry, paths []string) ([]target, []string) {
	if len(paths) == 0 {
		targets := make([]target, 0, len(entries))
		for i := range entries {
			targets = append(targets, target{plain: entries[i].Path, blob: entries[i].Blob, entry: &entries[i]})
		}
		return targets, nil
	}

	var (
		targets   []target
		unmatched []string
		seen      = make(map[string]bool)
	)
	for _, p := range paths {
		matched := w.selectEntries(entries, []string{p})
		for i := range matched {
			if seen[matched[i].Path] {
				continue
			}
			seen[matched[i].Path] = true
			targets = append(targets, target{plain: matched[i].Path, blob: matched[i].Blob, entry: &matched[i]})
		}
		if len(matched) > 0 {
			continue
		}

		rel, err := w.root.Clean(p)
		if err != nil {
			unmatched = append(unmatched, p)
			continue
		}
		plain := w.PlainPath(rel)
		blob := w.BlobPath(plain)
		if seen[plain] || !w.root.Exists(blob) {
			if !seen[plain] {
				unmatched = append(unmatched, p)
			}
			continue
		}
		seen[plain] = true
		targets = append(targets, target{plain: plain, blob: blob})
	}
	return targets, unmatched
}

// Decrypt restores plaintext files from their blobs. With no paths every ledger
// entry is decrypted. Explicit paths may name a blob that has no ledger entry.
// A local file that differs from the decrypted content is handled by strategy;
// StrategyAbort stops the run with ErrConflict.
func (w *Workspace) Decrypt(ctx context.Context, c *crypto.Cryptographer, strategy Strategy, paths []string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		db      *storage.Ledger
		entries []storage.Entry
		err     error
	)
	if w.Initialized() {
		db, err = w.openLedger(false)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		if err := verifyCheck(db, c); err != nil {
			return nil, err
		}
		entries, err = db.Entries()
		if err != nil {
			return nil, err
		}
	} else if len(paths) == 0 {
		return nil, ErrNotInitialized
	}

	targets, unmatched := w.resolveTargets(entries, paths)
	result := &Result{}
	for _, p := range unmatched {
		result.fail(w.printf, "%s: not tracked and no blob found", p)
	}
	if len(targets) == 0 {
		if len(unmatched) > 0 {
			return result, ErrNoMatch
		}
		return result, nil
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := w.decryptOne(db, c, t, strategy, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// decryptOne records per-file failures in result and returns only errors that stop the run
func (w *Workspace) decryptOne(db *storage.Ledger, c *crypto.Cryptographer, t target, strategy Strategy, result *Result) error {
	blob, err := w.root.ReadFile(t.blob)
	if errors.Is(err, fs.ErrNotExist) {
		result.fail(w.printf, "%s: blob missing (%s)", t.plain, t.blob)
		return nil
	}
	if err != nil {
		result.fail(w.printf, "%s: cannot read blob: %v", t.plain, err)
		return nil
	}

	plaintext, err := c.Decrypt(blob)
	if err != nil {
		result.fail(w.printf, "%s: cannot decrypt: %v", t.plain, err)
		return nil
	}
	defer crypto.ClearBytes(plaintext)

	blobHash := hashHex(blob)
	plainHash := hashHex(plaintext)
	// recorded means the blob on disk is the one the ledger entry describes
	recorded := t.entry != nil && t.entry.BlobHash == blobHash
	if recorded && t.entry.Hash != "" && t.entry.Hash != plainHash {
		result.fail(w.printf, "%s: failed integrity check", t.plain)
		return nil
	}
	if t.entry != nil && !recorded {
		w.logger.Info("blob differs from ledger record", "path", t.plain)
	}

	data := plaintext
	local, err := w.root.ReadFile(t.plain)
	exists := err == nil
	if exists {
		defer crypto.ClearBytes(local)
	}

	if exists && SameContent(local, plaintext) {
		result.Skipped = append(result.Skipped, t.plain)
		w.printf("skipped: %s (unchanged)\n", t.plain)
		w.record(db, t, plaintext, blobHash, recorded)
		return nil
	}

	merged := false
	if exists {
		res, err := w.resolveConflict(t.plain, local, plaintext, strategy)
		if errors.Is(err, ErrConflict) {
			result.fail(w.printf, "%s: local file differs (aborting)", t.plain)
			return err
		}
		if err != nil {
			result.fail(w.printf, "%s: %v", t.plain, err)
			return nil
		}

		switch res.Resolution {
		case ResolutionKeepLocal:
			result.Skipped = append(result.Skipped, t.plain)
			w.printf("skipped: %s (kept local version)\n", t.plain)
			return nil
		case ResolutionSkip:
			result.Skipped = append(result.Skipped, t.plain)
			w.printf("skipped: %s\n", t.plain)
			return nil
		case ResolutionKeepBoth:
			w.keepBoth(t, plaintext, result)
			return nil
		case ResolutionEditMerged:
			data = res.MergedData
			merged = true
		case ResolutionUseEncrypted:
		}
	}

	if err := w.root.WriteFile(t.plain, data, fileModeFor(t.entry), DirPermSecure); err != nil {
		result.fail(w.printf, "%s: cannot write file: %v", t.plain, err)
		return nil
	}

	if recorded && !merged && !t.entry.ModTime.IsZero() {
		if err := w.root.Chtimes(t.plain, time.Now(), t.entry.ModTime); err != nil {
			w.logger.Debug("cannot restore modification time", "path", t.plain, "error", err)
		}
	}

	if !merged {
		w.record(db, t, plaintext, blobHash, recorded)
	}

	result.Done = append(result.Done, t.plain)
	if merged {
		w.printf("decrypted: %s (merged)\n", t.plain)
	} else {
		w.printf("decrypted: %s\n", t.plain)
	}
	return nil
}

func fileModeFor(e *storage.Entry) fs.FileMode {
	if e == nil {
		return FilePermSecure
	}
	return secureFileMode(e.Mode)
}

// record brings the ledger entry in line with a blob whose plaintext is now on disk
func (w *Workspace) record(db *storage.Ledger, t target, plaintext []byte, blobHash string, recorded bool) {
	if db == nil || (recorded && t.entry.Hash != "") {
		return
	}

	entry := storage.Entry{
		Path:        t.plain,
		Blob:        t.blob,
		Mode:        FilePermSecure,
		EncryptedAt: time.Now().UTC(),
	}
	if t.entry != nil {
		entry = *t.entry
	}
	entry.Size = int64(len(plaintext))
	entry.Hash = hashHex(plaintext)
	entry.BlobHash = blobHash
	if info, err := w.root.Stat(t.plain); err == nil {
		entry.ModTime = info.ModTime()
	}

	if err := db.PutEntry(entry); err != nil {
		w.logger.Warn("cannot update ledger entry", "path", t.plain, "error", err)
	}
}

// keepBoth writes the decrypted content next to the local file
func (w *Workspace) keepBoth(t target, plaintext []byte, result *Result) {
	copyPath, err := w.keepBothPath(t.plain)
	if err != nil {
		result.fail(w.printf, "%s: %v", t.plain, err)
		return
	}
	if err := w.root.WriteFile(copyPath, plaintext, fileModeFor(t.entry), DirPermSecure); err != nil {
		result.fail(w.printf, "%s: cannot write copy: %v", copyPath, err)
		return
	}
	result.Done = append(result.Done, copyPath)
	w.printf("saved: %s (encrypted version)\n", copyPath)
	result.Skipped = append(result.Skipped, t.plain)
	w.printf("skipped: %s (kept local version)\n", t.plain)
}

// keepBothPath returns the first free name among path.from-encrypted, path.from-encrypted.1, ...
func (w *Workspace) keepBothPath(plain string) (string, error) {
	candidate := plain + KeepBothSuffix
	if !w.root.Exists(candidate) {
		return candidate, nil
	}
	for i := 1; i < MaxKeepBothCopies; i++ {
		candidate = fmt.Sprintf("%s%s.%d", plain, KeepBothSuffix, i)
		if !w.root.Exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("too many copies (max %d)", MaxKeepBothCopies)
}
