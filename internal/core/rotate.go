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

// rotateSuffix marks a re-encrypted blob staged next to the one it replaces
const rotateSuffix = ".rotate"

// Rotate re-encrypts every blob under next and replaces the password check.
// All blobs are decrypted and re-encrypted into staged files before any blob
// is replaced. A failure while staging or replacing restores the original
// blobs, and the ledger entries and password check change in one transaction,
// so the workspace stays readable with exactly one of the two passwords.
func (w *Workspace) Rotate(ctx context.Context, current, next *crypto.Cryptographer) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	db, err := w.openLedger(false)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if err := verifyCheck(db, current); err != nil {
		return 0, err
	}

	entries, err := db.Entries()
	if err != nil {
		return 0, err
	}

	type pending struct {
		entry    storage.Entry
		original []byte
		staged   string
	}
	var decrypted []pending
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		blob, err := w.root.ReadFile(entry.Blob)
		if errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("blob missing, entry left as is", "path", entry.Path, "blob", entry.Blob)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%s: cannot read blob: %w", entry.Path, err)
		}
		plaintext, err := current.Decrypt(blob)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", entry.Path, err)
		}
		crypto.ClearBytes(plaintext)
		decrypted = append(decrypted, pending{entry: entry, original: blob})
	}

	// Stage
	var staged []string
	discard := func() {
		for _, p := range staged {
			if err := w.root.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("cannot remove staged blob", "path", p, "error", err)
			}
		}
	}
	now := time.Now().UTC()
	for i := range decrypted {
		p := &decrypted[i]
		plaintext, err := current.Decrypt(p.original)
		if err != nil {
			discard()
			return 0, fmt.Errorf("%s: %w", p.entry.Path, err)
		}
		blob, err := next.Encrypt(plaintext)
		crypto.ClearBytes(plaintext)
		if err != nil {
			discard()
			return 0, fmt.Errorf("%s: %w", p.entry.Path, err)
		}
		p.staged = p.entry.Blob + rotateSuffix
		if err := w.root.WriteFile(p.staged, blob, FilePermSecure, DirPermSecure); err != nil {
			discard()
			return 0, fmt.Errorf("%s: cannot write blob: %w", p.entry.Blob, err)
		}
		staged = append(staged, p.staged)
		p.entry.BlobHash = hashHex(blob)
		p.entry.EncryptedAt = now
	}

	// Replace
	replaced := 0
	restore := func() {
		for _, p := range decrypted[:replaced] {
			if err := w.root.WriteFile(p.entry.Blob, p.original, FilePermSecure, DirPermSecure); err != nil {
				w.logger.Error("cannot restore blob", "path", p.entry.Blob, "error", err)
			}
		}
		discard()
	}
	for _, p := range decrypted {
		if err := w.root.Rename(p.staged, p.entry.Blob); err != nil {
			restore()
			return 0, fmt.Errorf("%s: cannot replace blob: %w", p.entry.Blob, err)
		}
		replaced++
	}

	check, err := next.EncryptText(passwordCheckString)
	if err != nil {
		restore()
		return 0, fmt.Errorf("failed to create password check: %w", err)
	}
	updated := make([]storage.Entry, len(decrypted))
	for i, p := range decrypted {
		updated[i] = p.entry
	}
	if err := db.Rekey(updated, check); err != nil {
		restore()
		return 0, fmt.Errorf("failed to update ledger: %w", err)
	}

	for _, p := range decrypted {
		w.printf("re-encrypted: %s\n", p.entry.Blob)
	}
	return len(decrypted), nil
}

// Forget drops ledger entries matching paths. With deleteBlobs the local blobs
// are removed too, and pushed blobs are deleted from the remote store.
func (w *Workspace) Forget(ctx context.Context, paths []string, deleteBlobs bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	db, err := w.openLedger(false)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	entries, err := db.Entries()
	if err != nil {
		return nil, err
	}
	selected := w.selectEntries(entries, paths)
	if len(selected) == 0 {
		return nil, ErrNoMatch
	}

	var remote []string
	forgotten := make([]string, 0, len(selected))
	for _, entry := range selected {
		if deleteBlobs {
			if err := w.root.Remove(entry.Blob); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return forgotten, fmt.Errorf("%s: cannot remove blob: %w", entry.Blob, err)
			}
			if entry.RemoteKey != "" {
				remote = append(remote, entry.RemoteKey)
			}
		}
		if err := db.RemoveEntry(entry.Path); err != nil {
			return forgotten, err
		}
		forgotten = append(forgotten, entry.Path)
		w.printf("forgot: %s\n", entry.Path)
	}

	if len(remote) > 0 {
		if w.store == nil {
			w.logger.Warn("remote blobs left in place, no store configured", "count", len(remote))
		} else if err := w.store.Delete(ctx, remote...); err != nil {
			return forgotten, fmt.Errorf("failed to delete remote blobs: %w", err)
		}
	}

	if err := db.UpdateModified(); err != nil {
		return forgotten, err
	}
	return forgotten, nil
}

// Move renames a tracked file: its plaintext if present, its blob, its ledger
// entry and, once pushed, its remote object. Blobs are not re-encrypted.
// Nothing is changed when the destination plaintext or blob already exists.
func (w *Workspace) Move(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := w.root.Clean(from)
	if err != nil {
		return err
	}
	dst, err := w.root.Clean(to)
	if err != nil {
		return err
	}
	src, dst = w.PlainPath(src), w.PlainPath(dst)

	db, err := w.openLedger(false)
	if err != nil {
		return err
	}
	defer db.Close()

	entry, err := db.GetEntry(src)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNoMatch, from)
	}
	if err != nil {
		return err
	}
	if _, err := db.GetEntry(dst); err == nil {
		return fmt.Errorf("%s is already tracked", dst)
	}

	newBlob := w.BlobPath(dst)
	movePlain := w.root.Exists(src)
	if w.root.Exists(newBlob) {
		return fmt.Errorf("%s already exists", newBlob)
	}
	if movePlain && w.root.Exists(dst) {
		return fmt.Errorf("%s already exists", dst)
	}

	if err := w.rename(entry.Blob, newBlob); err != nil {
		return err
	}
	if movePlain {
		if err := w.rename(src, dst); err != nil {
			if undo := w.rename(newBlob, entry.Blob); undo != nil {
				w.logger.Error("cannot move blob back", "from", newBlob, "to", entry.Blob, "error", undo)
			}
			return err
		}
	}

	if entry.RemoteKey != "" && w.store != nil {
		if err := w.store.Rename(ctx, entry.RemoteKey, newBlob); err != nil {
			return fmt.Errorf("failed to rename remote blob: %w", err)
		}
		entry.RemoteKey = newBlob
	}

	if err := db.RemoveEntry(src); err != nil {
		return err
	}
	entry.Path = dst
	entry.Blob = newBlob
	if err := db.PutEntry(*entry); err != nil {
		return err
	}
	w.printf("moved: %s -> %s\n", src, dst)
	return db.UpdateModified()
}

// rename moves a file inside the workspace by copy and remove
func (w *Workspace) rename(from, to string) error {
	if w.root.Exists(to) {
		return fmt.Errorf("%s already exists", to)
	}
	info, err := w.root.Stat(from)
	if err != nil {
		return err
	}
	data, err := w.root.ReadFile(from)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(data)
	if err := w.root.WriteFile(to, data, info.Mode().Perm(), DirPermSecure); err != nil {
		return err
	}
	if err := w.root.Chtimes(to, time.Now(), info.ModTime()); err != nil {
		w.logger.Debug("cannot keep modification time", "path", to, "error", err)
	}
	return w.root.Remove(from)
}
