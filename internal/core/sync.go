package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperdrive-data/hyperdrive/internal/blobstore"
	"github.com/hyperdrive-data/hyperdrive/internal/storage"
)

// Push uploads blobs that changed since their last upload. With no paths
// every ledger entry is considered. With force every selected blob is sent.
func (w *Workspace) Push(ctx context.Context, paths []string, force bool) (*Result, error) {
	if w.store == nil {
		return nil, ErrNoStore
	}
	if err := ctx.Err(); err != nil {
		return nil, err
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
	if len(paths) > 0 && len(selected) == 0 {
		return nil, ErrNoMatch
	}

	result := &Result{}
	for _, entry := range selected {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if entry.Pushed() && entry.RemoteKey == entry.Blob && !force {
			result.Skipped = append(result.Skipped, entry.Blob)
			w.printf("up to date: %s\n", entry.Blob)
			continue
		}

		blob, err := w.root.ReadFile(entry.Blob)
		if err != nil {
			result.fail(w.printf, "%s: cannot read blob: %v", entry.Blob, err)
			continue
		}
		if hashHex(blob) != entry.BlobHash {
			result.fail(w.printf, "%s: blob changed outside hyperdrive, re-encrypt first", entry.Blob)
			continue
		}
		if err := w.store.Put(ctx, entry.Blob, blob); err != nil {
			if errors.Is(err, blobstore.ErrOperationCanceled) {
				return result, err
			}
			result.fail(w.printf, "%s: %v", entry.Blob, err)
			continue
		}

		entry.PushedAt = time.Now().UTC()
		entry.RemoteKey = entry.Blob
		if err := db.PutEntry(entry); err != nil {
			return result, err
		}
		w.logger.Debug("pushed blob", "key", entry.Blob, "size", len(blob))
		result.Done = append(result.Done, entry.Blob)
		w.printf("pushed: %s\n", entry.Blob)
	}
	return result, nil
}

// Pull downloads blobs from the store into the workspace. With no paths every
// remote blob is fetched. Blobs without a ledger entry get one, so a fresh
// checkout can decrypt them.
func (w *Workspace) Pull(ctx context.Context, paths []string) (*Result, error) {
	if w.store == nil {
		return nil, ErrNoStore
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keys, err := w.pullKeys(ctx, paths)
	if err != nil {
		return nil, err
	}

	db, err := w.openLedger(true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	result := &Result{}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		blob, err := w.store.Get(ctx, key)
		if err != nil {
			result.fail(w.printf, "%s: %v", key, err)
			continue
		}
		hash := hashHex(blob)
		plain := w.PlainPath(key)

		entry, err := db.GetEntry(plain)
		untracked := errors.Is(err, storage.ErrNotFound)
		if untracked {
			entry = &storage.Entry{Path: plain, Blob: key, Mode: FilePermSecure}
		} else if err != nil {
			return result, err
		}

		local, err := w.root.ReadFile(key)
		localHash := ""
		if err == nil {
			localHash = hashHex(local)
		}

		switch {
		case localHash == hash:
			result.Skipped = append(result.Skipped, key)
			w.printf("up to date: %s\n", key)
		case localHash != "" && untracked:
			result.fail(w.printf, "%s: local blob is not tracked", key)
			continue
		case localHash != "" && localHash == entry.BlobHash && !entry.Pushed():
			// Overwriting would lose an encryption that never reached the store
			result.fail(w.printf, "%s: local blob has not been pushed", key)
			continue
		default:
			if err := w.root.WriteFile(key, blob, FilePermSecure, DirPermSecure); err != nil {
				result.fail(w.printf, "%s: cannot write blob: %v", key, err)
				continue
			}
			result.Done = append(result.Done, key)
			w.printf("pulled: %s\n", key)
		}

		if entry.BlobHash != hash {
			// The plaintext hash belongs to the previous blob
			entry.Hash = ""
			entry.BlobHash = hash
			entry.EncryptedAt = time.Now().UTC()
		}
		entry.RemoteKey = key
		entry.PushedAt = time.Now().UTC()
		if err := db.PutEntry(*entry); err != nil {
			return result, err
		}
	}

	if len(result.Done) > 0 {
		if err := db.UpdateModified(); err != nil {
			return result, err
		}
	}
	return result, nil
}

// pullKeys lists remote blob keys, restricted to paths when given
func (w *Workspace) pullKeys(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) > 0 {
		keys := make([]string, 0, len(paths))
		for _, p := range paths {
			rel, err := w.root.Clean(p)
			if err != nil {
				return nil, err
			}
			keys = append(keys, w.BlobPath(w.PlainPath(rel)))
		}
		return keys, nil
	}

	all, err := w.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list remote blobs: %w", err)
	}
	keys := make([]string, 0, len(all))
	for _, key := range all {
		if !w.isBlob(key) {
			continue
		}
		if _, err := w.root.Clean(key); err != nil {
			w.logger.Warn("skipping remote key outside workspace", "key", key)
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
