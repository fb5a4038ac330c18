package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// DirStore mirrors blobs into a local directory.
// All access goes through os.Root so keys cannot leave the directory.
type DirStore struct {
	root *os.Root
	dir  string
}

var _ Store = (*DirStore)(nil)

// NewDirStore opens dir as a blob store, creating it if needed
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: mirror directory is empty", ErrInvalidConfig)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory: %w", err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror directory: %w", err)
	}
	return &DirStore{root: root, dir: abs}, nil
}

// Close releases the directory handle
func (d *DirStore) Close() error {
	return d.root.Close()
}

// Dir returns the absolute mirror directory
func (d *DirStore) Dir() string {
	return d.dir
}

func (d *DirStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := CleanKey(key)
	if err != nil {
		return err
	}
	name := filepath.FromSlash(clean)
	if parent := filepath.Dir(name); parent != "." {
		if err := d.root.MkdirAll(parent, 0700); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", key, err)
		}
	}
	return d.root.WriteFile(name, data, 0600)
}

func (d *DirStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := d.root.ReadFile(filepath.FromSlash(clean))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

func (d *DirStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	clean, err := CleanKey(key)
	if err != nil {
		return false, err
	}
	info, err := d.root.Stat(filepath.FromSlash(clean))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

func (d *DirStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		clean, err := CleanKey(key)
		if err != nil {
			return err
		}
		if err := d.root.Remove(filepath.FromSlash(clean)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}

func (d *DirStore) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	var keys []string
	err := fs.WalkDir(d.root.FS(), ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		key := path.Clean(p)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list mirror: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *DirStore) Rename(ctx context.Context, oldKey, newKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := CleanKey(oldKey)
	if err != nil {
		return err
	}
	dst, err := CleanKey(newKey)
	if err != nil {
		return err
	}
	dstName := filepath.FromSlash(dst)
	if parent := filepath.Dir(dstName); parent != "." {
		if err := d.root.MkdirAll(parent, 0700); err != nil {
			return err
		}
	}
	err = d.root.Rename(filepath.FromSlash(src), dstName)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, oldKey)
	}
	return err
}
