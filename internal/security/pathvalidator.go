package security

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperdrive-data/hyperdrive/internal/crypto"
)

var (
	ErrPathEscapes  = errors.New("path escapes workspace")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
)

// Root confines file operations to a workspace directory using os.Root.
// Paths are accepted relative to the workspace and stored with forward slashes.
type Root struct {
	root *os.Root
	dir  string
}

// New opens the workspace at dir
func New(dir string) (*Root, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace root: %w", err)
	}

	return &Root{root: root, dir: absPath}, nil
}

// Close releases the underlying directory handle
func (r *Root) Close() error {
	if r.root != nil {
		return r.root.Close()
	}
	return nil
}

// Dir returns the absolute workspace directory
func (r *Root) Dir() string {
	return r.dir
}

// Clean validates a user-provided path and returns it in slash form relative
// to the workspace. Absolute paths inside the workspace are made relative.
// It rejects empty paths, paths outside the workspace, and non-local names.
func (r *Root) Clean(userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}

	p := filepath.FromSlash(userPath)
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.dir, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, userPath)
		}
		p = rel
	}

	if !filepath.IsLocal(p) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	clean := filepath.Clean(p)
	if clean == "." {
		return "", fmt.Errorf("%w: %s", ErrEmptyPath, userPath)
	}

	return filepath.ToSlash(clean), nil
}

// Abs returns the platform path of a cleaned workspace path
func (r *Root) Abs(path string) string {
	return filepath.Join(r.dir, filepath.FromSlash(path))
}

func (r *Root) resolve(path string) (string, error) {
	clean, err := r.Clean(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	return filepath.FromSlash(clean), nil
}

// ReadFile reads a file inside the workspace
func (r *Root) ReadFile(path string) ([]byte, error) {
	p, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	return r.root.ReadFile(p)
}

// WriteFile writes data to a temporary sibling and renames it into place,
// creating parent directories with dirPerm.
func (r *Root) WriteFile(path string, data []byte, perm, dirPerm os.FileMode) error {
	p, err := r.resolve(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(p); dir != "." {
		if err := r.root.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", filepath.ToSlash(dir), err)
		}
	}

	suffix, err := crypto.GenerateRandom(6)
	if err != nil {
		return err
	}
	tmp := p + ".tmp-" + hex.EncodeToString(suffix)

	if err := r.root.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := r.root.Rename(tmp, p); err != nil {
		r.root.Remove(tmp)
		return err
	}
	return nil
}

// Stat stats a file inside the workspace
func (r *Root) Stat(path string) (os.FileInfo, error) {
	p, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	return r.root.Stat(p)
}

// Exists reports whether path exists inside the workspace
func (r *Root) Exists(path string) bool {
	_, err := r.Stat(path)
	return err == nil
}

// Remove deletes a file inside the workspace
func (r *Root) Remove(path string) error {
	p, err := r.resolve(path)
	if err != nil {
		return err
	}
	return r.root.Remove(p)
}

// Rename moves a file inside the workspace, replacing any file at to
func (r *Root) Rename(from, to string) error {
	src, err := r.resolve(from)
	if err != nil {
		return err
	}
	dst, err := r.resolve(to)
	if err != nil {
		return err
	}
	return r.root.Rename(src, dst)
}

// Chtimes sets access and modification times of a file inside the workspace
func (r *Root) Chtimes(path string, atime, mtime time.Time) error {
	p, err := r.resolve(path)
	if err != nil {
		return err
	}
	return r.root.Chtimes(p, atime, mtime)
}
