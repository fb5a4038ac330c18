package blobstore

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Store is a flat key/value store for encrypted blobs
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns ErrNotFound when the key does not exist
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes keys; missing keys are ignored
	Delete(ctx context.Context, keys ...string) error
	// List returns all keys starting with prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)
	Rename(ctx context.Context, oldKey, newKey string) error
}

// CleanKey validates a blob key and returns its canonical form
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
		}
	}
	clean := path.Clean(key)
	if clean == "." {
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	return clean, nil
}
