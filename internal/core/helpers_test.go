package core

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperdrive-data/hyperdrive/internal/crypto"
)

// scrypt with N=2^16 is slow, so every test shares these instances
var (
	cryptOnce  sync.Once
	mainCrypt  *crypto.Cryptographer
	otherCrypt *crypto.Cryptographer
	cryptErr   error
)

func testCryptographers(t *testing.T) (*crypto.Cryptographer, *crypto.Cryptographer) {
	t.Helper()
	cryptOnce.Do(func() {
		mainCrypt, cryptErr = crypto.New("correct horse", "salt-1")
		if cryptErr != nil {
			return
		}
		otherCrypt, cryptErr = crypto.New("battery staple", "salt-2")
	})
	if cryptErr != nil {
		t.Fatalf("Failed to create cryptographers: %v", cryptErr)
	}
	return mainCrypt, otherCrypt
}

func newTestWorkspace(t *testing.T, opts ...Option) (*Workspace, string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	out := &bytes.Buffer{}
	opts = append([]Option{WithOutput(out), WithInput(strings.NewReader(""))}, opts...)
	w, err := New(dir, opts...)
	if err != nil {
		t.Fatalf("Failed to create workspace: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, w.Dir(), out
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return string(data)
}

func fileExists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name)))
	return err == nil
}
