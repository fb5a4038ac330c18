package security

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func newTestRoot(t *testing.T) (*Root, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to open root: %v", err)
	}
	t.Cleanup(func() { root.Close() })
	// Resolve symlinks in TMPDIR (macOS /var -> /private/var) the same way New does
	abs, _ := filepath.Abs(dir)
	return root, abs
}

func TestRoot_Clean(t *testing.T) {
	root, dir := newTestRoot(t)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"simple file", "prices.csv", "prices.csv", nil},
		{"file in subdirectory", "data/prices.csv", "data/prices.csv", nil},
		{"hidden file", ".env", ".env", nil},
		{"dot slash", "./config.env", "config.env", nil},
		{"redundant slashes", "a//b///c.csv", "a/b/c.csv", nil},
		{"dot segments", "a/./b/../c.csv", "a/c.csv", nil},
		{"absolute inside workspace", filepath.Join(dir, "data", "x.csv"), "data/x.csv", nil},

		{"parent directory", "../x.csv", "", ErrPathEscapes},
		{"nested parent", "a/../../x.csv", "", ErrPathEscapes},
		{"absolute outside workspace", filepath.Join(filepath.Dir(dir), "elsewhere.csv"), "", ErrAbsolutePath},
		{"empty path", "", "", ErrEmptyPath},
		{"workspace itself", ".", "", ErrEmptyPath},
	}

	if runtime.GOOS != "windows" {
		tests = append(tests, struct {
			name    string
			input   string
			want    string
			wantErr error
		}{"etc passwd", "/etc/passwd", "", ErrAbsolutePath})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := root.Clean(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Clean(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Clean(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if strings.Contains(got, "\\") {
				t.Errorf("Result should use forward slashes, got %q", got)
			}
		})
	}
}

func TestRoot_WriteReadStatRemove(t *testing.T) {
	root, dir := newTestRoot(t)

	if err := root.WriteFile("nested/dir/secret.csv.encrypted", []byte("blob"), 0600, 0700); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "nested", "dir", "secret.csv.encrypted"))
	if err != nil {
		t.Fatalf("File not written on disk: %v", err)
	}
	if string(data) != "blob" {
		t.Errorf("Content mismatch: %q", data)
	}

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Join(dir, "nested", "dir"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected exactly one file, got %d", len(entries))
	}

	got, err := root.ReadFile("nested/dir/secret.csv.encrypted")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "blob" {
		t.Errorf("ReadFile content mismatch: %q", got)
	}

	info, err := root.Stat("nested/dir/secret.csv.encrypted")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := root.Chtimes("nested/dir/secret.csv.encrypted", mtime, mtime); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	info, _ = root.Stat("nested/dir/secret.csv.encrypted")
	if !info.ModTime().Equal(mtime) {
		t.Errorf("ModTime not set: %v", info.ModTime())
	}

	if err := root.Remove("nested/dir/secret.csv.encrypted"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if root.Exists("nested/dir/secret.csv.encrypted") {
		t.Error("File should be gone after Remove")
	}
}

func TestRoot_OverwriteReplacesContent(t *testing.T) {
	root, _ := newTestRoot(t)

	if err := root.WriteFile("a.txt", []byte("first"), 0600, 0700); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := root.WriteFile("a.txt", []byte("second"), 0600, 0700); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := root.ReadFile("a.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Expected overwrite, got %q", got)
	}
}

func TestRoot_Rename(t *testing.T) {
	root, _ := newTestRoot(t)

	if err := root.WriteFile("a.txt", []byte("new"), 0600, 0700); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := root.WriteFile("b.txt", []byte("old"), 0600, 0700); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := root.Rename("a.txt", "b.txt"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if root.Exists("a.txt") {
		t.Error("Source should be gone after rename")
	}
	got, _ := root.ReadFile("b.txt")
	if string(got) != "new" {
		t.Errorf("Expected replaced content, got %q", got)
	}

	if err := root.Rename("b.txt", "../b.txt"); !errors.Is(err, ErrPathEscapes) {
		t.Errorf("Expected ErrPathEscapes, got %v", err)
	}
}

func TestRoot_EscapePrevention(t *testing.T) {
	parent := t.TempDir()
	workspace := filepath.Join(parent, "workspace")
	if err := os.Mkdir(workspace, 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	outside := filepath.Join(parent, "outside.txt")
	if err := os.WriteFile(outside, []byte("outside"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	root, err := New(workspace)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer root.Close()

	if _, err := root.ReadFile("../outside.txt"); err == nil {
		t.Error("Reading outside the workspace should fail")
	}
	if err := root.WriteFile("../outside.txt", []byte("pwned"), 0600, 0700); err == nil {
		t.Error("Writing outside the workspace should fail")
	}
	if err := root.Remove("../outside.txt"); err == nil {
		t.Error("Removing outside the workspace should fail")
	}

	// Symlinks pointing out of the workspace are refused by os.Root
	if runtime.GOOS != "windows" {
		if err := os.Symlink(outside, filepath.Join(workspace, "link.txt")); err != nil {
			t.Fatalf("Symlink failed: %v", err)
		}
		if _, err := root.ReadFile("link.txt"); err == nil {
			t.Error("Reading through an escaping symlink should fail")
		}
	}

	data, _ := os.ReadFile(outside)
	if string(data) != "outside" {
		t.Errorf("Outside file was modified: %q", data)
	}
}
