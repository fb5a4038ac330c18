package core

import (
	"bytes"
	"strings"
	"testing"
)

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    bool
	}{
		{"env file", []byte("RH_PASSWORD=hunter2\nSALT=abc\n"), true},
		{"csv", []byte("date,open,close\n2024-01-02,1.0,1.1\n"), true},
		{"UTF-8 with special chars", []byte("Preço médio: 12,5 €\n"), true},
		{"empty file", []byte(""), true},
		{"whitespace only", []byte("\n\n  \t  \r\n"), true},

		{"null bytes", []byte("PK\x03\x04\x00\x00"), false},
		{"invalid UTF-8", []byte{0x80, 0x81, 0x82, 0x83}, false},
		{"control characters", []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x0b, 0x0c}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFileType(tt.content); got != tt.want {
				t.Errorf("DetectFileType(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestDetectFileType_RuneAtSampleBoundary(t *testing.T) {
	// "é" is two bytes; place it across the sample boundary
	data := append(bytes.Repeat([]byte("a"), BinarySampleSize-1), []byte("é and more text")...)
	if !DetectFileType(data) {
		t.Error("A rune split by the sample boundary should not make the file binary")
	}
}

func TestSameContent(t *testing.T) {
	if !SameContent([]byte("line1\nline2"), []byte("line1\nline2")) {
		t.Error("Identical content should compare equal")
	}
	if !SameContent(nil, []byte{}) {
		t.Error("nil and empty should compare equal")
	}
	if SameContent([]byte("Hello"), []byte("hello")) {
		t.Error("Case difference should not compare equal")
	}
	if SameContent([]byte{0x00, 0x01}, []byte{0x00, 0x02}) {
		t.Error("Different binary data should not compare equal")
	}
}

func TestParseStrategy(t *testing.T) {
	tests := map[string]Strategy{
		"ask":           StrategyAsk,
		"keep-local":    StrategyKeepLocal,
		"USE-ENCRYPTED": StrategyUseEncrypted,
		"keep-both":     StrategyKeepBoth,
		"abort":         StrategyAbort,
	}
	for name, want := range tests {
		got, err := ParseStrategy(name)
		if err != nil {
			t.Fatalf("ParseStrategy(%q) failed: %v", name, err)
		}
		if got != want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", name, got, want)
		}
	}

	if _, err := ParseStrategy("merge-everything"); err == nil {
		t.Error("Expected error for unknown strategy")
	}
	if StrategyKeepBoth.String() != "keep-both" {
		t.Errorf("Unexpected String(): %s", StrategyKeepBoth)
	}
}

func TestConflictMarkers_SingleLineChange(t *testing.T) {
	local := []byte("date,close\n2024-01-02,1.0\n2024-01-03,1.1\n")
	decrypted := []byte("date,close\n2024-01-02,9.9\n2024-01-03,1.1\n")

	got := string(ConflictMarkers(local, decrypted))

	want := "date,close\n" +
		"<<<<<<< local\n" +
		"2024-01-02,1.0\n" +
		"=======\n" +
		"2024-01-02,9.9\n" +
		">>>>>>> encrypted\n" +
		"2024-01-03,1.1\n"
	if got != want {
		t.Errorf("Unexpected conflict content.\nGot:\n%s\nWant:\n%s", got, want)
	}
}

func TestConflictMarkers_IdenticalFiles(t *testing.T) {
	content := []byte("line1\nline2\nline3\n")
	got := ConflictMarkers(content, content)
	if HasConflictMarkers(got) {
		t.Error("Identical files should not have conflict markers")
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Identical files should return the same content, got %q", got)
	}
}

func TestConflictMarkers_MultipleHunks(t *testing.T) {
	local := []byte("line1\nline2\nline3\nline4\nline5\n")
	decrypted := []byte("line1\nchanged2\nline3\nchanged4\nline5\n")

	got := string(ConflictMarkers(local, decrypted))
	if n := strings.Count(got, "<<<<<<< local"); n != 2 {
		t.Errorf("Expected 2 conflict hunks, got %d", n)
	}
}

func TestConflictMarkers_AddedAndRemovedLines(t *testing.T) {
	added := string(ConflictMarkers([]byte("a\nb\n"), []byte("a\nb\nc\n")))
	if !strings.Contains(added, "=======\nc\n>>>>>>> encrypted\n") {
		t.Errorf("Added line should appear on the encrypted side:\n%s", added)
	}

	removed := string(ConflictMarkers([]byte("a\nb\nc\n"), []byte("a\nc\n")))
	if !strings.Contains(removed, "<<<<<<< local\nb\n=======\n") {
		t.Errorf("Removed line should appear on the local side:\n%s", removed)
	}
}

func TestConflictMarkers_MissingTrailingNewline(t *testing.T) {
	got := string(ConflictMarkers([]byte("a\nold"), []byte("a\nnew")))
	if !strings.Contains(got, "old\n=======\nnew\n>>>>>>> encrypted\n") {
		t.Errorf("Each side should end with a newline before the next marker:\n%s", got)
	}
}

func TestUnifiedDiff(t *testing.T) {
	if diff := UnifiedDiff(".env", []byte("A=1\n"), []byte("A=1\n")); diff != "" {
		t.Errorf("Identical content should produce no diff, got %q", diff)
	}

	diff := UnifiedDiff(".env", []byte("A=1\nB=2\n"), []byte("A=1\nB=3\n"))
	for _, want := range []string{"--- a/.env\n", "+++ b/.env\n", "-B=2", "+B=3"} {
		if !strings.Contains(diff, want) {
			t.Errorf("Diff should contain %q:\n%s", want, diff)
		}
	}

	binary := UnifiedDiff("key.bin", []byte{0x00, 0x01}, []byte{0x00, 0x02})
	if binary != "Binary file key.bin has changed\n" {
		t.Errorf("Unexpected binary diff: %q", binary)
	}
}

func TestResolveConflict_FixedStrategies(t *testing.T) {
	w, _, _ := newTestWorkspace(t)

	tests := []struct {
		strategy Strategy
		want     Resolution
		wantErr  bool
	}{
		{StrategyKeepLocal, ResolutionKeepLocal, false},
		{StrategyUseEncrypted, ResolutionUseEncrypted, false},
		{StrategyKeepBoth, ResolutionKeepBoth, false},
		{StrategyAbort, ResolutionSkip, true},
	}
	for _, tt := range tests {
		res, err := w.resolveConflict("a.txt", []byte("local"), []byte("encrypted"), tt.strategy)
		if (err != nil) != tt.wantErr {
			t.Errorf("%v: unexpected error state: %v", tt.strategy, err)
		}
		if res.Resolution != tt.want {
			t.Errorf("%v: got resolution %v, want %v", tt.strategy, res.Resolution, tt.want)
		}
	}
}

func TestResolveConflict_AskReadsChoices(t *testing.T) {
	out := &bytes.Buffer{}
	w, _, _ := newTestWorkspace(t, WithOutput(out), WithInput(strings.NewReader("q\nb\n")))

	res, err := w.resolveConflict("a.txt", []byte("local\n"), []byte("encrypted\n"), StrategyAsk)
	if err != nil {
		t.Fatalf("resolveConflict failed: %v", err)
	}
	if res.Resolution != ResolutionKeepBoth {
		t.Errorf("Expected keep both, got %v", res.Resolution)
	}
	if !strings.Contains(out.String(), "Invalid choice. Please enter l, u, e, b, x") {
		t.Errorf("Invalid choice should be reported:\n%s", out.String())
	}
}

func TestResolveConflict_BinaryCannotEdit(t *testing.T) {
	out := &bytes.Buffer{}
	w, _, _ := newTestWorkspace(t, WithOutput(out), WithInput(strings.NewReader("e\nl\n")))

	res, err := w.resolveConflict("key.bin", []byte{0x00, 0x01}, []byte{0x00, 0x02}, StrategyAsk)
	if err != nil {
		t.Fatalf("resolveConflict failed: %v", err)
	}
	if res.Resolution != ResolutionKeepLocal {
		t.Errorf("Expected keep local, got %v", res.Resolution)
	}
	if !strings.Contains(out.String(), "Cannot edit merge for binary files") {
		t.Errorf("Binary edit should be refused:\n%s", out.String())
	}
}

func TestResolveConflict_AskInputExhausted(t *testing.T) {
	w, _, _ := newTestWorkspace(t)
	if _, err := w.resolveConflict("a.txt", []byte("a\n"), []byte("b\n"), StrategyAsk); err == nil {
		t.Error("Expected error when no answer can be read")
	}
}
