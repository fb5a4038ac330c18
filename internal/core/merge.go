package core

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/term"
)

const (
	BinarySampleSize   = 8192 // Bytes to sample for text/binary detection
	BinaryThresholdPct = 10   // Max % non-printable chars for text files
)

// Strategy defines how to handle a local file that differs from its decrypted blob
type Strategy int

const (
	StrategyAsk          Strategy = iota // Ask for each conflict
	StrategyKeepLocal                    // Always keep the local file
	StrategyUseEncrypted                 // Always overwrite with the decrypted blob
	StrategyKeepBoth                     // Save the decrypted blob as .from-encrypted
	StrategyAbort                        // Stop at the first conflict
)

var strategyNames = map[string]Strategy{
	"ask":           StrategyAsk,
	"keep-local":    StrategyKeepLocal,
	"use-encrypted": StrategyUseEncrypted,
	"keep-both":     StrategyKeepBoth,
	"abort":         StrategyAbort,
}

// ParseStrategy maps a flag value to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	if s, ok := strategyNames[strings.ToLower(name)]; ok {
		return s, nil
	}
	return StrategyAsk, fmt.Errorf("unknown conflict strategy %q (valid: ask, keep-local, use-encrypted, keep-both, abort)", name)
}

func (s Strategy) String() string {
	for name, v := range strategyNames {
		if v == s {
			return name
		}
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Resolution is the choice made for a single conflict
type Resolution int

const (
	ResolutionKeepLocal Resolution = iota
	ResolutionUseEncrypted
	ResolutionEditMerged
	ResolutionKeepBoth
	ResolutionSkip
)

// ConflictResult contains the resolution and optionally merged data
type ConflictResult struct {
	Resolution Resolution
	MergedData []byte // Populated when Resolution == ResolutionEditMerged
}

var errMergeAborted = errors.New("merge aborted by user")

// DetectFileType reports whether data looks like text.
//
// Heuristic, in order:
//  1. Null bytes present means binary
//  2. Invalid UTF-8 in the sample means binary
//  3. More than 10% non-printable control chars means binary
func DetectFileType(data []byte) bool {
	if len(data) == 0 {
		return true
	}

	if bytes.IndexByte(data, 0) != -1 {
		return false
	}

	sample := data[:min(len(data), BinarySampleSize)]

	// A multi-byte rune may be cut at the sample boundary
	if !utf8.Valid(sample) {
		trimmed := sample
		for i := 0; i < utf8.UTFMax-1 && len(trimmed) > 0 && !utf8.Valid(trimmed); i++ {
			trimmed = trimmed[:len(trimmed)-1]
		}
		if len(sample) < len(data) && utf8.Valid(trimmed) {
			sample = trimmed
		} else {
			return false
		}
	}

	nonPrintable := 0
	for _, b := range sample {
		if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			nonPrintable++
		}
		if b == 127 {
			nonPrintable++
		}
	}

	return nonPrintable <= len(sample)*BinaryThresholdPct/100
}

// SameContent reports whether two contents are identical by SHA-256
func SameContent(a, b []byte) bool {
	ha := sha256.Sum256(a)
	hb := sha256.Sum256(b)
	return ha == hb
}

// resolveConflict decides what to do with a local file that differs from the decrypted blob
func (w *Workspace) resolveConflict(path string, localData, decrypted []byte, strategy Strategy) (*ConflictResult, error) {
	switch strategy {
	case StrategyKeepLocal:
		return &ConflictResult{Resolution: ResolutionKeepLocal}, nil
	case StrategyUseEncrypted:
		return &ConflictResult{Resolution: ResolutionUseEncrypted}, nil
	case StrategyKeepBoth:
		return &ConflictResult{Resolution: ResolutionKeepBoth}, nil
	case StrategyAbort:
		return &ConflictResult{Resolution: ResolutionSkip}, fmt.Errorf("%w: %s", ErrConflict, path)
	}

	isText := DetectFileType(localData) && DetectFileType(decrypted)

	fileType := "binary"
	if isText {
		fileType = "text"
	}
	fmt.Fprintf(w.out, "\nwarning: conflict detected: %s\n", path)
	fmt.Fprintf(w.out, "   Local file differs from the encrypted version\n")
	fmt.Fprintf(w.out, "   File type: %s\n", fileType)
	fmt.Fprintf(w.out, "\nOptions:\n")
	fmt.Fprintf(w.out, "  [l] Keep local version\n")
	fmt.Fprintf(w.out, "  [u] Use encrypted version (overwrite local)\n")
	if isText {
		fmt.Fprintf(w.out, "  [e] Edit merged (opens in $EDITOR)\n")
	}
	fmt.Fprintf(w.out, "  [b] Keep both (save encrypted version as %s)\n", path+KeepBothSuffix)
	fmt.Fprintf(w.out, "  [x] Skip this file\n")

	for {
		fmt.Fprintf(w.out, "\nYour choice: ")
		choice, err := w.readChoice()
		if err != nil {
			return &ConflictResult{Resolution: ResolutionSkip}, err
		}

		switch choice {
		case "l":
			return &ConflictResult{Resolution: ResolutionKeepLocal}, nil
		case "u":
			return &ConflictResult{Resolution: ResolutionUseEncrypted}, nil
		case "e":
			if !isText {
				fmt.Fprintf(w.out, "Cannot edit merge for binary files\n")
				continue
			}
			merged, err := w.editMerge(path, localData, decrypted)
			if err != nil {
				fmt.Fprintf(w.out, "Error during merge: %v\n", err)
				continue
			}
			return &ConflictResult{Resolution: ResolutionEditMerged, MergedData: merged}, nil
		case "b":
			return &ConflictResult{Resolution: ResolutionKeepBoth}, nil
		case "x":
			return &ConflictResult{Resolution: ResolutionSkip}, nil
		default:
			valid := "l, u, b, x"
			if isText {
				valid = "l, u, e, b, x"
			}
			fmt.Fprintf(w.out, "Invalid choice. Please enter %s\n", valid)
		}
	}
}

// readChoice reads a single key in raw mode on a terminal, or one line otherwise
func (w *Workspace) readChoice() (string, error) {
	if f, ok := w.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		oldState, err := term.MakeRaw(int(f.Fd()))
		if err == nil {
			defer func() { _ = term.Restore(int(f.Fd()), oldState) }()

			buf := make([]byte, 1)
			if _, err := f.Read(buf); err != nil {
				return "", err
			}
			choice := strings.ToLower(string(buf[0]))
			fmt.Fprintf(w.out, "%s\n", choice)
			return choice, nil
		}
	}

	if w.reader == nil {
		w.reader = bufio.NewReader(w.in)
	}
	line, err := w.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

func editorCommand() string {
	if editor := os.Getenv("VISUAL"); editor != "" {
		return editor
	}
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	if runtime.GOOS == "windows" {
		return "notepad"
	}
	return "vi"
}

// ConflictMarkers builds git-style conflict content from a line diff.
// Common lines appear once; differing runs are wrapped in markers.
func ConflictMarkers(localData, decrypted []byte) []byte {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(localData), string(decrypted))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var buf bytes.Buffer
	writeSide := func(t diffmatchpatch.Operation, i int) int {
		for i < len(diffs) && diffs[i].Type == t {
			text := diffs[i].Text
			buf.WriteString(text)
			if len(text) > 0 && text[len(text)-1] != '\n' {
				buf.WriteByte('\n')
			}
			i++
		}
		return i
	}

	for i := 0; i < len(diffs); {
		if diffs[i].Type == diffmatchpatch.DiffEqual {
			buf.WriteString(diffs[i].Text)
			i++
			continue
		}
		buf.WriteString("<<<<<<< local\n")
		i = writeSide(diffmatchpatch.DiffDelete, i)
		buf.WriteString("=======\n")
		i = writeSide(diffmatchpatch.DiffInsert, i)
		buf.WriteString(">>>>>>> encrypted\n")
	}

	return buf.Bytes()
}

// HasConflictMarkers reports unresolved markers in merged content
func HasConflictMarkers(data []byte) bool {
	return bytes.Contains(data, []byte("<<<<<<<")) ||
		bytes.Contains(data, []byte("=======")) ||
		bytes.Contains(data, []byte(">>>>>>>"))
}

func runEditor(filename string) error {
	editor := editorCommand()
	if _, err := exec.LookPath(editor); err != nil {
		return fmt.Errorf("editor '%s' not found: %w\nPlease set VISUAL or EDITOR environment variable", editor, err)
	}

	cmd := exec.Command(editor, filename)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("editor exited with code %d", exitErr.ExitCode())
	}
	return err
}

// editMerge writes conflict markers to a private temp file, opens the editor and reads the result back
func (w *Workspace) editMerge(path string, localData, decrypted []byte) ([]byte, error) {
	tmp, err := os.CreateTemp("", "hyperdrive-merge-*"+filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if err := tmp.Chmod(FilePermSecure); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to set temp file permissions: %w", err)
	}
	if _, err := tmp.Write(ConflictMarkers(localData, decrypted)); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write conflict content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	fmt.Fprintf(w.out, "\nopening editor for merge...\n")
	if err := runEditor(name); err != nil {
		return nil, err
	}

	merged, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read edited file: %w", err)
	}

	if len(merged) == 0 {
		if !w.confirm("\nwarning: edited file is empty\nUse this empty content? [y/N]: ") {
			return nil, errMergeAborted
		}
	}
	if HasConflictMarkers(merged) {
		if !w.confirm("\nwarning: conflict markers still present in file\nContinue anyway? [y/N]: ") {
			return nil, errMergeAborted
		}
	}

	return merged, nil
}

func (w *Workspace) confirm(prompt string) bool {
	fmt.Fprint(w.out, prompt)
	choice, err := w.readChoice()
	return err == nil && choice == "y"
}

// UnifiedDiff renders a unified diff from the decrypted blob (a/) to the local file (b/).
// It returns an empty string when both are identical.
func UnifiedDiff(path string, decrypted, localData []byte) string {
	if SameContent(decrypted, localData) {
		return ""
	}
	if !DetectFileType(decrypted) || !DetectFileType(localData) {
		return fmt.Sprintf("Binary file %s has changed\n", path)
	}

	dmp := diffmatchpatch.New()
	from, to := string(decrypted), string(localData)
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	patches := dmp.PatchMake(from, diffs)
	if len(patches) == 0 {
		return ""
	}

	var out strings.Builder
	fmt.Fprintf(&out, "--- a/%s\n", path)
	fmt.Fprintf(&out, "+++ b/%s\n", path)
	out.WriteString(dmp.PatchToText(patches))
	return out.String()
}
