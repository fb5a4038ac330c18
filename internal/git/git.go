package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Report describes how the workspace's files relate to git
type Report struct {
	IsRepo           bool
	LedgerName       string
	LedgerTracked    bool
	TrackedPlaintext []string // plaintext committed to git (bad)
	IgnoredPlaintext []string // plaintext covered by .gitignore (good)
	ExposedPlaintext []string // plaintext neither tracked nor ignored (warning)
	UntrackedBlobs   []string // encrypted blobs not yet added to git
}

func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Output()
}

// IsRepo checks if dir is inside a git work tree
func IsRepo(ctx context.Context, dir string) bool {
	_, err := run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// IsTracked checks if path is in the git index
func IsTracked(ctx context.Context, dir, path string) bool {
	out, err := run(ctx, dir, "ls-files", "--", path)
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(out))) > 0
}

// IsIgnored checks if path is matched by any .gitignore rule
func IsIgnored(ctx context.Context, dir, path string) bool {
	// check-ignore exits 0 when the path is ignored
	_, err := run(ctx, dir, "check-ignore", "-q", "--", path)
	return err == nil
}

// Check inspects the ledger file, each plaintext path and its blob.
// blobs[i] is the encrypted sibling of plaintext[i].
func Check(ctx context.Context, dir, ledgerName string, plaintext, blobs []string) (*Report, error) {
	if len(plaintext) != len(blobs) {
		return nil, fmt.Errorf("git check: %d plaintext paths but %d blobs", len(plaintext), len(blobs))
	}

	report := &Report{LedgerName: ledgerName}
	if !IsRepo(ctx, dir) {
		return report, nil
	}
	report.IsRepo = true
	report.LedgerTracked = IsTracked(ctx, dir, ledgerName)

	for i, file := range plaintext {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch {
		case IsTracked(ctx, dir, file):
			report.TrackedPlaintext = append(report.TrackedPlaintext, file)
		case IsIgnored(ctx, dir, file):
			report.IgnoredPlaintext = append(report.IgnoredPlaintext, file)
		default:
			report.ExposedPlaintext = append(report.ExposedPlaintext, file)
		}

		if !IsTracked(ctx, dir, blobs[i]) {
			report.UntrackedBlobs = append(report.UntrackedBlobs, blobs[i])
		}
	}

	return report, nil
}

// Format renders the report for the status command. Empty outside a repository.
func (r *Report) Format() string {
	if r == nil || !r.IsRepo {
		return ""
	}

	var b strings.Builder
	b.WriteString("\nGit:\n")

	if r.LedgerTracked {
		fmt.Fprintf(&b, "   ok: %s is tracked\n", r.LedgerName)
	} else {
		fmt.Fprintf(&b, "   warning: %s not tracked (run: git add %s)\n", r.LedgerName, r.LedgerName)
	}

	if len(r.TrackedPlaintext) > 0 {
		fmt.Fprintf(&b, "   error: %d plaintext file(s) tracked by git:\n", len(r.TrackedPlaintext))
		for _, file := range r.TrackedPlaintext {
			fmt.Fprintf(&b, "      - %s (run: git rm --cached %s)\n", file, file)
		}
	}

	for _, file := range r.ExposedPlaintext {
		fmt.Fprintf(&b, "   warning: %s not in .gitignore\n", file)
	}

	if len(r.TrackedPlaintext) == 0 && len(r.ExposedPlaintext) == 0 && len(r.IgnoredPlaintext) > 0 {
		fmt.Fprintf(&b, "   ok: %d plaintext file(s) in .gitignore\n", len(r.IgnoredPlaintext))
	}

	if len(r.UntrackedBlobs) > 0 {
		fmt.Fprintf(&b, "   note: %d encrypted file(s) not added to git\n", len(r.UntrackedBlobs))
	}

	return b.String()
}
