package cmd

import (
	"context"
	"fmt"
	"os"
)

// Forget stops tracking files. With deleteBlobs their local and remote blobs go too.
func Forget(ctx context.Context, patterns []string, deleteBlobs bool) {
	if len(patterns) == 0 {
		fmt.Fprintf(os.Stderr, "Error: forget requires at least one file argument\n")
		fmt.Fprintf(os.Stderr, "Usage: hyperdrive forget [-delete] <file> [file...]\n")
		os.Exit(1)
	}

	s := Open(ctx)
	defer s.Close()

	forgotten, err := s.Workspace.Forget(ctx, patterns, deleteBlobs)
	if err != nil {
		HandleError(err)
	}

	if err := s.Workspace.Compact(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
	}
	fmt.Printf("\n%d files forgotten\n", len(forgotten))
}
