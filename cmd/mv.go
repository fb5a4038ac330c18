package cmd

import (
	"context"
	"fmt"
	"os"
)

// Move renames a tracked file together with its blob and remote object
func Move(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: hyperdrive mv <from> <to>\n")
		os.Exit(1)
	}

	s := Open(ctx)
	defer s.Close()

	if err := s.Workspace.Move(ctx, args[0], args[1]); err != nil {
		HandleError(err)
	}
}
