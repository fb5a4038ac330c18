package cmd

import (
	"context"
	"fmt"
	"os"
)

// Encrypt writes an encrypted sibling for each file and records it in the ledger
func Encrypt(ctx context.Context, files []string, remove bool) {
	s := Open(ctx)
	defer s.Close()

	files = s.fileArgs(files)
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Error: encrypt requires at least one file argument (or FILE)\n")
		fmt.Fprintf(os.Stderr, "Usage: hyperdrive encrypt [-remove] <file> [file...]\n")
		os.Exit(1)
	}

	c := s.Cryptographer("Enter password: ", true)
	defer c.Destroy()

	res, err := s.Workspace.Encrypt(ctx, c, files, remove)
	if err != nil {
		HandleError(err)
	}
	PrintResult("encrypted", res)
}
