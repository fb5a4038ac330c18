package cmd

import (
	"context"
	"fmt"
	"os"
)

// Diff compares decrypted blobs with local files
func Diff(ctx context.Context, files []string) {
	s := Open(ctx)
	defer s.Close()

	c := s.Cryptographer("Enter password: ", false)
	defer c.Destroy()

	changed, err := s.Workspace.Diff(ctx, c, os.Stdout, files)
	if err != nil {
		HandleError(err)
	}
	if changed == 0 {
		fmt.Println("No changes detected")
	}
}
