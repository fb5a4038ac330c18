package cmd

import (
	"context"
)

// Push uploads changed blobs to the configured store
func Push(ctx context.Context, files []string, force bool) {
	s := Open(ctx)
	defer s.Close()

	res, err := s.Workspace.Push(ctx, files, force)
	if err != nil {
		HandleError(err)
	}
	PrintResult("pushed", res)
}

// Pull downloads blobs from the configured store. Decrypt them afterwards.
func Pull(ctx context.Context, files []string) {
	s := Open(ctx)
	defer s.Close()

	res, err := s.Workspace.Pull(ctx, files)
	if err != nil {
		HandleError(err)
	}
	PrintResult("pulled", res)
}
