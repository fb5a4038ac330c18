package cmd

import (
	"context"
	"fmt"
	"os"
)

// Compact rewrites the ledger to reclaim unused space
func Compact(ctx context.Context) {
	s := Open(ctx)
	defer s.Close()

	path := s.Workspace.LedgerPath()
	info, err := os.Stat(path)
	if err != nil {
		HandleError(err)
	}
	sizeBefore := info.Size()

	if err := s.Workspace.Compact(); err != nil {
		HandleError(err)
	}

	info, err = os.Stat(path)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(info.Size()))
}
