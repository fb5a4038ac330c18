package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperdrive-data/hyperdrive/internal/core"
)

var stateIcons = map[string]string{
	core.StateUnchanged:     "*",
	core.StateModified:      "+",
	core.StateEncryptedOnly: ".",
	core.StateBlobMissing:   "!",
}

// Status shows tracked files and how they compare with their blobs.
// No password is required.
func Status(ctx context.Context) {
	s := Open(ctx)
	defer s.Close()

	status, err := s.Workspace.Status(ctx)
	if errors.Is(err, core.ErrNotInitialized) {
		fmt.Printf("No %s ledger found in current directory\n", core.DefaultLedgerName)
		fmt.Println("Run 'hyperdrive encrypt <file>' to start tracking files")
		return
	}
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Ledger: %s\n", s.Workspace.LedgerPath())
	if !status.LastModified.IsZero() {
		fmt.Printf("Last modified: %s\n", status.LastModified.Local().Format(time.RFC3339))
	}
	fmt.Printf("Encryption: %s, key from %s\n", status.Algorithm, status.KDF)
	switch s.Config.RemoteKind() {
	case "s3":
		fmt.Printf("Remote: s3://%s/%s\n", s.Config.BucketName(), s.Config.Prefix)
	case "mirror":
		fmt.Printf("Remote: %s\n", s.Config.Mirror)
	default:
		fmt.Println("Remote: none")
	}

	fmt.Println("\nTracked files:")
	if len(status.Files) == 0 {
		fmt.Println("  (none)")
	}
	for _, f := range status.Files {
		pushed := ""
		if f.Pushed {
			pushed = ", pushed"
		}
		fmt.Printf("  %s %s (%s, %s%s)\n", stateIcons[f.State], f.Path, f.State, formatSize(f.Size), pushed)
	}

	fmt.Printf("\n%d tracked (%s): %d unchanged, %d modified, %d encrypted only, %d blob missing, %d pushed\n",
		status.TrackedCount, formatSize(status.TotalSize),
		status.UnchangedCount, status.ModifiedCount, status.EncryptedOnly, status.MissingBlobs, status.PushedCount)

	if status.Git != nil {
		fmt.Print(status.Git.Format())
	}
}
