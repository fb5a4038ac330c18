package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperdrive-data/hyperdrive/internal/config"
	"github.com/hyperdrive-data/hyperdrive/internal/core"
	"github.com/hyperdrive-data/hyperdrive/internal/crypto"
	"github.com/hyperdrive-data/hyperdrive/internal/keyring"
)

// Passwd re-encrypts every blob under a new password, and optionally a new salt
func Passwd(ctx context.Context, newSalt bool) {
	s := Open(ctx)
	defer s.Close()

	ledgerID, err := s.Workspace.LedgerID()
	if err != nil {
		HandleError(err)
	}

	current := s.Cryptographer("Enter current password: ", false)
	defer current.Destroy()

	newPassword, err := core.ReadPasswordConfirm("Enter new password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(newPassword)

	salt := s.Config.Salt
	if newSalt {
		if salt, err = crypto.GenerateSalt(); err != nil {
			HandleError(err)
		}
	}

	next := newCryptographer(newPassword, salt)
	defer next.Destroy()

	n, err := s.Workspace.Rotate(ctx, current, next)
	if err != nil {
		HandleError(err)
	}

	// Update the keyring only when it already held the old password
	if keyring.HasPassword(ledgerID) {
		if err := keyring.SavePassword(ledgerID, string(newPassword)); err == nil {
			fmt.Println("Keyring updated with new password")
		} else {
			fmt.Fprintf(os.Stderr, "warning: failed to update keyring: %s\n", err)
		}
	}

	if err := s.Workspace.Compact(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
	}

	fmt.Printf("password changed, %d files re-encrypted\n", n)
	if newSalt {
		fmt.Printf("\nNew salt, replace SALT in %s:\nSALT=%s\n", config.EnvFile, salt)
	}
	if s.Config.Password != "" {
		fmt.Println("RH_PASSWORD is set; update it to the new password")
	}
}
