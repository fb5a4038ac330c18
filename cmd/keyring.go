package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperdrive-data/hyperdrive/internal/core"
	"github.com/hyperdrive-data/hyperdrive/internal/crypto"
	"github.com/hyperdrive-data/hyperdrive/internal/keyring"
)

// KeyringSave saves the password to the OS keyring
func KeyringSave(ctx context.Context) {
	s := Open(ctx)
	defer s.Close()

	salt, err := s.Config.RequireSalt()
	if err != nil {
		HandleError(err)
	}

	password, err := core.ReadPassword("Enter password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	// Verify password is correct
	c := newCryptographer(password, salt)
	defer c.Destroy()
	if err := s.Workspace.VerifyPassword(c); err != nil {
		HandleError(err)
	}

	ledgerID, err := s.Workspace.GetOrCreateLedgerID()
	if err != nil {
		HandleError(err)
	}

	if err := keyring.SavePassword(ledgerID, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password saved to keyring")
}

// KeyringDelete removes the password from the OS keyring
func KeyringDelete(ctx context.Context) {
	s := Open(ctx)
	defer s.Close()

	ledgerID, err := s.Workspace.LedgerID()
	if err != nil {
		fmt.Println("No password stored in keyring")
		return
	}

	if err := keyring.DeletePassword(ledgerID); err != nil {
		fmt.Println("No password stored in keyring")
		return
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus checks if a password is stored in the keyring
func KeyringStatus(ctx context.Context) {
	s := Open(ctx)
	defer s.Close()

	ledgerID, err := s.Workspace.LedgerID()
	if err != nil {
		fmt.Println("Password: not stored")
		return
	}

	if keyring.HasPassword(ledgerID) {
		fmt.Println("Password: stored in keyring")
	} else {
		fmt.Println("Password: not stored")
	}
}
