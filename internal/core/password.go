package core

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/hyperdrive-data/hyperdrive/internal/crypto"
)

// ErrPasswordMismatch is returned when the confirmation differs
var ErrPasswordMismatch = fmt.Errorf("passwords do not match")

// ReadPassword reads a password from the terminal without echo.
// The prompt goes to stderr so stdout stays usable for piping.
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// ReadPasswordConfirm reads a password twice and ensures they match
func ReadPasswordConfirm(prompt string) ([]byte, error) {
	first, err := ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(first)

	second, err := ReadPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(second)

	if !crypto.ConstantTimeCompare(first, second) {
		return nil, ErrPasswordMismatch
	}

	result := make([]byte, len(first))
	copy(result, first)
	return result, nil
}

// IsInteractive reports whether stdin is a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
