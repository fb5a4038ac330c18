package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "hyperdrive"

// ErrNotFound is returned when no password is stored for a ledger
var ErrNotFound = keyring.ErrNotFound

// SavePassword stores a password in the OS keyring under the ledger ID
func SavePassword(ledgerID string, password string) error {
	if ledgerID == "" {
		return errors.New("ledger ID is empty")
	}
	return keyring.Set(serviceName, ledgerID, password)
}

// GetPassword retrieves a password from the OS keyring
func GetPassword(ledgerID string) (string, error) {
	if ledgerID == "" {
		return "", ErrNotFound
	}
	return keyring.Get(serviceName, ledgerID)
}

// DeletePassword removes a password from the OS keyring
func DeletePassword(ledgerID string) error {
	return keyring.Delete(serviceName, ledgerID)
}

// HasPassword checks if a password is stored in the keyring
func HasPassword(ledgerID string) bool {
	_, err := GetPassword(ledgerID)
	return err == nil
}
