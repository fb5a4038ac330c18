// Package storage provides the BBolt ledger used by hyperdrive.
//
// Database structure uses two buckets:
//   - config: ledger version, timestamps, ledger id, password check blob
//   - index: one JSON entry per encrypted file, keyed by plaintext path
//
// The ledger never holds plaintext or key material. The index is readable
// without a password so that status works offline and unauthenticated; the
// check blob lets a password be verified before any file is touched.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
