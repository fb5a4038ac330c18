// Package git reports how a hyperdrive workspace relates to its git repository.
//
// The ledger and the encrypted blobs are meant to be committed. Plaintext
// files should be ignored, and a plaintext file in the index is an error.
package git
