// Package core implements the file level operations of a hyperdrive workspace.
//
// A workspace is a directory holding plaintext files, their encrypted
// siblings (<file>.encrypted) and a bbolt ledger. The ledger records the
// content hash of each encrypted file and when its blob was last pushed.
//
// Operations:
//   - Encrypt: write blobs for plaintext files and record them
//   - Decrypt: restore plaintext, resolving conflicts with local edits
//   - Diff, Status: compare blobs and plaintext
//   - Rotate: re-encrypt everything under a new password or salt
//   - Forget, Move: maintain the ledger
//   - Push, Pull: sync blobs with a blobstore.Store
//
// Conflict resolution during Decrypt supports keeping the local file,
// overwriting it, keeping both (.from-encrypted), aborting, or merging in
// $EDITOR with git-style conflict markers.
package core
