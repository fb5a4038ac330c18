// Package crypto provides the password-based authenticated encryption used
// to protect hyperdrive secrets at rest.
//
// Key derivation uses scrypt with:
//   - N = 65536, r = 8, p = 2
//   - 32-byte derived key
//   - caller-managed salt, used exactly as given (text or bytes)
//
// Encryption uses AES-256-GCM with:
//   - 12-byte random nonce per encryption operation
//   - no additional authenticated data
//   - blob layout: nonce (12) || ciphertext (len(plaintext)) || tag (16)
//
// Any decryption failure, including blobs shorter than nonce + tag, is
// reported as ErrAuthentication and never returns partial plaintext.
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Cryptographer.Destroy() when done. Afterwards Encrypt and Decrypt
//     fail with ErrDestroyed
package crypto
