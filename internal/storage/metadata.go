package storage

import (
	"time"
)

// Entry records one plaintext file and its encrypted sibling
type Entry struct {
	Path        string    `json:"path"`
	Blob        string    `json:"blob"`
	Size        int64     `json:"size"`
	Mode        uint32    `json:"mode"`
	ModTime     time.Time `json:"modTime"`
	Hash        string    `json:"hash"`     // SHA-256 of the plaintext
	BlobHash    string    `json:"blobHash"` // SHA-256 of the blob as written
	EncryptedAt time.Time `json:"encryptedAt"`
	PushedAt    time.Time `json:"pushedAt,omitzero"`
	RemoteKey   string    `json:"remoteKey,omitempty"`
}

// Pushed reports whether the current blob has been uploaded
func (e *Entry) Pushed() bool {
	return !e.PushedAt.IsZero() && !e.PushedAt.Before(e.EncryptedAt)
}
