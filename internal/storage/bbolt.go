package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hyperdrive-data/hyperdrive/internal/crypto"
)

// compactTxSize bounds the bytes copied per transaction during Compact
const compactTxSize = 64 * 1024

// Bucket names
var (
	ConfigBucket = []byte("config") // Ledger version, timestamps, id, password check
	IndexBucket  = []byte("index")  // One JSON Entry per encrypted file
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
	ConfigLedgerID = []byte("ledger_id")
	ConfigCheck    = []byte("check")
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotInitialized = errors.New("ledger not initialized")
)

// Ledger provides BBolt-based storage for the hyperdrive file index
type Ledger struct {
	db *bolt.DB
}

// Open opens or creates a ledger database
func Open(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Initialize creates the bucket structure for a new ledger.
// It is a no-op on an already initialized ledger.
func (l *Ledger) Initialize() error {
	return l.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, IndexBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}

		created, _ := time.Now().MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized
func (l *Ledger) IsInitialized() (bool, error) {
	var initialized bool
	err := l.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// SetCheck stores the encrypted password check blob
func (l *Ledger) SetCheck(blob []byte) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		return config.Put(ConfigCheck, blob)
	})
}

// GetCheck retrieves the encrypted password check blob.
// Returns ErrNotFound when no file has been encrypted yet.
func (l *Ledger) GetCheck() ([]byte, error) {
	var check []byte
	err := l.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotFound
		}
		data := config.Get(ConfigCheck)
		if data == nil {
			return ErrNotFound
		}
		// Make a copy since the slice is only valid during the transaction
		check = append([]byte(nil), data...)
		return nil
	})
	return check, err
}

// UpdateModified updates the last modified timestamp
func (l *Ledger) UpdateModified() error {
	return l.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		modified, _ := time.Now().MarshalBinary()
		return config.Put(ConfigModified, modified)
	})
}

// GetModified retrieves the last modified timestamp
func (l *Ledger) GetModified() (time.Time, error) {
	var modified time.Time
	err := l.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time %w", ErrNotFound)
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// GetLedgerID retrieves the ledger ID used as keyring account
func (l *Ledger) GetLedgerID() (string, error) {
	var id string
	err := l.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data := config.Get(ConfigLedgerID)
		if data == nil {
			return fmt.Errorf("ledger_id %w", ErrNotFound)
		}
		id = string(data)
		return nil
	})
	return id, err
}

// GetOrCreateLedgerID retrieves the existing ledger ID or generates a new one
func (l *Ledger) GetOrCreateLedgerID() (string, error) {
	id, err := l.GetLedgerID()
	if err == nil {
		return id, nil
	}

	b, err := crypto.GenerateRandom(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate ledger ID: %w", err)
	}
	id = hex.EncodeToString(b)

	err = l.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		return config.Put(ConfigLedgerID, []byte(id))
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// PutEntry stores or replaces the entry for e.Path
func (l *Ledger) PutEntry(e Entry) error {
	if e.Path == "" {
		return fmt.Errorf("entry path is empty")
	}
	if e.Size < 0 {
		e.Size = 0
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return ErrNotInitialized
		}
		return index.Put([]byte(e.Path), data)
	})
}

// Rekey stores entries and the new password check in a single transaction.
// Either all of them are written or none are.
func (l *Ledger) Rekey(entries []Entry, check []byte) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		index := tx.Bucket(IndexBucket)
		if config == nil || index == nil {
			return ErrNotInitialized
		}
		for _, e := range entries {
			if e.Path == "" {
				return fmt.Errorf("entry path is empty")
			}
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := index.Put([]byte(e.Path), data); err != nil {
				return err
			}
		}
		if err := config.Put(ConfigCheck, check); err != nil {
			return err
		}
		modified, _ := time.Now().MarshalBinary()
		return config.Put(ConfigModified, modified)
	})
}

// GetEntry returns the entry for path, or ErrNotFound
func (l *Ledger) GetEntry(path string) (*Entry, error) {
	var entry *Entry
	err := l.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return ErrNotFound
		}
		data := index.Get([]byte(path))
		if data == nil {
			return ErrNotFound
		}
		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	return entry, err
}

// RemoveEntry removes path from the index. Removing a missing path is not an error.
func (l *Ledger) RemoveEntry(path string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return nil
		}
		return index.Delete([]byte(path))
	})
}

// Entries returns all entries in key (path) order
func (l *Ledger) Entries() ([]Entry, error) {
	var entries []Entry
	err := l.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return nil
		}
		return index.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupt entry %s: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// Compact rewrites the database into a fresh file without free pages and
// swaps it in place. The ledger stays usable afterwards.
func (l *Ledger) Compact() error {
	srcPath := l.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}
	if err := bolt.Compact(dst, l.db, compactTxSize); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := l.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	replaceErr := os.Rename(tmpPath, srcPath)
	if replaceErr != nil {
		os.Remove(tmpPath)
	}

	// Reopen whichever file is now in place
	db, err := bolt.Open(srcPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to reopen ledger: %w", err)
	}
	l.db = db
	if replaceErr != nil {
		return fmt.Errorf("failed to replace ledger: %w", replaceErr)
	}
	return nil
}
