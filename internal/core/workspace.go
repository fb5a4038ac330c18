package core

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hyperdrive-data/hyperdrive/internal/blobstore"
	"github.com/hyperdrive-data/hyperdrive/internal/crypto"
	"github.com/hyperdrive-data/hyperdrive/internal/logger"
	"github.com/hyperdrive-data/hyperdrive/internal/security"
	"github.com/hyperdrive-data/hyperdrive/internal/storage"
)

const (
	DefaultLedgerName   = ".hyperdrive"
	DefaultSuffix       = ".encrypted"
	KeepBothSuffix      = ".from-encrypted"
	DirPermSecure       = 0700 // Directory: owner rwx only
	FilePermSecure      = 0600 // File: owner rw only
	MaxKeepBothCopies   = 100  // Max numbered .from-encrypted.N copies
	passwordCheckString = "hyperdrive-password-check"
)

var (
	ErrNotInitialized = errors.New("no hyperdrive ledger in this directory")
	ErrWrongPassword  = errors.New("wrong password or salt")
	ErrNoFiles        = errors.New("no files given")
	ErrNoMatch        = errors.New("no tracked files match")
	ErrNoStore        = errors.New("no remote blob store configured")
	ErrConflict       = errors.New("local file differs from encrypted version")
)

// Workspace performs file level operations on a directory tree holding
// plaintext files, their encrypted siblings, and the ledger.
type Workspace struct {
	dir        string
	root       *security.Root
	ledgerName string
	suffix     string
	store      blobstore.Store
	logger     *slog.Logger
	out        io.Writer
	in         io.Reader
	reader     *bufio.Reader
}

// Option configures a Workspace
type Option func(*Workspace)

// WithLogger sets the diagnostic logger
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithStore sets the remote blob store used by Push and Pull
func WithStore(s blobstore.Store) Option {
	return func(w *Workspace) {
		w.store = s
	}
}

// WithLedgerName overrides the ledger file name
func WithLedgerName(name string) Option {
	return func(w *Workspace) {
		if name != "" {
			w.ledgerName = name
		}
	}
}

// WithSuffix overrides the blob suffix
func WithSuffix(suffix string) Option {
	return func(w *Workspace) {
		if suffix != "" {
			w.suffix = suffix
		}
	}
}

// WithOutput sets where progress lines and prompts are written
func WithOutput(out io.Writer) Option {
	return func(w *Workspace) {
		w.out = out
	}
}

// WithInput sets where conflict answers are read from
func WithInput(in io.Reader) Option {
	return func(w *Workspace) {
		w.in = in
	}
}

// New opens the workspace rooted at dir
func New(dir string, opts ...Option) (*Workspace, error) {
	root, err := security.New(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	w := &Workspace{
		dir:        root.Dir(),
		root:       root,
		ledgerName: DefaultLedgerName,
		suffix:     DefaultSuffix,
		logger:     logger.Nop(),
		out:        os.Stdout,
		in:         os.Stdin,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Close releases resources held by the workspace
func (w *Workspace) Close() error {
	return w.root.Close()
}

// Dir returns the absolute workspace directory
func (w *Workspace) Dir() string {
	return w.dir
}

// LedgerPath returns the absolute ledger path
func (w *Workspace) LedgerPath() string {
	return filepath.Join(w.dir, w.ledgerName)
}

// Store returns the configured blob store, or nil
func (w *Workspace) Store() blobstore.Store {
	return w.store
}

// BlobPath returns the encrypted sibling of a plaintext path
func (w *Workspace) BlobPath(plain string) string {
	return plain + w.suffix
}

// PlainPath strips the blob suffix from a path, if present
func (w *Workspace) PlainPath(p string) string {
	return strings.TrimSuffix(p, w.suffix)
}

func (w *Workspace) isBlob(p string) bool {
	return strings.HasSuffix(p, w.suffix) && len(p) > len(w.suffix)
}

// Initialized reports whether the ledger file exists
func (w *Workspace) Initialized() bool {
	_, err := os.Stat(w.LedgerPath())
	return err == nil
}

// openLedger opens the ledger. Without create a missing ledger is ErrNotInitialized.
func (w *Workspace) openLedger(create bool) (*storage.Ledger, error) {
	if !create && !w.Initialized() {
		return nil, ErrNotInitialized
	}
	db, err := storage.Open(w.LedgerPath())
	if err != nil {
		return nil, err
	}
	if !create {
		ok, err := db.IsInitialized()
		if err == nil && !ok {
			err = ErrNotInitialized
		}
		if err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}
	return db, nil
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// secureFileMode keeps owner bits only, defaulting to FilePermSecure
func secureFileMode(mode uint32) os.FileMode {
	secure := os.FileMode(mode) & 0700
	if secure == 0 {
		return FilePermSecure
	}
	return secure
}

// VerifyPassword checks c against the ledger's check blob.
// A ledger without a check blob accepts any Cryptographer.
func (w *Workspace) VerifyPassword(c *crypto.Cryptographer) error {
	db, err := w.openLedger(false)
	if err != nil {
		return err
	}
	defer db.Close()
	return verifyCheck(db, c)
}

// HasPasswordCheck reports whether the ledger already stores a password check
func (w *Workspace) HasPasswordCheck() bool {
	db, err := w.openLedger(false)
	if err != nil {
		return false
	}
	defer db.Close()
	_, err = db.GetCheck()
	return err == nil
}

func verifyCheck(db *storage.Ledger, c *crypto.Cryptographer) error {
	check, err := db.GetCheck()
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	text, err := c.DecryptText(check)
	if err != nil {
		return ErrWrongPassword
	}
	if !crypto.ConstantTimeCompare([]byte(text), []byte(passwordCheckString)) {
		return ErrWrongPassword
	}
	return nil
}

func writeCheck(db *storage.Ledger, c *crypto.Cryptographer) error {
	check, err := c.EncryptText(passwordCheckString)
	if err != nil {
		return err
	}
	return db.SetCheck(check)
}

// LedgerID returns the ledger id used as keyring account
func (w *Workspace) LedgerID() (string, error) {
	db, err := w.openLedger(false)
	if err != nil {
		return "", err
	}
	defer db.Close()
	return db.GetLedgerID()
}

// GetOrCreateLedgerID returns the ledger id, creating the ledger and id if needed
func (w *Workspace) GetOrCreateLedgerID() (string, error) {
	db, err := w.openLedger(true)
	if err != nil {
		return "", err
	}
	defer db.Close()
	return db.GetOrCreateLedgerID()
}

// Compact rewrites the ledger file without free pages
func (w *Workspace) Compact() error {
	db, err := w.openLedger(false)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Compact()
}

// Entries returns all ledger entries
func (w *Workspace) Entries() ([]storage.Entry, error) {
	db, err := w.openLedger(false)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.Entries()
}

// selectEntries filters entries by exact path (plaintext or blob) or glob pattern
func (w *Workspace) selectEntries(entries []storage.Entry, patterns []string) []storage.Entry {
	if len(patterns) == 0 {
		return entries
	}
	var selected []storage.Entry
	for _, e := range entries {
		for _, pattern := range patterns {
			p := filepath.ToSlash(pattern)
			if clean, err := w.root.Clean(pattern); err == nil {
				p = clean
			}
			p = w.PlainPath(p)
			if e.Path == p {
				selected = append(selected, e)
				break
			}
			if matched, _ := path.Match(p, e.Path); matched {
				selected = append(selected, e)
				break
			}
		}
	}
	return selected
}
