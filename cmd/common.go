package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hyperdrive-data/hyperdrive/internal/blobstore"
	"github.com/hyperdrive-data/hyperdrive/internal/config"
	"github.com/hyperdrive-data/hyperdrive/internal/core"
	"github.com/hyperdrive-data/hyperdrive/internal/crypto"
	"github.com/hyperdrive-data/hyperdrive/internal/keyring"
	"github.com/hyperdrive-data/hyperdrive/internal/logger"
)

// Session is an opened workspace plus the configuration it was built from
type Session struct {
	Config    config.Config
	Logger    *slog.Logger
	Workspace *core.Workspace
	closers   []func() error
}

// Open loads configuration, builds the logger and opens the workspace in the
// current directory. The remote store is attached when one is configured.
func Open(ctx context.Context) *Session {
	cfg, err := config.Load(".")
	if err != nil {
		HandleError(err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		HandleError(err)
	}
	if cfg.EnvFile != "" {
		log.Debug("loaded configuration", "file", cfg.EnvFile)
	}

	s := &Session{Config: cfg, Logger: log}

	opts := []core.Option{
		core.WithLogger(log),
		core.WithLedgerName(cfg.Ledger),
		core.WithSuffix(cfg.Suffix),
	}
	store, err := s.openStore(ctx)
	if err != nil {
		HandleError(err)
	}
	if store != nil {
		opts = append(opts, core.WithStore(store))
	}

	ws, err := core.New(".", opts...)
	if err != nil {
		s.Close()
		HandleError(err)
	}
	s.Workspace = ws
	s.closers = append(s.closers, ws.Close)
	return s
}

// Close releases the workspace and any store handles
func (s *Session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.Logger.Debug("close failed", "error", err)
		}
	}
	s.closers = nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	// Diagnostics go to stderr; stdout carries command output
	return logger.New(
		logger.WithLevel(level),
		logger.WithFormat(format),
		logger.WithOutput(os.Stderr),
	), nil
}

func (s *Session) openStore(ctx context.Context) (blobstore.Store, error) {
	switch s.Config.RemoteKind() {
	case "mirror":
		store, err := blobstore.NewDirStore(s.Config.Mirror)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		s.Logger.Debug("using directory mirror", "dir", store.Dir())
		return store, nil
	case "s3":
		store, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:         s.Config.BucketName(),
			Region:         s.Config.Region,
			Prefix:         s.Config.Prefix,
			Endpoint:       s.Config.Endpoint,
			ForcePathStyle: s.Config.ForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		s.Logger.Debug("using s3 bucket", "bucket", store.Bucket())
		return store, nil
	default:
		return nil, nil
	}
}

// Cryptographer derives the workspace key. The password comes from
// RH_PASSWORD, then the OS keyring, then a terminal prompt. A keyring entry
// that no longer verifies is reported and the user is prompted instead.
// With confirm a prompted password is asked twice when the ledger has no
// password check yet.
func (s *Session) Cryptographer(prompt string, confirm bool) *crypto.Cryptographer {
	salt, err := s.Config.RequireSalt()
	if err != nil {
		HandleError(err)
	}

	if s.Config.Password != "" {
		return newCryptographer(s.Config.Password, salt)
	}

	ledgerID, _ := s.Workspace.LedgerID()
	if stored, err := keyring.GetPassword(ledgerID); err == nil {
		c := newCryptographer(stored, salt)
		err := s.Workspace.VerifyPassword(c)
		if err == nil {
			s.Logger.Debug("using password from keyring")
			return c
		}
		c.Destroy()
		if !errors.Is(err, core.ErrWrongPassword) {
			HandleError(err)
		}
		fmt.Fprintln(os.Stderr, "warning: password in keyring is out of date")
	}

	if !core.IsInteractive() {
		HandleError(errors.New("no password: set RH_PASSWORD or run in a terminal"))
	}

	var password []byte
	if confirm && !s.Workspace.HasPasswordCheck() {
		password, err = core.ReadPasswordConfirm(prompt)
	} else {
		password, err = core.ReadPassword(prompt)
	}
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	c := newCryptographer(password, salt)
	if err := s.Workspace.VerifyPassword(c); errors.Is(err, core.ErrWrongPassword) {
		c.Destroy()
		HandleError(err)
	}
	return c
}

func newCryptographer[P crypto.Secret](password P, salt string) *crypto.Cryptographer {
	c, err := crypto.New(password, salt)
	if err != nil {
		HandleError(err)
	}
	return c
}

// fileArgs falls back to FILE when no file argument was given
func (s *Session) fileArgs(args []string) []string {
	if len(args) == 0 && s.Config.File != "" {
		return []string{s.Config.File}
	}
	return args
}

// PrintResult prints a summary line and exits non-zero when any file failed
func PrintResult(verb string, res *core.Result) {
	if res == nil {
		return
	}
	fmt.Printf("\n%d %s, %d skipped, %d failed\n", len(res.Done), verb, len(res.Skipped), len(res.Errors))
	if len(res.Errors) > 0 {
		os.Exit(1)
	}
}

// HandleError handles common errors consistently
func HandleError(err error) {
	switch {
	case errors.Is(err, core.ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "Error: no %s ledger in this directory\n", core.DefaultLedgerName)
		fmt.Fprintf(os.Stderr, "Run 'hyperdrive encrypt <file>' to start tracking files\n")
	case errors.Is(err, core.ErrWrongPassword), errors.Is(err, crypto.ErrAuthentication):
		fmt.Fprintf(os.Stderr, "Error: wrong password or salt\n")
	case errors.Is(err, config.ErrMissingSalt):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Run 'hyperdrive salt' and add the result to %s\n", config.EnvFile)
	case errors.Is(err, core.ErrNoStore):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Set S3_BUCKET or HYPERDRIVE_MIRROR\n")
	case errors.Is(err, core.ErrConflict):
		fmt.Fprintf(os.Stderr, "Error: %s (aborted)\n", err)
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(os.Stderr, "Interrupted\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
