package cmd

import (
	"context"

	"github.com/hyperdrive-data/hyperdrive/internal/core"
)

// Decrypt restores plaintext files from their encrypted siblings
func Decrypt(ctx context.Context, files []string, strategy string) {
	s := Open(ctx)
	defer s.Close()

	st, err := core.ParseStrategy(strategy)
	if err != nil {
		HandleError(err)
	}
	if st == core.StrategyAsk && !core.IsInteractive() {
		s.Logger.Warn("stdin is not a terminal, conflicts keep the local file")
		st = core.StrategyKeepLocal
	}

	c := s.Cryptographer("Enter password: ", false)
	defer c.Destroy()

	res, err := s.Workspace.Decrypt(ctx, c, st, s.fileArgs(files))
	if err != nil {
		HandleError(err)
	}
	PrintResult("decrypted", res)
}
