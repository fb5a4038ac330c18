package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hyperdrive-data/hyperdrive/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "salt":
		cmd.Salt()
	case "encrypt":
		runEncrypt(ctx, os.Args[2:])
	case "decrypt":
		runDecrypt(ctx, os.Args[2:])
	case "diff":
		runDiff(ctx, os.Args[2:])
	case "status", "ls":
		runStatus(ctx, os.Args[2:])
	case "passwd":
		runPasswd(ctx, os.Args[2:])
	case "forget":
		runForget(ctx, os.Args[2:])
	case "mv":
		runMove(ctx, os.Args[2:])
	case "push":
		runPush(ctx, os.Args[2:])
	case "pull":
		runPull(ctx, os.Args[2:])
	case "compact":
		runCompact(ctx, os.Args[2:])
	case "keyring":
		runKeyring(ctx, os.Args[2:])
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func parse(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func runEncrypt(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	removeShort := fs.Bool("r", false, "Remove plaintext files after encrypting")
	removeLong := fs.Bool("remove", false, "Remove plaintext files after encrypting")
	parse(fs, args)

	cmd.Encrypt(ctx, fs.Args(), *removeShort || *removeLong)
}

func runDecrypt(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("decrypt", flag.ExitOnError)
	strategy := fs.String("strategy", "ask", "Conflict strategy: ask, keep-local, use-encrypted, keep-both, abort")
	force := fs.Bool("force", false, "Overwrite local files without asking (same as -strategy use-encrypted)")
	parse(fs, args)

	if *force {
		*strategy = "use-encrypted"
	}
	cmd.Decrypt(ctx, fs.Args(), *strategy)
}

func runDiff(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	parse(fs, args)

	cmd.Diff(ctx, fs.Args())
}

func runStatus(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	parse(fs, args)

	cmd.Status(ctx)
}

func runPasswd(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	newSalt := fs.Bool("new-salt", false, "Generate a new salt as well")
	parse(fs, args)

	cmd.Passwd(ctx, *newSalt)
}

func runForget(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("forget", flag.ExitOnError)
	deleteBlobs := fs.Bool("delete", false, "Delete local and remote blobs too")
	parse(fs, args)

	cmd.Forget(ctx, fs.Args(), *deleteBlobs)
}

func runMove(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("mv", flag.ExitOnError)
	parse(fs, args)

	cmd.Move(ctx, fs.Args())
}

func runPush(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("push", flag.ExitOnError)
	force := fs.Bool("force", false, "Upload blobs even if already pushed")
	parse(fs, args)

	cmd.Push(ctx, fs.Args(), *force)
}

func runPull(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	parse(fs, args)

	cmd.Pull(ctx, fs.Args())
}

func runCompact(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	parse(fs, args)

	cmd.Compact(ctx)
}

func runKeyring(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: hyperdrive keyring <save|delete|status>")
		os.Exit(1)
	}
	switch args[0] {
	case "save":
		cmd.KeyringSave(ctx)
	case "delete":
		cmd.KeyringDelete(ctx)
	case "status":
		cmd.KeyringStatus(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring command: %s\n", args[0])
		os.Exit(1)
	}
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: hyperdrive completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("hyperdrive - encrypted data files next to their plaintext")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  hyperdrive <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  salt        Generate a random salt for config.env")
	fmt.Println("  encrypt     Encrypt files into <file>.encrypted")
	fmt.Println("  decrypt     Restore files from <file>.encrypted")
	fmt.Println("  diff        Compare encrypted contents with local files")
	fmt.Println("  status, ls  Show tracked files and their state")
	fmt.Println("  passwd      Change password and re-encrypt every file")
	fmt.Println("  forget      Stop tracking files")
	fmt.Println("  mv          Rename a tracked file")
	fmt.Println("  push        Upload encrypted files to the remote store")
	fmt.Println("  pull        Download encrypted files from the remote store")
	fmt.Println("  compact     Compact the ledger to reclaim disk space")
	fmt.Println("  keyring     Manage password in OS keyring")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Configuration is read from config.env and the environment:")
	fmt.Println("  RH_PASSWORD, SALT, FILE, S3_BUCKET, S3_DEV_BUCKET, DEV, HYPERDRIVE_MIRROR")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  hyperdrive salt >> config.env       # Create a salt")
	fmt.Println("  hyperdrive encrypt -r .env          # Encrypt .env and remove original")
	fmt.Println("  hyperdrive decrypt                  # Decrypt all tracked files")
	fmt.Println("  hyperdrive status                   # Check state")
	fmt.Println()
	fmt.Println("Use 'hyperdrive help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "salt":
		fmt.Println("hyperdrive salt")
		fmt.Println()
		fmt.Println("Prints a random salt as a SALT=... line for config.env.")
		fmt.Println("Every machine that decrypts the files needs the same salt.")
	case "encrypt":
		fmt.Println("hyperdrive encrypt [-r|-remove] [<file> [file...]]")
		fmt.Println()
		fmt.Println("Encrypts each file into <file>.encrypted and records it in the ledger.")
		fmt.Println("Unchanged files are skipped. Without arguments FILE is used.")
		fmt.Println("The first encryption stores a password check in the ledger.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -r, -remove    Remove plaintext files after encrypting")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  hyperdrive encrypt .env")
		fmt.Println("  hyperdrive encrypt -remove data/keys.csv data/prices.csv")
	case "decrypt":
		fmt.Println("hyperdrive decrypt [-strategy <name>|-force] [<file> [file...]]")
		fmt.Println()
		fmt.Println("Restores plaintext files from their encrypted siblings.")
		fmt.Println("Without arguments every tracked file is decrypted, or FILE when set.")
		fmt.Println("A <file>.encrypted without a ledger entry can be named explicitly.")
		fmt.Println("Supports glob patterns for tracked files.")
		fmt.Println()
		fmt.Println("Strategies for local files that differ:")
		fmt.Println("  ask            Prompt for each file (default)")
		fmt.Println("  keep-local     Keep the local file")
		fmt.Println("  use-encrypted  Overwrite with the decrypted content")
		fmt.Println("  keep-both      Save the decrypted content as <file>.from-encrypted")
		fmt.Println("  abort          Stop at the first conflict")
		fmt.Println()
		fmt.Println("Interactive mode offers:")
		fmt.Println("  [l] Keep local version")
		fmt.Println("  [u] Use encrypted version (overwrite local)")
		fmt.Println("  [e] Edit merged (opens in $EDITOR, text files only)")
		fmt.Println("  [b] Keep both")
		fmt.Println("  [x] Skip this file")
	case "diff":
		fmt.Println("hyperdrive diff [<file> [file...]]")
		fmt.Println()
		fmt.Println("Prints a unified diff from the encrypted content to each local file.")
	case "status", "ls":
		fmt.Println("hyperdrive status")
		fmt.Println()
		fmt.Println("Shows tracked files with their state:")
		fmt.Println("  * unchanged       local file matches the blob")
		fmt.Println("  + modified        local file changed since encryption")
		fmt.Println("  . encrypted only  no local plaintext")
		fmt.Println("  ! blob missing    the .encrypted file is gone")
		fmt.Println()
		fmt.Println("Also reports the remote store and git hygiene. Does not require a password.")
	case "passwd":
		fmt.Println("hyperdrive passwd [-new-salt]")
		fmt.Println()
		fmt.Println("Re-encrypts every tracked file under a new password.")
		fmt.Println("With -new-salt a new salt is generated and printed; put it in config.env.")
		fmt.Println("Pushed blobs must be pushed again afterwards.")
	case "forget":
		fmt.Println("hyperdrive forget [-delete] <file> [file...]")
		fmt.Println()
		fmt.Println("Removes files from the ledger. Plaintext files are left alone.")
		fmt.Println("With -delete the local blobs and their remote copies are deleted too.")
	case "mv":
		fmt.Println("hyperdrive mv <from> <to>")
		fmt.Println()
		fmt.Println("Renames a tracked file, its blob and its remote copy.")
	case "push":
		fmt.Println("hyperdrive push [-force] [<file> [file...]]")
		fmt.Println()
		fmt.Println("Uploads blobs that changed since the last push to S3_BUCKET")
		fmt.Println("(S3_DEV_BUCKET when DEV=true) or to the HYPERDRIVE_MIRROR directory.")
	case "pull":
		fmt.Println("hyperdrive pull [<file> [file...]]")
		fmt.Println()
		fmt.Println("Downloads blobs from the remote store. Run 'hyperdrive decrypt' afterwards.")
		fmt.Println("Local blobs that were never pushed are not overwritten.")
	case "compact":
		fmt.Println("hyperdrive compact")
		fmt.Println()
		fmt.Println("Compacts the ledger database to reclaim unused disk space.")
		fmt.Println("Does not require a password.")
	case "keyring":
		fmt.Println("hyperdrive keyring <save|delete|status>")
		fmt.Println()
		fmt.Println("Stores the password in the OS keyring so commands stop prompting.")
		fmt.Println("RH_PASSWORD, when set, takes precedence.")
	case "completion":
		fmt.Println("hyperdrive completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(hyperdrive completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(hyperdrive completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  hyperdrive completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
