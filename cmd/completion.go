package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_hyperdrive() {
    local cur prev words cword
    _init_completion || return

    local commands="salt encrypt decrypt diff status passwd forget mv push pull compact keyring help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        encrypt)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-remove" -- "$cur"))
            else
                _filedir
            fi
            ;;
        decrypt)
            if [[ "$prev" == "-strategy" ]]; then
                COMPREPLY=($(compgen -W "ask keep-local use-encrypted keep-both abort" -- "$cur"))
            elif [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-strategy" -- "$cur"))
            else
                COMPREPLY=($(compgen -W "$(_hyperdrive_tracked)" -- "$cur"))
            fi
            ;;
        diff|forget|mv|push|pull)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-delete -force" -- "$cur"))
            else
                COMPREPLY=($(compgen -W "$(_hyperdrive_tracked)" -- "$cur"))
            fi
            ;;
        passwd)
            COMPREPLY=($(compgen -W "-new-salt" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

_hyperdrive_tracked() {
    hyperdrive status 2>/dev/null | grep -E '^  [*+.!] ' | sed 's/^  . //' | sed 's/ (.*//'
}

complete -F _hyperdrive hyperdrive
`

const zshCompletion = `#compdef hyperdrive

_hyperdrive() {
    local -a commands
    commands=(
        'salt:Generate a random salt for config.env'
        'encrypt:Encrypt files next to their plaintext'
        'decrypt:Restore files from their encrypted siblings'
        'diff:Compare encrypted contents with local files'
        'status:Show tracked files and their state'
        'passwd:Change password and re-encrypt every file'
        'forget:Stop tracking files'
        'mv:Rename a tracked file'
        'push:Upload encrypted files to the remote store'
        'pull:Download encrypted files from the remote store'
        'compact:Compact the ledger to reclaim disk space'
        'keyring:Manage password in OS keyring'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'hyperdrive commands' commands
            ;;
        args)
            case "${words[2]}" in
                encrypt)
                    _arguments \
                        '-remove[Remove plaintext after encrypting]' \
                        '*:file:_files'
                    ;;
                decrypt)
                    _arguments \
                        '-strategy[Conflict strategy]:strategy:(ask keep-local use-encrypted keep-both abort)' \
                        '*:tracked file:_hyperdrive_tracked'
                    ;;
                forget)
                    _arguments \
                        '-delete[Delete local and remote blobs]' \
                        '*:tracked file:_hyperdrive_tracked'
                    ;;
                push)
                    _arguments \
                        '-force[Upload even if unchanged]' \
                        '*:tracked file:_hyperdrive_tracked'
                    ;;
                diff|mv|pull)
                    _arguments '*:tracked file:_hyperdrive_tracked'
                    ;;
                passwd)
                    _arguments '-new-salt[Generate a new salt as well]'
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'hyperdrive commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_hyperdrive_tracked() {
    local -a files
    files=(${(f)"$(hyperdrive status 2>/dev/null | grep -E '^  [*+.!] ' | sed 's/^  . //' | sed 's/ (.*//')"})
    _describe -t files 'tracked files' files
}

_hyperdrive "$@"
`

const fishCompletion = `# hyperdrive fish completions

set -l commands salt encrypt decrypt diff status passwd forget mv push pull compact keyring help completion

function __hyperdrive_tracked
    hyperdrive status 2>/dev/null | grep -E '^  [*+.!] ' | sed 's/^  . //' | sed 's/ (.*//'
end

complete -c hyperdrive -f

# Commands
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a salt -d 'Generate a random salt'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a encrypt -d 'Encrypt files'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a decrypt -d 'Decrypt files'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a diff -d 'Compare encrypted with local'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show tracked files'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a passwd -d 'Change password'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a forget -d 'Stop tracking files'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a mv -d 'Rename a tracked file'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a push -d 'Upload encrypted files'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a pull -d 'Download encrypted files'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact ledger'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage password in OS keyring'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c hyperdrive -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# encrypt flags and files
complete -c hyperdrive -n "__fish_seen_subcommand_from encrypt" -o remove -d 'Remove plaintext'
complete -c hyperdrive -n "__fish_seen_subcommand_from encrypt" -F

# decrypt flags
complete -c hyperdrive -n "__fish_seen_subcommand_from decrypt" -o strategy -x -a "ask keep-local use-encrypted keep-both abort" -d 'Conflict strategy'

# tracked files
complete -c hyperdrive -n "__fish_seen_subcommand_from decrypt diff forget mv push pull" -a "(__hyperdrive_tracked)"
complete -c hyperdrive -n "__fish_seen_subcommand_from forget" -o delete -d 'Delete blobs too'
complete -c hyperdrive -n "__fish_seen_subcommand_from push" -o force -d 'Upload even if unchanged'
complete -c hyperdrive -n "__fish_seen_subcommand_from passwd" -o new-salt -d 'Generate a new salt'

# keyring subcommands
complete -c hyperdrive -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c hyperdrive -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c hyperdrive -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
