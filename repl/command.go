package repl

import (
	"fmt"
	"strings"
)

// CommandKind tags a classified input line.
type CommandKind int

const (
	CommandExit CommandKind = iota
	CommandRaw
	CommandPwd
	CommandChangeDir
	CommandShell
	CommandGet
	CommandPut
)

// Command is one classified input line. Fields other than Kind are only
// meaningful for the kinds that use them.
type Command struct {
	Kind CommandKind

	Raw   string // CommandRaw: text sent as typed
	Dir   string // CommandChangeDir: target, empty means home
	Shell string // CommandShell: the verbatim line

	Remote string // CommandGet/CommandPut
	Local  string // CommandGet/CommandPut
}

// ParseCommand classifies one input line, first match wins. Errors are local
// usage errors and never reach the network.
//
// The cd test is a prefix match on the first token, so a line starting with
// the two characters "cd" followed by a non-separator (e.g. "cdx") is routed
// to the directory change path. That quirk is kept deliberately; see the cd
// routing test.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimRight(line, "\n")

	if line == "exit" || line == "quit" {
		return Command{Kind: CommandExit}, nil
	}

	if strings.HasPrefix(line, ":raw ") {
		return Command{Kind: CommandRaw, Raw: line[len(":raw "):]}, nil
	}
	if line == ":raw" {
		return Command{Kind: CommandRaw}, nil
	}

	if line == "pwd" {
		return Command{Kind: CommandPwd}, nil
	}

	if strings.HasPrefix(line, "cd") {
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			return Command{Kind: CommandChangeDir, Dir: strings.TrimSpace(line[i+1:])}, nil
		}
		return Command{Kind: CommandChangeDir}, nil
	}

	if line == ":get" || strings.HasPrefix(line, ":get ") {
		remote, local, err := transferArgs(line[len(":get"):], ":get <remote> [local]")
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandGet, Remote: remote, Local: local}, nil
	}

	if line == ":put" || strings.HasPrefix(line, ":put ") {
		local, remote, err := transferArgs(line[len(":put"):], ":put <local> [remote]")
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandPut, Remote: remote, Local: local}, nil
	}

	return Command{Kind: CommandShell, Shell: line}, nil
}

func transferArgs(rest, usage string) (first, second string, err error) {
	args := strings.Fields(rest)
	switch len(args) {
	case 1:
		return args[0], "", nil
	case 2:
		return args[0], args[1], nil
	default:
		return "", "", fmt.Errorf("usage: %s", usage)
	}
}
