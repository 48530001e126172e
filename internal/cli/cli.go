// Package cli parses mindwell command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/mindwell/internal/ipc"
)

type Command string

const (
	CommandServe      Command = "serve"
	CommandToggle     Command = "toggle"
	CommandConnect    Command = "connect"
	CommandDisconnect Command = "disconnect"
	CommandReset      Command = "reset"
	CommandStatus     Command = "status"
	CommandResult     Command = "result"
	CommandHelplines  Command = "helplines"
	CommandQuit       Command = "quit"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandServe:      {},
	CommandToggle:     {},
	CommandConnect:    {},
	CommandDisconnect: {},
	CommandReset:      {},
	CommandStatus:     {},
	CommandResult:     {},
	CommandHelplines:  {},
	CommandQuit:       {},
	CommandDevices:    {},
	CommandDoctor:     {},
	CommandVersion:    {},
	CommandHelp:       {},
}

// forwarded maps commands served by the session owner to their IPC verb.
var forwarded = map[Command]string{
	CommandToggle:     ipc.CommandToggle,
	CommandConnect:    ipc.CommandConnect,
	CommandDisconnect: ipc.CommandDisconnect,
	CommandReset:      ipc.CommandReset,
	CommandStatus:     ipc.CommandStatus,
	CommandResult:     ipc.CommandSnapshot,
	CommandHelplines:  ipc.CommandSnapshot,
	CommandQuit:       ipc.CommandQuit,
}

// IPC returns the owner-side command for c, if c is forwarded.
func (c Command) IPC() (string, bool) {
	verb, ok := forwarded[c]
	return verb, ok
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-h" || arg == "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case arg == "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case arg == "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			parsed.ConfigPath = strings.TrimPrefix(arg, "--config=")
			if parsed.ConfigPath == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
		case strings.HasPrefix(arg, "-"):
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		default:
			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  serve       Own the session and wait for commands
  toggle      Start a screening conversation, or end the active one
  connect     Start a screening conversation
  disconnect  End the active conversation
  reset       Clear the result and helplines for a new screening
  status      Print the current session phase
  result      Print the latest screening result
  helplines   Print the helpline list
  quit        Stop the session owner
  devices     List available input devices
  doctor      Run configuration and environment checks
  version     Print version information
  help        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/mindwell/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
