// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line entry points for rigchat.
//
// rigchat with no arguments launches the TUI. Everything else is a
// subcommand handled here: one-shot questions, a terminal REPL, model
// listing, status, config management, search, export, and setup.
//
// Flags are parsed by hand so both "--flag value" and "--flag=value"
// work everywhere without pulling in a flag framework.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// =============================================================================
// VERSION INFORMATION
// =============================================================================

// Build-time variables, set via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command identifies which subcommand was requested.
type Command int

const (
	// CmdTUI launches the full-screen chat interface (the default).
	CmdTUI Command = iota
	// CmdAsk sends a one-shot question and prints the answer.
	CmdAsk
	// CmdChat starts the line-oriented terminal REPL.
	CmdChat
	// CmdModels lists the models the server reports.
	CmdModels
	// CmdStatus shows server health and a configuration summary.
	CmdStatus
	// CmdConfig inspects or changes configuration values.
	CmdConfig
	// CmdSearch runs a full-text search over saved conversations.
	CmdSearch
	// CmdExport writes a conversation as markdown or JSON.
	CmdExport
	// CmdSetup runs the interactive first-run setup.
	CmdSetup
	// CmdVersion prints version information.
	CmdVersion
	// CmdHelp prints usage.
	CmdHelp
)

// Args holds the parsed command-line arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool
	Model   string

	// ask / chat
	Query    string
	File     string
	System   string
	RawOut   bool
	NoStream bool

	// config
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// search / export
	Limit  int
	Format string
	Output string

	// Raw arguments after the command name
	Raw []string
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `rigchat - terminal chat client for OpenAI-compatible servers

Usage:
  rigchat                     Launch the chat TUI
  rigchat ask <question>      One-shot question, answer to stdout
  rigchat chat                Interactive terminal REPL
  rigchat models              List models reported by the server
  rigchat status              Server health and configuration summary
  rigchat config <action>     get <key> | set <key> <value> | list | path | set-key
  rigchat search <query>      Full-text search across saved conversations
  rigchat export <id>         Export a conversation (markdown or JSON)
  rigchat setup               Interactive first-run setup
  rigchat version             Show version information

Global Flags:
  -m, --model NAME    Override the configured model
      --json          Machine-readable JSON output
  -q, --quiet         Suppress progress and statistics
  -v, --verbose       Verbose diagnostics to stderr

Ask Flags:
  -f, --file PATH     Include a file as context
      --system TEXT   Override the system prompt
      --raw           Skip markdown rendering
      --no-stream     Print the answer only when complete

Export Flags:
      --format FMT    markdown (default) or json
  -o, --output PATH   Write to a file instead of stdout

Search Flags:
  -n, --limit N       Maximum results (default 20)

Examples:
  rigchat ask "explain this error" -f build.log
  rigchat ask --model qwen2.5:14b "summarize the design"
  cat notes.md | rigchat ask "turn this into a checklist"
  rigchat search "gc tuning" -n 5
  rigchat export a1b2c3 --format json -o backup.json

Version: %s
`

// PrintUsage writes the usage text to stdout.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion writes version information to stdout.
func PrintVersion() {
	fmt.Printf("rigchat %s\n", Version)
	fmt.Printf("  commit: %s\n", GitCommit)
	fmt.Printf("  built:  %s\n", BuildDate)
}

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

// Parse reads os.Args and returns the requested command and its arguments.
// Unknown first arguments fall through to the TUI so "rigchat" stays the
// one-word way in.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses the given argument list. Split out from Parse for tests.
func ParseArgs(raw []string) (Command, Args) {
	args := Args{Limit: 20}
	rest := parseGlobalFlags(raw, &args)

	if len(rest) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(rest[0])
	args.Raw = rest[1:]

	switch cmd {
	case "ask", "a", "q":
		parseAskArgs(&args)
		return CmdAsk, args
	case "chat", "repl":
		return CmdChat, args
	case "models", "ls":
		return CmdModels, args
	case "status", "s":
		return CmdStatus, args
	case "config", "cfg":
		parseConfigArgs(&args)
		return CmdConfig, args
	case "search", "find":
		parseSearchArgs(&args)
		return CmdSearch, args
	case "export":
		parseExportArgs(&args)
		return CmdExport, args
	case "setup", "init":
		return CmdSetup, args
	case "version", "--version", "-V":
		return CmdVersion, args
	case "help", "--help", "-h":
		return CmdHelp, args
	default:
		// Not a known command: hand everything back and open the TUI
		args.Raw = rest
		return CmdTUI, args
	}
}

// parseGlobalFlags strips flags valid on every command and returns what's
// left in order.
func parseGlobalFlags(raw []string, args *Args) []string {
	var rest []string

	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		switch {
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--json":
			args.JSON = true
		case arg == "-m" || arg == "--model":
			if i+1 < len(raw) {
				i++
				args.Model = raw[i]
			}
		case strings.HasPrefix(arg, "--model="):
			args.Model = strings.TrimPrefix(arg, "--model=")
		default:
			rest = append(rest, arg)
		}
	}
	return rest
}

// parseAskArgs consumes ask-specific flags; remaining positional words are
// joined into the question.
func parseAskArgs(args *Args) {
	var words []string

	for i := 0; i < len(args.Raw); i++ {
		arg := args.Raw[i]
		switch {
		case arg == "-f" || arg == "--file":
			if i+1 < len(args.Raw) {
				i++
				args.File = args.Raw[i]
			}
		case strings.HasPrefix(arg, "--file="):
			args.File = strings.TrimPrefix(arg, "--file=")
		case arg == "--system":
			if i+1 < len(args.Raw) {
				i++
				args.System = args.Raw[i]
			}
		case strings.HasPrefix(arg, "--system="):
			args.System = strings.TrimPrefix(arg, "--system=")
		case arg == "--raw":
			args.RawOut = true
		case arg == "--no-stream":
			args.NoStream = true
		default:
			words = append(words, arg)
		}
	}
	args.Query = strings.Join(words, " ")
}

// parseConfigArgs reads the config action and its positional key/value.
func parseConfigArgs(args *Args) {
	parser := NewArgParser(args.Raw)
	args.Subcommand = parser.Subcommand()
	args.ConfigKey = parser.Positional(1)
	args.ConfigVal = strings.Join(parser.PositionalFrom(2), " ")
}

// parseSearchArgs reads search flags and joins the rest into the query.
func parseSearchArgs(args *Args) {
	var words []string

	for i := 0; i < len(args.Raw); i++ {
		arg := args.Raw[i]
		switch {
		case arg == "-n" || arg == "--limit":
			if i+1 < len(args.Raw) {
				i++
				if n, err := ParseIntWithValidation(args.Raw[i], "limit"); err == nil {
					args.Limit = n
				}
			}
		case strings.HasPrefix(arg, "--limit="):
			if n, err := ParseIntWithValidation(strings.TrimPrefix(arg, "--limit="), "limit"); err == nil {
				args.Limit = n
			}
		default:
			words = append(words, arg)
		}
	}
	args.Query = strings.Join(words, " ")
}

// parseExportArgs reads the conversation id plus format/output flags.
func parseExportArgs(args *Args) {
	args.Format = "markdown"

	for i := 0; i < len(args.Raw); i++ {
		arg := args.Raw[i]
		switch {
		case arg == "--format":
			if i+1 < len(args.Raw) {
				i++
				args.Format = strings.ToLower(args.Raw[i])
			}
		case strings.HasPrefix(arg, "--format="):
			args.Format = strings.ToLower(strings.TrimPrefix(arg, "--format="))
		case arg == "-o" || arg == "--output":
			if i+1 < len(args.Raw) {
				i++
				args.Output = args.Raw[i]
			}
		case strings.HasPrefix(arg, "--output="):
			args.Output = strings.TrimPrefix(arg, "--output=")
		default:
			if args.Query == "" {
				args.Query = arg
			}
		}
	}
}

// =============================================================================
// COMMAND DISPATCH WRAPPERS
// =============================================================================
// Each HandleX wrapper runs the command, prints the error, and exits with
// the code GetExitCode derives from the error type.

// HandleAsk runs the ask command and exits on error.
func HandleAsk(args Args) {
	if err := HandleAskCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleChat runs the interactive REPL and exits on error.
func HandleChat(args Args) {
	if err := HandleChatCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleModels runs the model listing and exits on error.
func HandleModels(args Args) {
	if err := HandleModelsCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleStatus runs the status command and exits on error.
func HandleStatus(args Args) {
	if err := HandleStatusCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleConfig runs the config command and exits on error.
func HandleConfig(args Args) {
	if err := HandleConfigCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleSearch runs the search command and exits on error.
func HandleSearch(args Args) {
	if err := HandleSearchCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleExport runs the export command and exits on error.
func HandleExport(args Args) {
	if err := HandleExportCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleSetup runs the setup command and exits on error.
func HandleSetup(args Args) {
	if err := HandleSetupCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}
