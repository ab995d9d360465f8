// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the TUI.
package commands

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/index"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command is a slash command: its names, argument schema, and handler.
type Command struct {
	Name        string   // primary name, e.g. "/help"
	Aliases     []string // alternative names, e.g. "/h", "/?"
	Description string   // shown in help and completion
	Usage       string   // argument syntax, e.g. "/model <name>"
	Args        []ArgDef
	Handler     func(ctx *Context, args []string) tea.Cmd
	Hidden      bool   // kept out of help and the palette
	Category    string // grouping for the help screen
}

// ArgDef describes one positional argument. Type drives completion.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string
	Values      []string        // candidates for ArgTypeEnum
	Completer   func() []string // custom candidates for ArgTypeString
}

// ArgType selects the completion source for an argument.
type ArgType int

const (
	ArgTypeString       ArgType = iota // free-form, optional custom Completer
	ArgTypeModel                       // model names from the server
	ArgTypeConversation                // conversation IDs from the store
	ArgTypeFile                        // filesystem paths
	ArgTypeEnum                        // one of ArgDef.Values
	ArgTypeConfig                      // configuration keys
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry resolves command names and aliases to their definitions.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry returns a registry pre-loaded with the built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	for _, cmd := range builtins() {
		r.Register(cmd)
	}
	return r
}

// Register adds a command; its aliases resolve to the same definition.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get resolves a name or alias; nil when unknown.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	return r.aliases[name]
}

// All returns every registered command, hidden ones included.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	return cmds
}

// ByCategory groups the visible commands for the help screen. Commands
// without a category land under "General".
func (r *Registry) ByCategory() map[string][]*Command {
	groups := make(map[string][]*Command)
	for _, cmd := range r.commands {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = "General"
		}
		groups[category] = append(groups[category], cmd)
	}
	return groups
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func builtins() []*Command {
	return []*Command{
		{
			Name:        "/help",
			Aliases:     []string{"/h", "/?"},
			Description: "Show help and available commands",
			Usage:       "/help [quick|all|<category>]",
			Args: []ArgDef{{
				Name:        "mode",
				Type:        ArgTypeEnum,
				Values:      []string{"quick", "all", "navigation", "conversation", "model", "settings"},
				Description: "Help mode or category",
			}},
			Category: "Navigation",
			Handler:  HandleHelp,
		},
		{
			Name:        "/quit",
			Aliases:     []string{"/q", "/exit"},
			Description: "Exit rigchat",
			Category:    "Navigation",
			Handler:     HandleQuit,
		},
		{
			Name:        "/new",
			Aliases:     []string{"/n"},
			Description: "Start a new conversation",
			Category:    "Conversation",
			Handler:     HandleNew,
		},
		{
			Name:        "/open",
			Aliases:     []string{"/o", "/resume"},
			Description: "Open a saved conversation",
			Usage:       "/open <id|number>",
			Args: []ArgDef{{
				Name:        "conversation",
				Required:    true,
				Type:        ArgTypeConversation,
				Description: "Conversation ID, or number from /list",
			}},
			Category: "Conversation",
			Handler:  HandleOpen,
		},
		{
			Name:        "/save",
			Aliases:     []string{"/s"},
			Description: "Save current conversation",
			Usage:       "/save [title]",
			Args: []ArgDef{{
				Name:        "title",
				Type:        ArgTypeString,
				Description: "Optional title for the conversation",
			}},
			Category: "Conversation",
			Handler:  HandleSave,
		},
		{
			Name:        "/list",
			Aliases:     []string{"/ls", "/sessions"},
			Description: "List saved conversations",
			Category:    "Conversation",
			Handler:     HandleList,
		},
		{
			Name:        "/clear",
			Aliases:     []string{"/c"},
			Description: "Clear conversation history",
			Category:    "Conversation",
			Handler:     HandleClear,
		},
		{
			Name:        "/copy",
			Description: "Copy last response to clipboard",
			Category:    "Conversation",
			Handler:     HandleCopy,
		},
		{
			Name:        "/export",
			Description: "Export conversation to file",
			Usage:       "/export [format]",
			Args: []ArgDef{{
				Name:        "format",
				Type:        ArgTypeEnum,
				Values:      []string{"md", "markdown", "json"},
				Description: "Export format",
			}},
			Category: "Conversation",
			Handler:  HandleExport,
		},
		{
			Name:        "/search",
			Description: "Search across saved conversations",
			Usage:       "/search <query>",
			Args: []ArgDef{{
				Name:        "query",
				Required:    true,
				Type:        ArgTypeString,
				Description: "Text to search for",
			}},
			Category: "Conversation",
			Handler:  HandleSearch,
		},
		{
			Name:        "/retry",
			Aliases:     []string{"/r"},
			Description: "Regenerate the last response",
			Category:    "Conversation",
			Handler:     HandleRetry,
		},
		{
			Name:        "/cancel",
			Description: "Stop the streaming response",
			Category:    "Conversation",
			Handler:     HandleCancel,
		},
		{
			Name:        "/model",
			Aliases:     []string{"/m"},
			Description: "Switch or show current model",
			Usage:       "/model [name]",
			Args: []ArgDef{{
				Name:        "name",
				Type:        ArgTypeModel,
				Description: "Model to switch to",
			}},
			Category: "Model",
			Handler:  HandleModel,
		},
		{
			Name:        "/models",
			Description: "List models available on the server",
			Category:    "Model",
			Handler:     HandleModels,
		},
		{
			Name:        "/system",
			Aliases:     []string{"/sys"},
			Description: "Show, set, or clear the system message",
			Usage:       "/system [message|clear]",
			Args: []ArgDef{{
				Name:        "message",
				Type:        ArgTypeString,
				Description: "New system message, or 'clear'",
			}},
			Category: "Model",
			Handler:  HandleSystem,
		},
		{
			Name:        "/config",
			Description: "Show or edit configuration",
			Usage:       "/config [key] [value]",
			Args: []ArgDef{
				{Name: "key", Type: ArgTypeConfig, Description: "Config key to show/set"},
				{Name: "value", Type: ArgTypeString, Description: "New value"},
			},
			Category: "Settings",
			Handler:  HandleConfig,
		},
		{
			Name:        "/status",
			Description: "Show session and server status",
			Category:    "Settings",
			Handler:     HandleStatus,
		},
		{
			Name:        "/theme",
			Description: "Change color theme",
			Usage:       "/theme [name]",
			Args: []ArgDef{{
				Name:        "name",
				Type:        ArgTypeEnum,
				Values:      []string{"dark", "light", "auto"},
				Description: "Theme name",
			}},
			Category: "Settings",
			Hidden:   true, // Only the dark palette ships today
			Handler:  HandleTheme,
		},
	}
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Context hands the application services to command handlers. Every field
// may be nil; handlers check before use so the same registry works in
// tests and in stripped-down environments.
type Context struct {
	Config  *config.Config
	Client  *api.Client
	Storage *storage.ConversationStore
	Session *session.Manager
	Index   *index.MessageIndex

	// HandlerCtx carries per-dispatch runtime state (current conversation,
	// pending attachments), attached just before a command runs.
	HandlerCtx *HandlerContext
}

// NewContext bundles the application services for command dispatch.
func NewContext(cfg *config.Config, client *api.Client, store *storage.ConversationStore, sess *session.Manager, idx *index.MessageIndex) *Context {
	return &Context{
		Config:  cfg,
		Client:  client,
		Storage: store,
		Session: sess,
		Index:   idx,
	}
}

// WithHandlerContext attaches per-dispatch state and returns the Context
// for chaining at the call site.
func (c *Context) WithHandlerContext(hctx *HandlerContext) *Context {
	c.HandlerCtx = hctx
	return c
}

// RecordActivity notes user activity in the session manager if present.
func (c *Context) RecordActivity() {
	if c.Session != nil {
		c.Session.RecordActivity()
	}
}

// MarkDirty flags the session as having unsaved changes.
func (c *Context) MarkDirty() {
	if c.Session != nil {
		c.Session.MarkDirty()
	}
}

// =============================================================================
// COMPLETION TYPE
// =============================================================================

// Completion is one candidate offered by the Completer.
type Completion struct {
	Value       string // text to insert
	Display     string // label shown in the strip, may differ from Value
	Description string
	Score       int  // ranking, higher wins
	IsCurrent   bool // candidate is the value already in effect
}
