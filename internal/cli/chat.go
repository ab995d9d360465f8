// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive terminal REPL.
//
// "rigchat chat" runs a line-oriented chat loop for terminals where the
// full TUI is unwanted (ssh sessions, scripts driving a pty, minimal
// environments). It shares the streaming pipeline with the TUI but prints
// tokens directly to stdout.
//
// Interactive commands:
//   /help, /h           Show available commands
//   /clear, /c          Clear conversation history
//   /model [name]       Show or switch model
//   /system [text]      Show or set the system prompt
//   /status, /s         Show session statistics
//   /history            Show conversation history
//   /save               Save the conversation to disk
//   /quit, /q           Exit
//   Ctrl+C              Cancel the current response
//   Ctrl+D              Exit
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

func replStyle(c lipgloss.TerminalColor, bold bool) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(bold)
}

var (
	promptStyle        = replStyle(styles.Cyan, true)
	welcomeStyle       = replStyle(styles.Purple, true)
	infoStyle          = replStyle(styles.TextSecondary, false)
	commandStyle       = replStyle(styles.Emerald, false)
	warningStyle       = replStyle(styles.Amber, false)
	errorStyle         = replStyle(styles.Rose, true)
	summaryHeaderStyle = replStyle(styles.Cyan, true)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineEditor wraps liner with a persistent history file, giving the REPL
// arrow-key history and line editing.
type lineEditor struct {
	line        *liner.State
	historyFile string
}

func newLineEditor() *lineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	ed := &lineEditor{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}

	if f, err := os.Open(ed.historyFile); err == nil {
		ed.line.ReadHistory(f)
		f.Close()
	}
	return ed
}

// ReadInput reads one line with history support. Non-empty lines are
// appended to history.
func (ed *lineEditor) ReadInput(prompt string) (string, error) {
	input, err := ed.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		ed.line.AppendHistory(input)
	}
	return input, nil
}

// saveHistory writes history back with owner-only permissions. Best-effort;
// a read-only config dir just loses history.
func (ed *lineEditor) saveHistory() {
	if config.EnsureConfigDir() != nil {
		return
	}
	f, err := os.OpenFile(ed.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	ed.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (ed *lineEditor) Close() {
	ed.saveHistory()
	ed.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// replSession holds the state of one REPL run.
type replSession struct {
	cfg    *config.Config
	client *api.Client
	store  *storage.ConversationStore
	conv   *model.Conversation
	input  *lineEditor

	quiet bool

	startTime   time.Time
	totalTokens int
	requests    int

	// cancel for the in-flight request, nil when idle
	cancelFunc context.CancelFunc
}

func newREPLSession(args Args) (*replSession, error) {
	cfg, err := loadCLIConfig(args)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewConversationStore()
	if err != nil {
		return nil, WrapError(err, "failed to open conversation storage")
	}

	conv := model.NewConversationWithModel(cfg.Chat.Model)
	if cfg.Chat.SystemMessage != "" {
		conv.AddSystemMessage(cfg.Chat.SystemMessage)
	}

	return &replSession{
		cfg:       cfg,
		client:    newCLIClient(cfg, args),
		store:     store,
		conv:      conv,
		input:     newLineEditor(),
		quiet:     args.Quiet,
		startTime: time.Now(),
	}, nil
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChatCommand runs the interactive REPL until quit or EOF.
func HandleChatCommand(args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	session, err := newREPLSession(args)
	if err != nil {
		return err
	}
	defer session.input.Close()

	// Warn early when the server is down rather than failing the first send
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	healthErr := session.client.Health(ctx)
	cancel()
	if healthErr != nil {
		fmt.Fprintf(os.Stderr, "%s Server not reachable at %s: %v\n",
			warningStyle.Render("[!]"), session.cfg.Server.Resolve(), healthErr)
	}

	if !session.quiet {
		printWelcome(session)
	}

	stopSignals := session.watchInterrupts()
	defer stopSignals()

	return session.loop()
}

// watchInterrupts routes Ctrl+C during generation to the stream's cancel
// func. At the prompt liner reports Ctrl+C as ErrPromptAborted instead.
func (s *replSession) watchInterrupts() (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for range sigChan {
			if s.cancelFunc != nil {
				s.cancelFunc()
				s.cancelFunc = nil
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	return func() { signal.Stop(sigChan) }
}

// loop reads and dispatches input until quit or EOF.
func (s *replSession) loop() error {
	for {
		input, err := s.input.ReadInput(promptStyle.Render("rigchat> "))
		if err != nil {
			// Ctrl+C at the prompt or Ctrl+D: exit cleanly either way
			fmt.Println()
			s.finish()
			return nil
		}

		input = strings.TrimSpace(input)
		switch {
		case input == "":

		case strings.HasPrefix(input, "/"):
			keepGoing, err := s.handleSlashCommand(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				s.finish()
				return nil
			}

		case strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit"):
			s.finish()
			return nil

		default:
			if err := s.processMessage(input); err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
		}
	}
}

// finish saves the conversation and prints the exit summary.
func (s *replSession) finish() {
	s.saveConversation(false)
	s.printExitSummary()
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage sends one user message and streams the reply to stdout.
func (s *replSession) processMessage(input string) error {
	s.conv.AddUserMessage(input)
	s.conv.AddAssistantMessage()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel
	defer func() {
		s.cancelFunc = nil
		cancel()
	}()

	opts := api.OptionsFromConfig(s.cfg)
	opts.Stream = true

	var (
		timings *api.TimingSnapshot
		started = time.Now()
	)

	fmt.Println()

	cb := api.StreamCallbacks{
		OnChunk: func(text string) {
			fmt.Print(text)
			s.conv.AppendToLast(text)
		},
		OnModel: func(name string) {
			s.conv.SetModel(name)
		},
		OnComplete: func(result api.Completion) {
			timings = result.Timings
		},
	}

	err := s.client.SendChatCompletion(ctx, s.conv.ID, s.conv.ToWireMessages(), opts, cb)
	if err != nil {
		// Context cancel means the user hit Ctrl+C: keep the partial text
		if ctx.Err() == nil {
			s.conv.DropLastExchange()
			return err
		}
		s.conv.FinalizeLast(nil)
		fmt.Println()
		return nil
	}

	s.conv.FinalizeLast(model.StatsFromTimings(timings))

	if last := s.conv.LastAssistant(); last != nil && !strings.HasSuffix(last.DisplayContent(), "\n") {
		fmt.Println()
	}
	fmt.Println()

	s.requests++
	if timings != nil {
		s.totalTokens += timings.PromptN + timings.PredictedN
	}

	if !s.quiet {
		s.showBriefStats(timings, time.Since(started))
	}
	return nil
}

// showBriefStats prints one stats line to stderr after each response.
func (s *replSession) showBriefStats(timings *api.TimingSnapshot, elapsed time.Duration) {
	tag := infoStyle.Render("[Stats]")
	if timings != nil && timings.PredictedN > 0 {
		fmt.Fprintf(os.Stderr, "%s %d tokens | %.1f tok/s | %s\n",
			tag, timings.PredictedN, timings.TokensPerSecond(), elapsed.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", tag, elapsed.Round(time.Millisecond))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes a slash command. A false return means exit.
func (s *replSession) handleSlashCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	rest := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		printREPLHelp()
		return true, nil

	case "/clear", "/c":
		s.conv.ClearHistory()
		if s.cfg.Chat.SystemMessage != "" {
			s.conv.AddSystemMessage(s.cfg.Chat.SystemMessage)
		}
		fmt.Println(commandStyle.Render("[Conversation cleared]"))
		return true, nil

	case "/model", "/m":
		return s.handleModelCommand(rest)

	case "/system":
		if len(rest) == 0 {
			current := s.cfg.Chat.SystemMessage
			if current == "" {
				current = "(none)"
			}
			fmt.Printf("%s %s\n", infoStyle.Render("[System]"), current)
			return true, nil
		}
		s.cfg.Chat.SystemMessage = strings.Join(rest, " ")
		fmt.Println(commandStyle.Render("[System prompt set for this session]"))
		return true, nil

	case "/status", "/s":
		s.printStatus()
		return true, nil

	case "/history":
		s.printHistory()
		return true, nil

	case "/save":
		s.saveConversation(true)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleModelCommand shows or switches the active model.
func (s *replSession) handleModelCommand(rest []string) (bool, error) {
	if len(rest) == 0 {
		current := s.cfg.Chat.Model
		if current == "" {
			current = "(server default)"
		}
		fmt.Printf("%s Current model: %s\n",
			infoStyle.Render("[Model]"), commandStyle.Render(current))
		return true, nil
	}

	newModel := rest[0]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if models, err := s.client.ListModels(ctx); err == nil && !modelListed(models, newModel) {
		fmt.Fprintf(os.Stderr, "%s Model '%s' not in the server's list, using anyway\n",
			warningStyle.Render("[Warning]"), newModel)
	}

	s.cfg.Chat.Model = newModel
	s.cfg.Chat.ModelSelectorEnabled = true
	s.conv.SetModel(newModel)
	fmt.Printf("%s Switched to model: %s\n", commandStyle.Render("[OK]"), newModel)
	return true, nil
}

func modelListed(models []api.ModelInfo, id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// saveConversation writes the conversation to disk. Announce successes only
// when explicitly requested; exit-time saves stay quiet.
func (s *replSession) saveConversation(announce bool) {
	if s.conv.IsEmpty() {
		if announce {
			fmt.Println(infoStyle.Render("[Nothing to save]"))
		}
		return
	}

	id, err := s.store.Save(s.conv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s Failed to save conversation: %v\n",
			errorStyle.Render("[Error]"), err)
		return
	}
	if announce {
		fmt.Printf("%s Saved conversation %s\n", commandStyle.Render("[OK]"), id)
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

func activeModelLabel(cfg *config.Config) string {
	if cfg.Chat.Model == "" {
		return "(server default)"
	}
	return cfg.Chat.Model
}

func replHeader(title string) {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render(title))
	fmt.Println(infoStyle.Render(strings.Repeat("─", len(title))))
	fmt.Println()
}

func printWelcome(s *replSession) {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("rigchat interactive chat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n", infoStyle.Render("Server:"), commandStyle.Render(s.cfg.Server.Resolve()))
	fmt.Printf("%s %s\n", infoStyle.Render("Model:"), commandStyle.Render(activeModelLabel(s.cfg)))
	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

func printREPLHelp() {
	replHeader("Available Commands")

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Clear conversation history"},
		{"/model [name]", "Show or switch model"},
		{"/system [text]", "Show or set the system prompt"},
		{"/status, /s", "Show session statistics"},
		{"/history", "Show conversation history"},
		{"/save", "Save the conversation to disk"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels the current response, Ctrl+D exits"))
	fmt.Println()
}

func (s *replSession) printStatus() {
	replHeader("Session Status")

	fmt.Printf("  %s %s\n", infoStyle.Render("Model:"), commandStyle.Render(activeModelLabel(s.cfg)))
	fmt.Printf("  %s %s\n", infoStyle.Render("Server:"), s.cfg.Server.Resolve())
	fmt.Printf("  %s %s\n", infoStyle.Render("Duration:"), time.Since(s.startTime).Round(time.Second).String())
	fmt.Printf("  %s %d messages\n", infoStyle.Render("History:"), s.conv.MessageCount())
	fmt.Printf("  %s %d requests\n", infoStyle.Render("Requests:"), s.requests)
	fmt.Printf("  %s %s\n", infoStyle.Render("Tokens:"), formatNumber(s.totalTokens))
	fmt.Printf("  %s ~%s in context\n",
		infoStyle.Render("Context:"), formatNumber(s.conv.EstimateTokens()))
	fmt.Println()
}

func (s *replSession) printHistory() {
	history := s.conv.History()
	if len(history) == 0 {
		fmt.Println(infoStyle.Render("[No messages yet]"))
		return
	}

	replHeader("Conversation History")

	for i, msg := range history {
		role := string(msg.Role)
		switch msg.Role {
		case model.RoleUser:
			role = replStyle(styles.Cyan, false).Render("You")
		case model.RoleAssistant:
			role = replStyle(styles.Purple, false).Render("AI")
		case model.RoleSystem:
			role = replStyle(styles.Amber, false).Render("System")
		}

		// Rune-based truncation so multibyte text doesn't get split
		content := msg.DisplayContent()
		if runes := []rune(content); len(runes) > 100 {
			content = string(runes[:100]) + "..."
		}
		content = strings.ReplaceAll(content, "\n", " ")

		fmt.Printf("  %d. %s: %s\n", i+1, role, content)
	}

	fmt.Println()
}

func (s *replSession) printExitSummary() {
	if s.requests == 0 {
		fmt.Println(infoStyle.Render("Goodbye!"))
		return
	}

	replHeader("Session Summary")

	fmt.Printf("  %s %d\n", infoStyle.Render("Requests:"), s.requests)
	fmt.Printf("  %s %s\n", infoStyle.Render("Tokens:"), formatNumber(s.totalTokens))
	fmt.Printf("  %s %s\n", infoStyle.Render("Duration:"), time.Since(s.startTime).Round(time.Second).String())

	fmt.Println()
	fmt.Println(infoStyle.Render("Goodbye!"))
}
