// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// "rigchat ask" sends a single question and prints the answer to stdout.
// On a TTY the full answer is collected and rendered through glamour; when
// piped (or with --raw) tokens are written as they arrive so the output
// stays plain text.
//
// Examples:
//   rigchat ask "What does errno 32 mean?"
//   rigchat ask "Review this:" --file main.go
//   cat error.log | rigchat ask "What went wrong?"
//   rigchat ask --json "Three name ideas for a cache package"
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// MaxFileSize caps --file context so a stray binary doesn't blow up the
// request (50KB).
const MaxFileSize = 50 * 1024

// =============================================================================
// STYLES
// =============================================================================

var (
	metaStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan)

	statLabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	statValueStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	askErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	askSeparatorStyle = lipgloss.NewStyle().
				Foreground(styles.Overlay)
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var markdownRenderer *glamour.TermRenderer

func init() {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err == nil {
		markdownRenderer = renderer
	}
}

// renderAnswerMarkdown renders markdown, falling back to the raw text when
// the renderer is unavailable or fails.
func renderAnswerMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// =============================================================================
// ASK COMMAND
// =============================================================================

// HandleAskCommand sends one question and prints the answer.
func HandleAskCommand(args Args) error {
	question := strings.TrimSpace(args.Query)

	// No question on the command line: read one from a pipe
	if question == "" {
		piped, err := readStdinQuestion()
		if err != nil {
			return err
		}
		question = piped
		if question != "" && !args.Quiet {
			fmt.Fprintf(os.Stderr, "%s Read question from stdin (%d bytes)\n",
				metaStyle.Render("[+]"), len(question))
		}
	}

	if question == "" {
		return ErrMissingArgument("question", `rigchat ask "What is a goroutine?"`)
	}

	if args.File != "" {
		fileContext, err := readFileForContext(args.File)
		if err != nil {
			return err
		}
		question = question + "\n\n" + fileContext
	}

	cfg, err := loadCLIConfig(args)
	if err != nil {
		return err
	}
	// The request builder enforces the configured system message, so the
	// --system override has to land in the config too
	if args.System != "" {
		cfg.Chat.SystemMessage = args.System
	}
	client := newCLIClient(cfg, args)

	messages := buildAskMessages(cfg.Chat.SystemMessage, args.System, question)

	opts := api.OptionsFromConfig(cfg)
	opts.Stream = !args.NoStream

	// Collect-then-render on a TTY so markdown comes out whole; stream raw
	// tokens when piped so the output is clean text
	useMarkdown := IsStdoutTTY() && cfg.UI.MarkdownEnabled && !args.RawOut && !args.JSON

	ctx, cancel := signalContext()
	defer cancel()

	var (
		full      strings.Builder
		modelName string
		timings   *api.TimingSnapshot
		started   = time.Now()
	)

	cb := api.StreamCallbacks{
		OnChunk: func(text string) {
			full.WriteString(text)
			if opts.Stream && !useMarkdown && !args.JSON {
				fmt.Print(text)
			}
		},
		OnModel: func(name string) { modelName = name },
		OnComplete: func(result api.Completion) {
			if result.Content != "" && full.Len() == 0 {
				full.WriteString(result.Content)
				if opts.Stream && !useMarkdown && !args.JSON {
					fmt.Print(result.Content)
				}
			}
			timings = result.Timings
		},
	}

	if err := client.SendChatCompletion(ctx, "cli-ask", messages, opts, cb); err != nil {
		if args.JSON {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", askErrorStyle.Render("[!]"), err)
		return err
	}

	answer := full.String()

	switch {
	case args.JSON:
		return outputJSON(askResult{
			Question: question,
			Answer:   answer,
			Model:    modelName,
			Elapsed:  time.Since(started).Seconds(),
		})
	case useMarkdown:
		fmt.Print(renderAnswerMarkdown(answer))
	case !opts.Stream:
		fmt.Println(answer)
	default:
		// Streamed output already printed; just terminate the line
		if !strings.HasSuffix(answer, "\n") {
			fmt.Println()
		}
	}

	if !args.Quiet {
		printAskSummary(modelName, timings, time.Since(started))
	}
	return nil
}

// askResult is the --json output shape.
type askResult struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Model    string  `json:"model,omitempty"`
	Elapsed  float64 `json:"elapsed_secs"`
}

// buildAskMessages assembles the request: optional system prompt (the
// --system flag wins over config), then the question.
func buildAskMessages(configSystem, flagSystem, question string) []api.ChatMessage {
	var messages []api.ChatMessage

	system := configSystem
	if flagSystem != "" {
		system = flagSystem
	}
	if system != "" {
		messages = append(messages, api.NewSystemMessage(system))
	}
	return append(messages, api.NewUserMessage(question))
}

// readStdinQuestion reads a piped question from stdin. Returns "" when
// stdin is a terminal.
func readStdinQuestion() (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", nil
	}
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return "", nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", WrapError(err, "failed to read stdin")
	}
	return strings.TrimSpace(string(data)), nil
}

// readFileForContext reads a file and frames it for inclusion in the
// question. Oversized files are rejected rather than truncated.
func readFileForContext(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", ErrNotFound("file", path)
	}
	if info.Size() > MaxFileSize {
		return "", NewValidationError("file", path,
			fmt.Sprintf("too large (%s, limit %s)", formatBytes(info.Size()), formatBytes(MaxFileSize)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", WrapError(err, "failed to read file")
	}

	return fmt.Sprintf("--- File: %s ---\n%s\n--- End of file ---", path, string(data)), nil
}

// printAskSummary writes the timing summary to stderr, keeping stdout clean
// for the answer.
func printAskSummary(model string, timings *api.TimingSnapshot, elapsed time.Duration) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, askSeparatorStyle.Render(strings.Repeat("─", 45)))

	if model != "" {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			statLabelStyle.Render("Model:"), statValueStyle.Render(model))
	}
	if timings != nil && timings.PredictedN > 0 {
		fmt.Fprintf(os.Stderr, "%s %s tokens at %s tok/s\n",
			statLabelStyle.Render("Generated:"),
			statValueStyle.Render(formatNumber(timings.PredictedN)),
			statValueStyle.Render(fmt.Sprintf("%.1f", timings.TokensPerSecond())))
	}
	fmt.Fprintf(os.Stderr, "%s %s\n",
		statLabelStyle.Render("Elapsed:"), statValueStyle.Render(formatDurationShort(elapsed)))
}

// formatDurationShort formats sub-minute durations with more precision
// than formatDuration.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}

// signalContext returns a context cancelled by Ctrl+C.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()

	return ctx, cancel
}
