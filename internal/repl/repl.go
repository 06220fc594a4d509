// Package repl runs the line oriented prompt loop.
package repl

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/klemjul/promptforge/internal/errs"
	"github.com/klemjul/promptforge/internal/evaluator"
)

const (
	DEFAULT_BANNER = "Welcome to PromptForge - Command Line Edition"
	ANALYZING      = "Analyzing your prompt..."
	GOODBYE        = "Goodbye!"
)

var (
	DefaultExitWords = []string{"exit", "quit"}

	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type Evaluator interface {
	Evaluate(ctx context.Context, userPrompt string, onFragment func(string)) (*evaluator.Result, error)
}

type Options struct {
	Out    io.Writer
	Banner string
	// ExitWords end the loop, compared case-insensitively.
	ExitWords []string
	// TypingDelay pauses after every streamed fragment.
	TypingDelay time.Duration
	// Format renders blocking answers. Without it they are printed as is.
	Format func(text string) (string, error)
}

// Run reads prompts from reader until an exit word, the end of input, or ctx
// is done. Failed turns are reported and the loop goes on.
func Run(ctx context.Context, reader LineReader, ev Evaluator, opts Options) error {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	banner := opts.Banner
	if banner == "" {
		banner = DEFAULT_BANNER
	}
	exitWords := opts.ExitWords
	if len(exitWords) == 0 {
		exitWords = DefaultExitWords
	}

	fmt.Fprintln(out, banner)
	fmt.Fprintf(out, "Type your prompt below. Type '%s' to leave.\n\n", strings.Join(exitWords, "' or '"))

	for {
		if ctx.Err() != nil {
			fmt.Fprintln(out, GOODBYE)
			return nil
		}

		line, err := reader.Readline()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out, GOODBYE)
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read prompt")
		}

		if slices.Contains(exitWords, strings.ToLower(strings.TrimSpace(line))) {
			fmt.Fprintln(out, GOODBYE)
			return nil
		}

		if err := runTurn(ctx, out, ev, line, opts); err != nil {
			return err
		}
	}
}

func runTurn(ctx context.Context, out io.Writer, ev Evaluator, line string, opts Options) error {
	streamed := false
	onFragment := func(fragment string) {
		streamed = true
		io.WriteString(out, fragment)
		pause(ctx, opts.TypingDelay)
	}
	if strings.TrimSpace(line) != "" {
		fmt.Fprintf(out, "\n%s\n\n", ANALYZING)
	}

	res, err := ev.Evaluate(ctx, line, onFragment)
	switch {
	case err == nil:
	case errs.IsValidation(err):
		fmt.Fprintln(out, noticeStyle.Render(err.Error()))
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		if streamed {
			fmt.Fprintln(out)
		}
		return nil
	default:
		if streamed {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s\n\n", errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		return nil
	}

	if res.Streamed {
		fmt.Fprint(out, "\n\n")
		return nil
	}

	text := res.Text
	if opts.Format != nil {
		formatted, err := opts.Format(text)
		if err != nil {
			return errors.Wrap(err, "failed to format response")
		}
		text = formatted
	}
	fmt.Fprintf(out, "%s\n", text)
	return nil
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
