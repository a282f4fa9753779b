package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Prompter asks the user yes/no questions.
type Prompter interface {
	Confirm(ctx context.Context, question string, defaultYes bool) (bool, error)
}

// NewPrompter picks a prompter for the current process. assumeYes answers
// every question with yes; a terminal gets the interactive dialog; anything
// else reads answers line by line from stdin.
func NewPrompter(assumeYes bool) Prompter {
	if assumeYes {
		return AssumePrompter{Answer: true}
	}
	if Interactive() {
		return ConfirmPrompter{}
	}
	return &LinePrompter{In: os.Stdin, Out: os.Stderr}
}

// Interactive reports whether stdin and stderr are both terminals, so that
// full-screen dialogs can be shown.
func Interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stderr)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// AssumePrompter answers every question with a fixed value.
type AssumePrompter struct {
	Answer bool
}

// Confirm returns the fixed answer.
func (p AssumePrompter) Confirm(context.Context, string, bool) (bool, error) {
	return p.Answer, nil
}

// LinePrompter reads answers from a line-oriented reader.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

// Confirm prints the question with a [Y/n] or [y/N] hint and reads an answer.
// An empty line or end of input takes the default. Unrecognized answers are asked again.
func (p *LinePrompter) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.In)
	}

	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		fmt.Fprintf(p.Out, "%s %s ", question, hint)
		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return false, err
			}
			fmt.Fprintln(p.Out)
			return defaultYes, nil
		}

		switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}
