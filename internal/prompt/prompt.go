// Package prompt presents questions to a human and returns answers.
//
// Two implementations satisfy the same contract: a bubbletea arrow-key UI
// for interactive terminals and a plain-text fallback for pipes, CI, and
// dumb terminals. Callers hold a Prompter and never know which one they got.
package prompt

import (
	"errors"
	"os"

	"github.com/mattn/go-isatty"
)

// ErrInterrupted is returned when the user aborts a prompt (ctrl+c).
var ErrInterrupted = errors.New("prompt interrupted")

// Option is one selectable entry in a choice prompt.
type Option struct {
	Label  string // short display name
	Detail string // one-line description, may be empty
}

// Prompter asks questions and returns answers. Implementations must return
// the supplied defaults on EOF rather than erroring, so a closed stdin
// degrades to an all-defaults run.
type Prompter interface {
	// AskYesNo asks a yes/no question. Empty input returns def.
	AskYesNo(prompt string, def bool) (bool, error)

	// AskOneOf asks the user to pick exactly one option. Returns the index
	// of the chosen option; empty input returns defIndex.
	AskOneOf(prompt string, options []Option, defIndex int) (int, error)

	// AskManyOf asks the user to toggle any subset of options. defSelected
	// seeds the initial state and must be the same length as options.
	AskManyOf(prompt string, options []Option, defSelected []bool) ([]bool, error)
}

// New picks the right Prompter for the attached streams: the bubbletea UI
// when both ends are terminals, the plain-text fallback otherwise. Setting
// plain forces the fallback regardless of TTY status.
func New(in *os.File, out *os.File, plain bool) Prompter {
	if plain || !interactive(in, out) {
		return NewTextPrompter(in, out)
	}
	return NewTUIPrompter(in, out)
}

func interactive(in, out *os.File) bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(in.Fd()) && isatty.IsTerminal(out.Fd())
}
