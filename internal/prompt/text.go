package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TextPrompter is the plain-text Prompter. It reads line-oriented answers
// from r and writes questions to w, matching the arrow-key UI's contract:
// empty input means "accept the default", EOF means defaults for everything.
type TextPrompter struct {
	scanner *bufio.Scanner
	w       io.Writer
}

// NewTextPrompter returns a TextPrompter reading from r and writing to w.
func NewTextPrompter(r io.Reader, w io.Writer) *TextPrompter {
	return &TextPrompter{scanner: bufio.NewScanner(r), w: w}
}

// AskYesNo asks a y/n question. Unrecognized input returns the default.
func (p *TextPrompter) AskYesNo(prompt string, def bool) (bool, error) {
	hint := "Y/n"
	if !def {
		hint = "y/N"
	}
	_, _ = fmt.Fprintf(p.w, "%s [%s] ", prompt, hint)

	if !p.scanner.Scan() {
		return def, nil
	}
	switch strings.TrimSpace(strings.ToLower(p.scanner.Text())) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return def, nil
	}
}

// AskOneOf prints a numbered list and reads a 1-based choice. Empty or
// invalid input returns the default index.
func (p *TextPrompter) AskOneOf(prompt string, options []Option, defIndex int) (int, error) {
	if defIndex < 0 || defIndex >= len(options) {
		defIndex = 0
	}

	_, _ = fmt.Fprintln(p.w, prompt)
	for i, opt := range options {
		marker := " "
		if i == defIndex {
			marker = "*"
		}
		_, _ = fmt.Fprintf(p.w, "  %d. [%s] %s%s\n", i+1, marker, opt.Label, detailSuffix(opt))
	}
	_, _ = fmt.Fprintf(p.w, "Select [1-%d] (enter for default): ", len(options))

	if !p.scanner.Scan() {
		return defIndex, nil
	}
	input := strings.TrimSpace(p.scanner.Text())
	if input == "" {
		return defIndex, nil
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(options) {
		return defIndex, nil
	}
	return n - 1, nil
}

// AskManyOf prints a checkbox list and toggles entries by number until the
// user submits an empty line.
func (p *TextPrompter) AskManyOf(prompt string, options []Option, defSelected []bool) ([]bool, error) {
	selected := make([]bool, len(options))
	copy(selected, defSelected)

	_, _ = fmt.Fprintln(p.w, prompt)
	for {
		for i, opt := range options {
			box := " "
			if selected[i] {
				box = "x"
			}
			_, _ = fmt.Fprintf(p.w, "  %d. [%s] %s%s\n", i+1, box, opt.Label, detailSuffix(opt))
		}
		_, _ = fmt.Fprintf(p.w, "Toggle [1-%d], enter to accept: ", len(options))

		if !p.scanner.Scan() {
			return selected, nil
		}
		input := strings.TrimSpace(p.scanner.Text())
		if input == "" {
			return selected, nil
		}
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(options) {
			_, _ = fmt.Fprintf(p.w, "Enter a number between 1 and %d\n", len(options))
			continue
		}
		selected[n-1] = !selected[n-1]
	}
}

func detailSuffix(opt Option) string {
	if opt.Detail == "" {
		return ""
	}
	return " (" + opt.Detail + ")"
}
