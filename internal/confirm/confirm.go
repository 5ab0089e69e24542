// Package confirm asks the operator whether a triage action should be
// applied.
package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/linnemanlabs/ghtriage/internal/triage"
)

// Prompt reads answers line by line from an input stream.
type Prompt struct {
	in    *bufio.Reader
	out   io.Writer
	quiet bool
}

// NewPrompt creates a prompt on in and out. quiet suppresses the summary
// line shown before the question.
func NewPrompt(in io.Reader, out io.Writer, quiet bool) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out, quiet: quiet}
}

// Confirm implements triage.Confirmer. "y"/"yes" confirm, "q"/"quit" stop
// the run; anything else, including end of input, declines.
func (p *Prompt) Confirm(_ context.Context, summary string, action triage.Action) (triage.Answer, error) {
	if !p.quiet {
		if _, err := fmt.Fprintf(p.out, "Summary: %s\n", summary); err != nil {
			return triage.AnswerNo, err
		}
	}
	if _, err := fmt.Fprintf(p.out, "Mark as %s? (y/N/q to quit): ", strings.ToLower(action.String())); err != nil {
		return triage.AnswerNo, err
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return triage.AnswerNo, fmt.Errorf("read answer: %w", err)
	}
	return Parse(line), nil
}

// Parse maps a typed answer to an Answer.
func Parse(input string) triage.Answer {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return triage.AnswerYes
	case "q", "quit":
		return triage.AnswerQuit
	default:
		return triage.AnswerNo
	}
}

// Auto confirms every action without any I/O.
type Auto struct{}

// Confirm implements triage.Confirmer.
func (Auto) Confirm(context.Context, string, triage.Action) (triage.Answer, error) {
	return triage.AnswerYes, nil
}
