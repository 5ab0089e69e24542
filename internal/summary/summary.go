// Package summary produces one-line descriptions of notification documents.
package summary

import (
	"context"
	"errors"
	"strings"

	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/ghtriage/internal/triage"
)

// DefaultMaxTokens bounds the summary reply.
const DefaultMaxTokens = 128

const promptPrefix = "Please provide a single-line summary of this GitHub notification. " +
	"Be concise and descriptive, focusing on what the PR/Issue is about:\n\n"

// ErrEmptySummary is returned when the model reply has no text.
var ErrEmptySummary = errors.New("summary: empty reply")

// Summarizer implements triage.Summarizer.
type Summarizer struct {
	provider triage.Provider
	tmpl     triage.Template
}

// New creates a summarizer. A zero MaxTokens in tmpl selects DefaultMaxTokens.
func New(provider triage.Provider, tmpl triage.Template) *Summarizer {
	if provider == nil {
		panic(xerrors.New("summary provider is required"))
	}
	if tmpl.MaxTokens == 0 {
		tmpl.MaxTokens = DefaultMaxTokens
	}
	return &Summarizer{provider: provider, tmpl: tmpl}
}

// Summarize returns the first non-empty line of the model reply.
func (s *Summarizer) Summarize(ctx context.Context, doc string) (string, error) {
	resp, err := s.provider.Send(ctx, s.tmpl.NewRequest(promptPrefix+doc))
	if err != nil {
		return "", err
	}
	return FirstLine(resp.Text())
}

// FirstLine returns the first line of text that is not blank, trimmed.
func FirstLine(text string) (string, error) {
	for _, line := range strings.Split(text, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l, nil
		}
	}
	return "", ErrEmptySummary
}
