// Package policyfile decodes policy-definition text. Each rule is one line of
// free-form prompt text followed by a trailing JSON action payload.
package policyfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrEmptyLine is returned for lines that are empty or contain only whitespace.
	ErrEmptyLine = errors.New("empty line cannot be parsed")

	// ErrNoValidJSON is returned when no suffix of the line is a valid JSON value.
	ErrNoValidJSON = errors.New("no valid JSON found in line")
)

// ParseLine splits one line into its prompt prefix and trailing JSON value.
//
// The longest valid JSON suffix wins, so JSON-looking fragments inside the
// prompt text (e.g. "{old: value}") are never taken as the payload. Split
// points are rune boundaries, never byte offsets inside a multi-byte character.
func ParseLine(line string) (string, json.RawMessage, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil, ErrEmptyLine
	}

	// the first valid candidate from the left is the longest suffix
	for off := 0; off < len(line); {
		candidate := line[off:]
		if json.Valid([]byte(candidate)) {
			prefix := strings.TrimRightFunc(line[:off], unicode.IsSpace)
			return prefix, json.RawMessage(strings.TrimSpace(candidate)), nil
		}
		_, size := utf8.DecodeRuneInString(candidate)
		off += size
	}
	return "", nil, ErrNoValidJSON
}

// Result is the outcome of parsing one non-empty line.
type Result struct {
	Prompt string
	Action json.RawMessage
	Err    error
}

// ParseLines parses every non-blank line of input independently. Blank lines
// are dropped; a failing line is reported in its Result and never stops the
// remaining lines from being parsed.
func ParseLines(input string) []Result {
	var out []Result
	for _, line := range splitLines(input) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		prompt, action, err := ParseLine(line)
		out = append(out, Result{Prompt: prompt, Action: action, Err: err})
	}
	return out
}

// LineError attaches a 1-based line number to a parse failure.
type LineError struct {
	Line    int
	Content string
	Err     error
}

func (e *LineError) Error() string {
	if errors.Is(e.Err, ErrNoValidJSON) {
		return fmt.Sprintf("no valid JSON found at line %d: '%s'", e.Line, e.Content)
	}
	return fmt.Sprintf("%v at line %d", e.Err, e.Line)
}

func (e *LineError) Unwrap() error { return e.Err }

// NumberedResult is the outcome for one physical line, blank lines included.
type NumberedResult struct {
	Line   int
	Prompt string
	Action json.RawMessage
	Err    error // *LineError when set
}

// ParseLinesNumbered parses every line of input and reports the outcome with
// its 1-based line number. Blank lines are reported as ErrEmptyLine so callers
// can keep line numbers aligned with the source file.
func ParseLinesNumbered(input string) []NumberedResult {
	lines := splitLines(input)
	out := make([]NumberedResult, 0, len(lines))
	for i, line := range lines {
		n := i + 1
		prompt, action, err := ParseLine(line)
		if err != nil {
			out = append(out, NumberedResult{Line: n, Err: &LineError{Line: n, Content: line, Err: err}})
			continue
		}
		out = append(out, NumberedResult{Line: n, Prompt: prompt, Action: action})
	}
	return out
}

// splitLines splits on \n, strips a trailing \r from each line and ignores the
// empty segment after a final newline.
func splitLines(input string) []string {
	if input == "" {
		return nil
	}
	lines := strings.Split(input, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
