package triage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/linnemanlabs/ghtriage/internal/policyfile"
)

// ErrPolicyInvalid marks any failure to turn policy text into rules.
var ErrPolicyInvalid = errors.New("invalid policy")

// Rule is one policy line: a free-text prompt and the action applied when
// it matches.
type Rule struct {
	Prompt string          `json:"prompt"`
	Action json.RawMessage `json:"action"`
}

// PolicyError reports the rule that failed to load. Line counts from 1
// across the concatenated policy text.
type PolicyError struct {
	Line   int
	Prompt string
	Err    error
}

func (e *PolicyError) Error() string {
	if e.Prompt == "" {
		return fmt.Sprintf("invalid policy: %v", e.Err)
	}
	return fmt.Sprintf("invalid policy at line %d %q: %v", e.Line, e.Prompt, e.Err)
}

func (e *PolicyError) Unwrap() []error { return []error{ErrPolicyInvalid, e.Err} }

// LoadPolicies reads each file in order and parses the concatenation.
func LoadPolicies(paths ...string) ([]Rule, error) {
	var sb strings.Builder
	for _, p := range paths {
		b, err := os.ReadFile(p) //nolint:gosec // policy paths are operator-supplied
		if err != nil {
			return nil, fmt.Errorf("read policy file %s: %w", p, err)
		}
		sb.Write(b)
		sb.WriteByte('\n')
	}
	return ParsePolicies(sb.String())
}

// ParsePolicies parses policy text into rules, validating that every action
// decodes into a Decision. The first failure aborts.
func ParsePolicies(input string) ([]Rule, error) {
	results := policyfile.ParseLinesNumbered(input)
	rules := make([]Rule, 0, len(results))
	for _, r := range results {
		if errors.Is(r.Err, policyfile.ErrEmptyLine) {
			continue
		}
		if r.Err != nil {
			return nil, &PolicyError{Line: r.Line, Err: r.Err}
		}
		if _, err := DecodeDecision(r.Action); err != nil {
			return nil, &PolicyError{Line: r.Line, Prompt: r.Prompt, Err: err}
		}
		rules = append(rules, Rule{Prompt: r.Prompt, Action: r.Action})
	}
	return rules, nil
}
