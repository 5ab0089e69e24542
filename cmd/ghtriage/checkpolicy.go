package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/ghtriage/internal/policyfile"
	"github.com/linnemanlabs/ghtriage/internal/triage"
)

var errPolicyCheckFailed = errors.New("policy check failed")

func newCheckPolicyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-policy policy-file...",
		Short: "Validate policy files and report every error with its line number",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return checkPolicies(a.stdout, args...)
		},
	}
}

// checkPolicies reports every malformed line in every file rather than
// stopping at the first one.
func checkPolicies(out io.Writer, paths ...string) error {
	failed := 0
	for _, path := range paths {
		b, err := os.ReadFile(path) //nolint:gosec // operator-supplied policy path
		if err != nil {
			return fmt.Errorf("read policy file %s: %w", path, err)
		}

		rules := 0
		for _, res := range policyfile.ParseLinesNumbered(string(b)) {
			if errors.Is(res.Err, policyfile.ErrEmptyLine) {
				continue
			}
			if res.Err != nil {
				failed++
				_, _ = fmt.Fprintf(out, "✗ %s: %v\n", path, res.Err)
				continue
			}
			if _, err := triage.DecodeDecision(res.Action); err != nil {
				failed++
				_, _ = fmt.Fprintf(out, "✗ %s: invalid decision at line %d: %v\n   Prompt: %s\n", path, res.Line, err, res.Prompt)
				continue
			}
			rules++
		}
		_, _ = fmt.Fprintf(out, "📂 %s: %d valid rules\n", path, rules)
	}

	if failed > 0 {
		return withExitCode(exitPolicyInvalid, fmt.Errorf("%w: %d invalid lines", errPolicyCheckFailed, failed))
	}
	return nil
}
