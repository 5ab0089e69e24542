// Package policy evaluates canonical notification documents against policy
// rules with an LLM and merges the actions of every matching rule into one
// decision.
package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/ghtriage/internal/triage"
)

// ErrUnparseableReply is returned when the model reply holds no JSON array
// of rule numbers.
var ErrUnparseableReply = errors.New("policy: model reply has no rule number array")

// SystemPrompt is used when the request template carries none.
const SystemPrompt = `You classify GitHub notifications against a numbered list of rules.
A rule matches when its description applies to the notification.
Reply with only a JSON array of the numbers of every matching rule, for example [1, 3].
Reply with [] when no rule matches.`

// Evaluator implements triage.Evaluator.
type Evaluator struct {
	provider triage.Provider
	logger   log.Logger
}

// New creates an evaluator on provider.
func New(provider triage.Provider, logger log.Logger) *Evaluator {
	if provider == nil {
		panic(xerrors.New("policy provider is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Evaluator{provider: provider, logger: logger}
}

// Evaluate asks the model which rules match doc and returns the merged
// decision of those rules as JSON.
func (e *Evaluator) Evaluate(ctx context.Context, tmpl triage.Template, doc string, rules []triage.Rule, usage *triage.Usage) (json.RawMessage, error) {
	if len(rules) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if tmpl.System == "" {
		tmpl.System = SystemPrompt
	}

	resp, err := e.provider.Send(ctx, tmpl.NewRequest(BuildPrompt(doc, rules)))
	if err != nil {
		return nil, err
	}
	if usage != nil {
		usage.Add(resp.Usage)
	}

	matched, err := ParseMatches(resp.Text(), len(rules))
	if err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "policy evaluated", "matched", matched, "stop_reason", resp.StopReason)

	d, err := Merge(rules, matched)
	if err != nil {
		return nil, err
	}
	return json.Marshal(d)
}

// BuildPrompt numbers rules from 1 in order and appends the document.
func BuildPrompt(doc string, rules []triage.Rule) string {
	var b strings.Builder
	b.WriteString("Rules:\n")
	for i, r := range rules {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(r.Prompt)
		b.WriteByte('\n')
	}
	b.WriteString("\nNotification:\n")
	b.WriteString(doc)
	return b.String()
}

// ParseMatches extracts the rule numbers from a model reply. The last
// well-formed integer array in the reply wins, so bracketed prose before or
// after it is ignored. Numbers outside 1..n and duplicates are dropped; the
// rest keep reply order.
func ParseMatches(reply string, n int) ([]int, error) {
	nums, err := lastIntArray(reply)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(nums))
	out := make([]int, 0, len(nums))
	for _, k := range nums {
		if k < 1 || k > n || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out, nil
}

// lastIntArray decodes a JSON integer array starting at each '[' in reply,
// rightmost first, and returns the first that decodes.
func lastIntArray(reply string) ([]int, error) {
	var lastErr error
	for end := len(reply); ; {
		i := strings.LastIndex(reply[:end], "[")
		if i < 0 {
			break
		}
		var nums []int
		err := json.NewDecoder(strings.NewReader(reply[i:])).Decode(&nums)
		if err == nil {
			return nums, nil
		}
		lastErr = err
		end = i
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseableReply, lastErr)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnparseableReply, reply)
}

var priorityRank = map[string]int{"low": 1, "medium": 2, "high": 3}

// outranks reports whether p replaces the current priority. Only a ranked
// priority can outrank, and only a ranked one can be outranked; the first
// unranked priority seen is kept.
func outranks(p string, current *string) bool {
	if current == nil {
		return true
	}
	rp, ok := priorityRank[p]
	if !ok {
		return false
	}
	rc, ok := priorityRank[*current]
	return ok && rp > rc
}

// Merge combines the actions of the matched rules (1-based). Read flags are
// OR-ed, the highest of low < medium < high wins and labels are unioned in
// first-seen order.
func Merge(rules []triage.Rule, matched []int) (triage.Decision, error) {
	var out triage.Decision
	seen := map[string]bool{}
	for _, k := range matched {
		d, err := triage.DecodeDecision(rules[k-1].Action)
		if err != nil {
			return triage.Decision{}, fmt.Errorf("rule %d: %w", k, err)
		}
		out.MarkRead = out.MarkRead || d.MarkRead
		out.MarkUnread = out.MarkUnread || d.MarkUnread
		if d.Priority != nil && outranks(*d.Priority, out.Priority) {
			p := *d.Priority
			out.Priority = &p
		}
		for _, l := range d.Labels {
			if !seen[l] {
				seen[l] = true
				out.Labels = append(out.Labels, l)
			}
		}
	}
	return out, nil
}
