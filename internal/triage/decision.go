package triage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrContractViolation means the evaluator returned something that is not
// a Decision.
var ErrContractViolation = errors.New("evaluator returned a value that is not a decision")

// Decision is the action a policy evaluation selected for one item.
type Decision struct {
	MarkRead   bool     `json:"markRead"`
	MarkUnread bool     `json:"markUnread"`
	Priority   *string  `json:"priority"`
	Labels     []string `json:"labels"`
}

// Action is the single operation derived from a Decision.
type Action int

const (
	ActionSkip Action = iota
	ActionMarkRead
	ActionMarkUnread
)

func (a Action) String() string {
	switch a {
	case ActionMarkRead:
		return "READ"
	case ActionMarkUnread:
		return "UNREAD"
	default:
		return "SKIP"
	}
}

// DecodeDecision parses raw into a Decision. JSON null and non-object values
// are rejected.
func DecodeDecision(raw json.RawMessage) (Decision, error) {
	var d Decision
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return d, fmt.Errorf("%w: expected object, got %q", ErrContractViolation, truncate(trimmed, 64))
	}
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}
	return d, nil
}

// Classify maps a Decision to an Action. Setting both flags, or neither, is
// a Skip.
func Classify(d Decision) Action {
	switch {
	case d.MarkUnread && !d.MarkRead:
		return ActionMarkUnread
	case d.MarkRead && !d.MarkUnread:
		return ActionMarkRead
	default:
		return ActionSkip
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
