package policy

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/ghtriage/internal/triage"
)

// mockProvider returns a fixed reply and records requests.
type mockProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []*triage.LLMRequest
}

func (m *mockProvider) Send(_ context.Context, req *triage.LLMRequest) (*triage.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return &triage.LLMResponse{
		Content:    []triage.ContentBlock{{Type: "text", Text: m.reply}},
		StopReason: triage.StopEnd,
		Usage:      triage.Usage{InputTokens: 50, OutputTokens: 4},
	}, nil
}

func testRules() []triage.Rule {
	return []triage.Rule{
		{Prompt: "Bot PRs", Action: json.RawMessage(`{"markRead": true, "priority": "low", "labels": ["bot"]}`)},
		{Prompt: "Security", Action: json.RawMessage(`{"markUnread": true, "priority": "high", "labels": ["sec", "bot"]}`)},
		{Prompt: "Docs", Action: json.RawMessage(`{"priority": "medium", "labels": ["docs"]}`)},
	}
}

func TestEvaluate_MergesMatchedRules(t *testing.T) {
	t.Parallel()

	p := &mockProvider{reply: "Matching rules: [1, 3]"}
	e := New(p, log.Nop())
	var usage triage.Usage

	raw, err := e.Evaluate(context.Background(), triage.Template{Model: "m", MaxTokens: 3333}, "<doc/>", testRules(), &usage)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	d, err := triage.DecodeDecision(raw)
	if err != nil {
		t.Fatalf("DecodeDecision(%s): %v", raw, err)
	}
	if !d.MarkRead || d.MarkUnread {
		t.Errorf("flags = %v/%v, want read only", d.MarkRead, d.MarkUnread)
	}
	if d.Priority == nil || *d.Priority != "medium" {
		t.Errorf("priority = %v, want medium", d.Priority)
	}
	if strings.Join(d.Labels, ",") != "bot,docs" {
		t.Errorf("labels = %v, want [bot docs]", d.Labels)
	}
	if usage != (triage.Usage{InputTokens: 50, OutputTokens: 4}) {
		t.Errorf("usage = %+v", usage)
	}

	req := p.reqs[0]
	if req.System != SystemPrompt {
		t.Error("expected default system prompt")
	}
	if req.MaxTokens != 3333 || req.Model != "m" {
		t.Errorf("request = %+v", req)
	}
	prompt := req.Messages[0].Content[0].Text
	if !strings.Contains(prompt, "1. Bot PRs\n2. Security\n3. Docs\n") || !strings.HasSuffix(prompt, "<doc/>") {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestEvaluate_NoRulesSkipsModel(t *testing.T) {
	t.Parallel()

	p := &mockProvider{}
	raw, err := New(p, nil).Evaluate(context.Background(), triage.Template{}, "doc", nil, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if string(raw) != "{}" {
		t.Errorf("raw = %s, want {}", raw)
	}
	if len(p.reqs) != 0 {
		t.Errorf("provider called %d times, want 0", len(p.reqs))
	}
}

func TestEvaluate_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(&mockProvider{err: errors.New("down")}, nil).
		Evaluate(context.Background(), triage.Template{}, "doc", testRules(), nil); err == nil {
		t.Error("expected provider error")
	}

	_, err := New(&mockProvider{reply: "I think rule one"}, nil).
		Evaluate(context.Background(), triage.Template{}, "doc", testRules(), nil)
	if !errors.Is(err, ErrUnparseableReply) {
		t.Errorf("err = %v, want ErrUnparseableReply", err)
	}
}

func TestParseMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		want  []int
	}{
		{"plain", "[2]", []int{2}},
		{"empty", "[]", []int{}},
		{"prose around", "The matches are [3, 1].", []int{3, 1}},
		{"out of range and duplicates", "[0, 1, 1, 4, 2]", []int{1, 2}},
		{"bracketed prose before answer", "Rule [2] applies here.\n[2]", []int{2}},
		{"bracketed prose after answer", "Matching rules: [1]\n\nNote: see [notification_context].", []int{1}},
		{"last array wins", "First guess [1, 2], final answer [3]", []int{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMatches(tt.reply, 3)
			if err != nil {
				t.Fatalf("ParseMatches: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}

	for _, bad := range []string{"none", "[a, b]", "] [", `["1"]`} {
		if _, err := ParseMatches(bad, 3); !errors.Is(err, ErrUnparseableReply) {
			t.Errorf("ParseMatches(%q) err = %v, want ErrUnparseableReply", bad, err)
		}
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	d, err := Merge(testRules(), []int{1, 2, 3})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !d.MarkRead || !d.MarkUnread {
		t.Errorf("flags = %v/%v, want both", d.MarkRead, d.MarkUnread)
	}
	if triage.Classify(d) != triage.ActionSkip {
		t.Errorf("conflicting flags classify as %s, want SKIP", triage.Classify(d))
	}
	if *d.Priority != "high" {
		t.Errorf("priority = %q, want high", *d.Priority)
	}
	if strings.Join(d.Labels, ",") != "bot,sec,docs" {
		t.Errorf("labels = %v, want [bot sec docs]", d.Labels)
	}

	none, err := Merge(testRules(), nil)
	if err != nil || none.Priority != nil || none.Labels != nil || none.MarkRead {
		t.Errorf("Merge(nil) = %+v, %v", none, err)
	}
}

func TestMerge_UnrankedPriority(t *testing.T) {
	t.Parallel()

	rules := []triage.Rule{
		{Prompt: "Pager", Action: json.RawMessage(`{"priority": "urgent"}`)},
		{Prompt: "Noise", Action: json.RawMessage(`{"priority": "low"}`)},
		{Prompt: "Escalate", Action: json.RawMessage(`{"priority": "high"}`)},
	}

	tests := []struct {
		name    string
		matched []int
		want    string
	}{
		{"unranked kept over lower", []int{1, 2}, "urgent"},
		{"unranked kept over higher", []int{1, 3}, "urgent"},
		{"ranked kept over later unranked", []int{2, 1}, "low"},
		{"ranked still compare", []int{2, 1, 3}, "high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := Merge(rules, tt.matched)
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			if d.Priority == nil || *d.Priority != tt.want {
				t.Errorf("priority = %v, want %q", d.Priority, tt.want)
			}
		})
	}
}
