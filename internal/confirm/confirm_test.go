package confirm

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/linnemanlabs/ghtriage/internal/triage"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want triage.Answer
	}{
		{"y\n", triage.AnswerYes},
		{"YES\n", triage.AnswerYes},
		{"  yes  \r\n", triage.AnswerYes},
		{"q\n", triage.AnswerQuit},
		{"Quit\n", triage.AnswerQuit},
		{"n\n", triage.AnswerNo},
		{"\n", triage.AnswerNo},
		{"", triage.AnswerNo},
		{"maybe\n", triage.AnswerNo},
	}
	for _, tt := range tests {
		if got := Parse(tt.in); got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPrompt_Sequence(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := NewPrompt(strings.NewReader("y\nn\nq\n"), &out, false)
	ctx := context.Background()

	want := []triage.Answer{triage.AnswerYes, triage.AnswerNo, triage.AnswerQuit, triage.AnswerNo}
	for i, w := range want {
		got, err := p.Confirm(ctx, "fixes a bug", triage.ActionMarkRead)
		if err != nil {
			t.Fatalf("Confirm #%d: %v", i, err)
		}
		if got != w {
			t.Errorf("answer #%d = %v, want %v", i, got, w)
		}
	}

	if !strings.Contains(out.String(), "Summary: fixes a bug\nMark as read? (y/N/q to quit): ") {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrompt_QuietOmitsSummary(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := NewPrompt(strings.NewReader("y\n"), &out, true)
	if _, err := p.Confirm(context.Background(), "s", triage.ActionMarkUnread); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got := out.String(); got != "Mark as unread? (y/N/q to quit): " {
		t.Errorf("output = %q", got)
	}
}

func TestAuto(t *testing.T) {
	t.Parallel()

	got, err := Auto{}.Confirm(context.Background(), "", triage.ActionMarkUnread)
	if err != nil || got != triage.AnswerYes {
		t.Errorf("Auto.Confirm = %v, %v; want yes", got, err)
	}
}
