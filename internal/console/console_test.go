package console

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/linnemanlabs/ghtriage/internal/github"
	"github.com/linnemanlabs/ghtriage/internal/triage"
)

func testEvent(action triage.Action, dryRun bool) *triage.ItemEvent {
	return &triage.ItemEvent{
		Index: 0,
		Total: 3,
		Notification: &github.Notification{
			ID:         "7",
			Unread:     true,
			Reason:     "review_requested",
			UpdatedAt:  "2024-01-01T00:00:00Z",
			Subject:    github.Subject{Title: "Add cache", URL: "https://api.github.com/repos/o/r/pulls/1", Type: "PullRequest"},
			Repository: github.Repository{FullName: "o/r"},
		},
		Summary:  "Adds a cache layer",
		Decision: triage.Decision{MarkRead: action == triage.ActionMarkRead},
		Action:   action,
		DryRun:   dryRun,
	}
}

func TestDecisionLine(t *testing.T) {
	t.Parallel()

	tests := map[triage.Action]string{
		triage.ActionMarkRead:   "✓ Mark as READ",
		triage.ActionMarkUnread: "⚠ Mark as UNREAD",
		triage.ActionSkip:       "⏭  Skip (no action)",
	}
	for a, want := range tests {
		if got := DecisionLine(a); got != want {
			t.Errorf("DecisionLine(%s) = %q, want %q", a, got, want)
		}
	}
}

func TestPrinter_Human(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	p := New(&out, &errOut, Mode{})
	p.Loaded("policies.txt")
	p.Fetched(3)
	p.Decided(testEvent(triage.ActionMarkRead, false))
	p.Applied(nil, triage.ActionMarkRead)
	p.Report(&triage.Report{Tally: triage.Tally{Processed: 3, MarkedRead: 1, Skipped: 2}})

	got := out.String()
	for _, want := range []string{
		"📂 Loaded policy file: policies.txt\n",
		"📊 Processing 3 notifications...",
		"🔄 Processing 1/3\n",
		"📋 PullRequest Add cache in o/r\n",
		"✓ Mark as READ\n",
		"Suggestion: mark as read\n",
		"✓ Marked as read\n",
		"   Total processed: 3\n",
		"   Skipped: 2\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
}

func TestPrinter_DetailedAndSkip(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := New(&out, &out, Mode{Detailed: true})
	p.Decided(testEvent(triage.ActionSkip, false))

	got := out.String()
	for _, want := range []string{
		"📋 Notification Details:\n",
		"   Reason: review_requested\n",
		"   Status: UNREAD\n",
		"⏭  Skip (no action)\n",
		"No action needed - skipping\n",
		"Summary: Adds a cache layer\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "Last read:") {
		t.Error("unexpected Last read line for never-read thread")
	}
}

func TestPrinter_DryRun(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	New(&out, &out, Mode{}).Decided(testEvent(triage.ActionMarkUnread, true))
	if !strings.Contains(out.String(), "Suggestion: mark as unread (dry run, not applied)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrinter_Quiet(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := New(&out, &out, Mode{Quiet: true})
	p.Loaded("policies.txt")
	p.Fetched(1)
	p.Decided(testEvent(triage.ActionMarkRead, false))
	p.Applied(nil, triage.ActionMarkRead)
	p.Report(&triage.Report{})
	if out.Len() != 0 {
		t.Errorf("quiet mode printed %q", out.String())
	}
}

func TestPrinter_JSON(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	p := New(&out, &errOut, Mode{JSON: true})
	p.Fetched(1)
	p.Decided(testEvent(triage.ActionMarkRead, true))

	var d map[string]any
	if err := json.Unmarshal(out.Bytes(), &d); err != nil {
		t.Fatalf("output is not a single JSON value: %v\n%s", err, out.String())
	}
	if d["markRead"] != true {
		t.Errorf("markRead = %v, want true", d["markRead"])
	}

	out.Reset()
	p.Report(&triage.Report{Tally: triage.Tally{Processed: 1, Skipped: 1}, DryRun: true})
	var rep triage.Report
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Tally.Processed != 1 || !rep.DryRun {
		t.Errorf("report = %+v", rep)
	}
}

func TestPrinter_WarningsGoToErr(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	p := New(&out, &errOut, Mode{})
	n := &github.Notification{Subject: github.Subject{Title: "v1.0", Type: "Release"}, Repository: github.Repository{FullName: "o/r"}}
	p.Unsupported(n)

	if out.Len() != 0 {
		t.Errorf("stdout = %q, want empty", out.String())
	}
	if !strings.Contains(errOut.String(), "Skipping unsupported notification type: Release") {
		t.Errorf("stderr = %q", errOut.String())
	}
}
