// Package console renders triage progress for a terminal or, in JSON mode,
// as a stream of JSON values on stdout.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/linnemanlabs/ghtriage/internal/github"
	"github.com/linnemanlabs/ghtriage/internal/triage"
)

// Mode selects how much is printed.
type Mode struct {
	Quiet    bool
	Detailed bool
	JSON     bool
}

// Printer implements triage.Reporter.
type Printer struct {
	out  io.Writer
	err  io.Writer
	mode Mode
}

// New creates a printer writing progress to out and warnings to errOut.
func New(out, errOut io.Writer, mode Mode) *Printer {
	return &Printer{out: out, err: errOut, mode: mode}
}

func (p *Printer) human() bool { return !p.mode.Quiet && !p.mode.JSON }

func (p *Printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Loaded reports a policy file that was read.
func (p *Printer) Loaded(path string) {
	if p.human() {
		p.printf("📂 Loaded policy file: %s\n", path)
	}
}

// Fetched implements triage.Reporter.
func (p *Printer) Fetched(count int) {
	if p.human() {
		p.printf("\n📊 Processing %d notifications...\n\n", count)
	}
}

// Unsupported implements triage.Reporter.
func (p *Printer) Unsupported(n *github.Notification) {
	_, _ = fmt.Fprintf(p.err, "⚠ Skipping unsupported notification type: %s\n   Notification: %s in %s\n",
		n.Subject.Type, n.Subject.Title, n.Repository.FullName)
}

// FetchFailed implements triage.Reporter.
func (p *Printer) FetchFailed(n *github.Notification, err error) {
	_, _ = fmt.Fprintf(p.err, "⚠ Could not fetch %s %q in %s: %v\n",
		n.Subject.Type, n.Subject.Title, n.Repository.FullName, err)
}

// Decided implements triage.Reporter.
func (p *Printer) Decided(ev *triage.ItemEvent) {
	if p.mode.JSON {
		b, err := json.MarshalIndent(ev.Decision, "", "  ")
		if err != nil {
			b = []byte(`{"error": true}`)
		}
		p.printf("%s\n", b)
		return
	}
	if p.mode.Quiet {
		return
	}

	n := ev.Notification
	p.printf("🔄 Processing %d/%d\n", ev.Index+1, ev.Total)
	if p.mode.Detailed {
		p.printf("📋 Notification Details:\n")
		p.printf("   Repository: %s\n", n.Repository.FullName)
		p.printf("   Type: %s\n", n.Subject.Type)
		p.printf("   Reason: %s\n", n.Reason)
		p.printf("   Title: %s\n", n.Subject.Title)
		p.printf("   Status: %s\n", status(n))
		p.printf("   Updated: %s\n", n.UpdatedAt)
		if n.LastReadAt != nil {
			p.printf("   Last read: %s\n", *n.LastReadAt)
		}
		p.printf("   URL: %s\n", n.Subject.URL)
		p.printf("   ---\n")
	} else {
		p.printf("📋 %s %s in %s\n", n.Subject.Type, shortTitle(n.Subject.Title), n.Repository.FullName)
	}

	p.printf("%s\n", DecisionLine(ev.Action))
	switch {
	case ev.Action == triage.ActionSkip:
		p.printf("No action needed - skipping\n")
		p.printf("Summary: %s\n", ev.Summary)
		p.printf("URL: %s\n", n.Subject.URL)
	case ev.DryRun:
		p.printf("Suggestion: mark as %s (dry run, not applied)\n", strings.ToLower(ev.Action.String()))
		p.printf("Summary: %s\n", ev.Summary)
	default:
		p.printf("Suggestion: mark as %s\n", strings.ToLower(ev.Action.String()))
	}
}

// Applied implements triage.Reporter.
func (p *Printer) Applied(_ *github.Notification, action triage.Action) {
	if p.human() {
		p.printf("✓ Marked as %s\n", strings.ToLower(action.String()))
	}
}

// Report prints the final tally. In JSON mode the whole report is printed
// as one JSON value.
func (p *Printer) Report(r *triage.Report) {
	if p.mode.JSON {
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return
		}
		p.printf("%s\n", b)
		return
	}
	if p.mode.Quiet {
		return
	}
	if r.Quit {
		p.printf("\n👋 Exiting at user request\n")
	}
	p.printf("\n📊 Processing Complete!\n")
	p.printf("   Total processed: %d\n", r.Tally.Processed)
	p.printf("   Marked as read: %d\n", r.Tally.MarkedRead)
	p.printf("   Marked as unread: %d\n", r.Tally.MarkedUnread)
	p.printf("   Skipped: %d\n", r.Tally.Skipped)
}

// DecisionLine is the one-line rendering of an action.
func DecisionLine(a triage.Action) string {
	switch a {
	case triage.ActionMarkRead:
		return "✓ Mark as READ"
	case triage.ActionMarkUnread:
		return "⚠ Mark as UNREAD"
	default:
		return "⏭  Skip (no action)"
	}
}

func status(n *github.Notification) string {
	if n.Unread {
		return "UNREAD"
	}
	return "READ"
}

// shortTitle keeps the part after the last '#', which drops the repository
// prefix GitHub puts on some subject titles.
func shortTitle(title string) string {
	if i := strings.LastIndex(title, "#"); i >= 0 {
		return "#" + title[i+1:]
	}
	return title
}
