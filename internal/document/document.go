// Package document renders a notification thread and its issue or pull
// request into the canonical nested-tag text handed to the evaluator and
// summarizer.
//
// Output is a pure function of its inputs: identical inputs produce
// byte-identical documents, and every section is emitted in a fixed order
// whether or not its optional fields are present.
package document

import (
	"errors"
	"strconv"

	"github.com/linnemanlabs/ghtriage/internal/github"
)

const (
	// MaxDescriptionRunes is the body length kept before truncation.
	MaxDescriptionRunes = 500
	shortSHALen         = 8
)

// ErrNoSubject is returned by Build when neither subject detail is set.
var ErrNoSubject = errors.New("document: no subject detail")

// Subject is the fetched detail a notification refers to. Exactly one of
// the fields is set.
type Subject struct {
	Issue       *github.Issue
	PullRequest *github.PullRequest
}

// Build renders n with whichever subject detail is present.
func Build(n *github.Notification, s Subject) (string, error) {
	switch {
	case s.PullRequest != nil:
		return PullRequest(n, s.PullRequest), nil
	case s.Issue != nil:
		return Issue(n, s.Issue), nil
	default:
		return "", ErrNoSubject
	}
}

// Issue renders an issue notification.
func Issue(n *github.Notification, is *github.Issue) string {
	var b builder
	writeThread(&b, n)

	b.open("issue")
	b.field("number", strconv.FormatInt(is.Number, 10))
	b.field("title", is.Title)
	b.field("state", is.State)

	var login string
	var name *string
	if is.User != nil {
		login, name = is.User.Login, is.User.Name
	}
	writeAuthor(&b, login, name, is.AuthorAssociation)
	writeDates(&b, is.CreatedAt, is.UpdatedAt, is.ClosedAt, nil)
	writeLabels(&b, is.Labels)
	writeAssignees(&b, is.Assignee, is.Assignees)

	b.open("statistics")
	b.field("comments", strconv.FormatInt(is.Comments, 10))
	b.close("statistics")

	writeDescription(&b, is.Body)
	b.close("issue")
	b.blank()
	return b.String()
}

// PullRequest renders a pull request notification.
func PullRequest(n *github.Notification, pr *github.PullRequest) string {
	var b builder
	writeThread(&b, n)

	b.open("pull_request")
	b.field("number", strconv.FormatInt(pr.Number, 10))
	b.field("title", pr.Title)
	b.field("state", pr.State)

	b.open("status")
	b.optBool("draft", pr.Draft)
	b.optBool("merged", pr.Merged)
	b.optBool("mergeable", pr.Mergeable)
	b.optString("mergeable_state", pr.MergeableState)
	b.close("status")

	writeAuthor(&b, pr.User.Login, pr.User.Name, pr.AuthorAssociation)
	writeDates(&b, pr.CreatedAt, pr.UpdatedAt, pr.ClosedAt, pr.MergedAt)
	writeLabels(&b, pr.Labels)
	writeAssignees(&b, pr.Assignee, pr.Assignees)

	b.section("reviewers", len(pr.RequestedReviewers), func() {
		for _, u := range pr.RequestedReviewers {
			b.field("requested", u.Login)
		}
	})

	b.open("statistics")
	b.optInt("comments", pr.Comments)
	b.optInt("review_comments", pr.ReviewComments)
	b.optInt("commits", pr.Commits)
	b.optInt("additions", pr.Additions)
	b.optInt("deletions", pr.Deletions)
	b.optInt("changed_files", pr.ChangedFiles)
	b.close("statistics")

	b.open("branches")
	b.line(refElement("head", pr.Head))
	b.line(refElement("base", pr.Base))
	b.close("branches")

	writeDescription(&b, pr.Body)
	b.close("pull_request")
	b.blank()
	return b.String()
}

func writeThread(b *builder, n *github.Notification) {
	status := "READ"
	if n.Unread {
		status = "UNREAD"
	}
	b.open("notification_context")
	b.field("id", n.ID)
	b.field("reason", n.Reason)
	b.field("status", status)
	b.field("last_updated", n.UpdatedAt)
	b.optString("last_read", n.LastReadAt)
	b.close("notification_context")
	b.blank()

	r := n.Repository
	b.open("repository_context")
	b.field("full_name", r.FullName)
	b.line(`<owner login="` + Escape(r.Owner.Login) + `" type="` + Escape(r.Owner.Type) + `">` +
		Escape(r.Owner.Login) + "</owner>")
	b.field("private", strconv.FormatBool(r.Private))
	b.optString("description", r.Description)
	b.close("repository_context")
	b.blank()
}

func writeAuthor(b *builder, login string, name *string, association string) {
	b.open("author")
	b.field("login", login)
	b.optString("name", name)
	b.field("association", association)
	b.close("author")
}

func writeDates(b *builder, created, updated string, closed, merged *string) {
	b.open("dates")
	b.field("created_at", created)
	b.field("updated_at", updated)
	b.optString("closed_at", closed)
	b.optString("merged_at", merged)
	b.close("dates")
}

func writeLabels(b *builder, labels []github.Label) {
	b.section("labels", len(labels), func() {
		for _, l := range labels {
			b.field("label", l.Name)
		}
	})
}

func writeAssignees(b *builder, primary *github.User, all []github.User) {
	n := len(all)
	if primary != nil {
		n++
	}
	b.section("assignees", n, func() {
		if primary != nil {
			b.field("primary", primary.Login)
		}
		for _, u := range all {
			b.field("assignee", u.Login)
		}
	})
}

func refElement(tag string, r github.Ref) string {
	sha := r.SHA
	if len(sha) > shortSHALen {
		sha = sha[:shortSHALen]
	}
	return "<" + tag + ` ref="` + Escape(r.Ref) + `" sha="` + Escape(sha) + `">` + Escape(r.Ref) + "</" + tag + ">"
}

// writeDescription emits the body unindented between its tags so the text
// reaches the evaluator unchanged apart from escaping.
func writeDescription(b *builder, body *string) {
	if body == nil || *body == "" {
		b.line("<description>")
		b.line("</description>")
		return
	}
	text := *body
	runes := []rune(text)
	if len(runes) > MaxDescriptionRunes {
		b.line(`<description truncated="true">`)
		b.sb.WriteString(Escape(string(runes[:MaxDescriptionRunes])))
		b.sb.WriteString("\n... (truncated) ...\n")
		b.line("</description>")
		return
	}
	b.line("<description>")
	b.sb.WriteString(Escape(text))
	b.sb.WriteByte('\n')
	b.line("</description>")
}
