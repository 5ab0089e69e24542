package github

import (
	"encoding/json"
	"fmt"
	"time"
)

// SubjectKind is the type tag GitHub puts on a notification subject.
type SubjectKind string

const (
	KindIssue       SubjectKind = "Issue"
	KindPullRequest SubjectKind = "PullRequest"
)

// Notification is one thread from the notifications inbox.
type Notification struct {
	ID              string     `json:"id"`
	Unread          bool       `json:"unread"`
	Reason          string     `json:"reason"`
	UpdatedAt       string     `json:"updated_at"`
	LastReadAt      *string    `json:"last_read_at"`
	Subject         Subject    `json:"subject"`
	Repository      Repository `json:"repository"`
	URL             string     `json:"url"`
	SubscriptionURL string     `json:"subscription_url"`
}

// Kind returns the subject type tag.
func (n *Notification) Kind() SubjectKind { return SubjectKind(n.Subject.Type) }

// Updated parses UpdatedAt. Unparseable timestamps yield the zero time.
func (n *Notification) Updated() time.Time {
	t, err := time.Parse(time.RFC3339, n.UpdatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Subject describes what a notification is about.
type Subject struct {
	Title            string  `json:"title"`
	URL              string  `json:"url"`
	LatestCommentURL *string `json:"latest_comment_url"`
	Type             string  `json:"type"`
}

// Repository is the minimal repository embedded in notifications.
type Repository struct {
	FullName    string  `json:"full_name"`
	Owner       Owner   `json:"owner"`
	Private     bool    `json:"private"`
	Description *string `json:"description"`
	HTMLURL     string  `json:"html_url"`
}

// Owner is the account owning a repository.
type Owner struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

// User is a GitHub account as embedded in issues and pull requests.
type User struct {
	Login string  `json:"login"`
	Name  *string `json:"name"`
	Type  string  `json:"type"`
}

// Label accepts both the detailed object form and a bare string.
type Label struct {
	Name        string  `json:"name"`
	Color       string  `json:"color,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Label) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*l = Label{Name: name}
		return nil
	}
	type plain Label
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("label: %w", err)
	}
	*l = Label(p)
	return nil
}

// Issue is the issue detail fetched from a notification subject URL.
type Issue struct {
	Number            int64   `json:"number"`
	Title             string  `json:"title"`
	State             string  `json:"state"`
	Body              *string `json:"body"`
	User              *User   `json:"user"`
	Labels            []Label `json:"labels"`
	Assignee          *User   `json:"assignee"`
	Assignees         []User  `json:"assignees"`
	Comments          int64   `json:"comments"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
	ClosedAt          *string `json:"closed_at"`
	AuthorAssociation string  `json:"author_association"`
	CommentsURL       string  `json:"comments_url"`
	HTMLURL           string  `json:"html_url"`
}

// Ref is one side (head or base) of a pull request.
type Ref struct {
	Label string `json:"label"`
	Ref   string `json:"ref"`
	SHA   string `json:"sha"`
}

// PullRequest is the pull request detail fetched from a notification subject URL.
type PullRequest struct {
	Number             int64   `json:"number"`
	Title              string  `json:"title"`
	State              string  `json:"state"`
	Body               *string `json:"body"`
	User               User    `json:"user"`
	Labels             []Label `json:"labels"`
	Assignee           *User   `json:"assignee"`
	Assignees          []User  `json:"assignees"`
	RequestedReviewers []User  `json:"requested_reviewers"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
	ClosedAt           *string `json:"closed_at"`
	MergedAt           *string `json:"merged_at"`
	Draft              *bool   `json:"draft"`
	Merged             *bool   `json:"merged"`
	Mergeable          *bool   `json:"mergeable"`
	MergeableState     *string `json:"mergeable_state"`
	Comments           *int64  `json:"comments"`
	ReviewComments     *int64  `json:"review_comments"`
	Commits            *int64  `json:"commits"`
	Additions          *int64  `json:"additions"`
	Deletions          *int64  `json:"deletions"`
	ChangedFiles       *int64  `json:"changed_files"`
	Head               Ref     `json:"head"`
	Base               Ref     `json:"base"`
	AuthorAssociation  string  `json:"author_association"`
	CommentsURL        string  `json:"comments_url"`
	HTMLURL            string  `json:"html_url"`
}

// IssueComment is a conversation comment on an issue or pull request.
type IssueComment struct {
	ID        int64   `json:"id"`
	Body      *string `json:"body"`
	User      *User   `json:"user"`
	CreatedAt string  `json:"created_at"`
}
