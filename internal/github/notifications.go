package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"
)

// ErrWrongKind is returned when a subject detail is requested for a
// notification of a different kind.
var ErrWrongKind = errors.New("github: notification subject has a different kind")

const defaultPerPage = 50

// ListOptions filters the notifications listing.
type ListOptions struct {
	// All includes notifications already marked read.
	All bool
	// Participating limits results to threads the user participates in.
	Participating bool
	Since         *time.Time
	Before        *time.Time
	PerPage       int
}

func (o ListOptions) path() string {
	per := o.PerPage
	if per <= 0 {
		per = defaultPerPage
	}
	params := []Param{
		{Key: "all", Value: "true", Set: o.All},
		{Key: "participating", Value: "true", Set: o.Participating},
		Opt("since", formatTime(o.Since)),
		Opt("before", formatTime(o.Before)),
		P("per_page", strconv.Itoa(per)),
	}
	return BuildPath("/notifications", params...)
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// ListNotifications returns every page of the inbox, oldest update first.
// Ties keep the order GitHub returned them in.
func (c *Client) ListNotifications(ctx context.Context, opts ListOptions) ([]Notification, error) {
	var all []Notification
	next := opts.path()
	for next != "" {
		var page []Notification
		h, err := c.do(ctx, http.MethodGet, next, nil, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		next = nextLink(h)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Updated().Before(all[j].Updated())
	})
	return all, nil
}

// GetThread fetches a single notification thread by id.
func (c *Client) GetThread(ctx context.Context, threadID string) (*Notification, error) {
	var n Notification
	if err := c.Do(ctx, http.MethodGet, "/notifications/threads/"+threadID, nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// FetchIssue fetches the issue a notification refers to.
func (c *Client) FetchIssue(ctx context.Context, n *Notification) (*Issue, error) {
	if n.Kind() != KindIssue {
		return nil, fmt.Errorf("%w: %s", ErrWrongKind, n.Subject.Type)
	}
	var issue Issue
	if err := c.Do(ctx, http.MethodGet, n.Subject.URL, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// FetchPullRequest fetches the pull request a notification refers to.
func (c *Client) FetchPullRequest(ctx context.Context, n *Notification) (*PullRequest, error) {
	if n.Kind() != KindPullRequest {
		return nil, fmt.Errorf("%w: %s", ErrWrongKind, n.Subject.Type)
	}
	var pr PullRequest
	if err := c.Do(ctx, http.MethodGet, n.Subject.URL, nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// ListIssueComments fetches comments from an issue or pull request
// comments_url, optionally restricted to those updated after since.
func (c *Client) ListIssueComments(ctx context.Context, commentsURL string, since *time.Time) ([]IssueComment, error) {
	var all []IssueComment
	next := BuildPath(commentsURL, Opt("since", formatTime(since)), P("per_page", "100"))
	for next != "" {
		var page []IssueComment
		h, err := c.do(ctx, http.MethodGet, next, nil, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		next = nextLink(h)
	}
	return all, nil
}

// MarkRead marks a thread as read.
func (c *Client) MarkRead(ctx context.Context, threadID string) error {
	return c.Do(ctx, http.MethodPatch, "/notifications/threads/"+threadID, nil, nil)
}

// MarkUnread keeps a thread surfaced in the inbox. The REST API has no
// direct unread transition, so this re-subscribes the thread with
// ignored=false, which brings it back on the next activity.
func (c *Client) MarkUnread(ctx context.Context, threadID string) error {
	body := map[string]bool{"ignored": false}
	return c.Do(ctx, http.MethodPut, "/notifications/threads/"+threadID+"/subscription", body, nil)
}
