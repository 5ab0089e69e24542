package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/ghtriage/internal/document"
	"github.com/linnemanlabs/ghtriage/internal/github"
)

func newRenderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render thread-id",
		Short: "Print the document the evaluator sees for one notification thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gh, err := a.githubClient()
			if err != nil {
				return err
			}
			return render(cmd.Context(), gh, a.stdout, args[0])
		},
	}
}

type threadFetcher interface {
	GetThread(ctx context.Context, threadID string) (*github.Notification, error)
	FetchIssue(ctx context.Context, n *github.Notification) (*github.Issue, error)
	FetchPullRequest(ctx context.Context, n *github.Notification) (*github.PullRequest, error)
}

func render(ctx context.Context, src threadFetcher, out io.Writer, threadID string) error {
	n, err := src.GetThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("get thread %s: %w", threadID, err)
	}

	var s document.Subject
	switch n.Kind() {
	case github.KindIssue:
		s.Issue, err = src.FetchIssue(ctx, n)
	case github.KindPullRequest:
		s.PullRequest, err = src.FetchPullRequest(ctx, n)
	default:
		return fmt.Errorf("thread %s: unsupported subject type %q", threadID, n.Subject.Type)
	}
	if err != nil {
		return fmt.Errorf("fetch subject of thread %s: %w", threadID, err)
	}

	doc, err := document.Build(n, s)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, doc)
	return err
}
