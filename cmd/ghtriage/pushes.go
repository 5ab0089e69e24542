package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/ghtriage/internal/github"
)

const defaultPushConcurrency = 4

func newMarkReadPushesCmd(a *app) *cobra.Command {
	var (
		dryRun      bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "mark-read-pushes",
		Short: "Mark read pull request threads whose only new activity is pushed commits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gh, err := a.githubClient()
			if err != nil {
				return err
			}
			since, before := a.cfg.Window()
			p := &pushSweeper{
				src:         gh,
				since:       since,
				before:      before,
				out:         a.stdout,
				logger:      a.logger,
				dryRun:      dryRun,
				concurrency: concurrency,
			}
			n, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.stdout, "📊 %d threads marked as read\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report threads without marking them")
	cmd.Flags().IntVar(&concurrency, "concurrency", defaultPushConcurrency, "threads checked in parallel")
	return cmd
}

type pushSource interface {
	ListNotifications(ctx context.Context, opts github.ListOptions) ([]github.Notification, error)
	FetchPullRequest(ctx context.Context, n *github.Notification) (*github.PullRequest, error)
	ListIssueComments(ctx context.Context, commentsURL string, since *time.Time) ([]github.IssueComment, error)
	MarkRead(ctx context.Context, threadID string) error
}

// pushSweeper marks read the unread pull request threads that were read
// before, are not merged and have no conversation comments since. Their
// only new activity is commits.
type pushSweeper struct {
	src         pushSource
	out         io.Writer
	logger      log.Logger
	dryRun      bool
	concurrency int
	since       *time.Time
	before      *time.Time

	mu     sync.Mutex
	marked int
}

// Run returns the number of threads marked (or, in dry-run, that would be).
func (p *pushSweeper) Run(ctx context.Context) (int, error) {
	if p.logger == nil {
		p.logger = log.Nop()
	}
	threads, err := p.src.ListNotifications(ctx, github.ListOptions{Since: p.since, Before: p.before})
	if err != nil {
		return 0, fmt.Errorf("list notifications: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for i := range threads {
		n := &threads[i]
		if n.Kind() != github.KindPullRequest || n.LastReadAt == nil {
			continue
		}
		g.Go(func() error { return p.check(gctx, n) })
	}
	if err := g.Wait(); err != nil {
		return p.marked, err
	}
	return p.marked, nil
}

func (p *pushSweeper) check(ctx context.Context, n *github.Notification) error {
	since, err := time.Parse(time.RFC3339, *n.LastReadAt)
	if err != nil {
		return fmt.Errorf("thread %s: last_read_at %q: %w", n.ID, *n.LastReadAt, err)
	}

	pr, err := p.src.FetchPullRequest(ctx, n)
	if err != nil {
		return fmt.Errorf("thread %s: %w", n.ID, err)
	}
	if pr.Merged != nil && *pr.Merged {
		return nil
	}

	comments, err := p.src.ListIssueComments(ctx, pr.CommentsURL, &since)
	if err != nil {
		return fmt.Errorf("thread %s: list comments: %w", n.ID, err)
	}
	if len(comments) > 0 {
		return nil
	}

	if !p.dryRun {
		if err := p.src.MarkRead(ctx, n.ID); err != nil {
			return fmt.Errorf("thread %s: mark read: %w", n.ID, err)
		}
	}
	p.logger.Info(ctx, "push-only thread", "thread_id", n.ID, "dry_run", p.dryRun)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.marked++
	verb := "Marked as read"
	if p.dryRun {
		verb = "Would mark as read"
	}
	_, _ = fmt.Fprintf(p.out, "✓ %s: %s in %s\n", verb, n.Subject.Title, n.Repository.FullName)
	return nil
}
