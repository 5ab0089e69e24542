package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/ghtriage/internal/document"
	"github.com/linnemanlabs/ghtriage/internal/github"
)

// DefaultThrottle is the pause between consecutive items.
const DefaultThrottle = time.Second

// ErrJSONRequiresDryRun rejects structured output for a run that may mutate.
var ErrJSONRequiresDryRun = errors.New("--json can only be used with --dry-run")

// Source lists notification threads, fetches their subjects and applies
// read-state changes.
type Source interface {
	ListNotifications(ctx context.Context, opts github.ListOptions) ([]github.Notification, error)
	FetchIssue(ctx context.Context, n *github.Notification) (*github.Issue, error)
	FetchPullRequest(ctx context.Context, n *github.Notification) (*github.PullRequest, error)
	MarkRead(ctx context.Context, threadID string) error
	MarkUnread(ctx context.Context, threadID string) error
}

// Evaluator matches a document against rules and returns the merged
// decision as JSON. Token usage is added to usage.
type Evaluator interface {
	Evaluate(ctx context.Context, tmpl Template, doc string, rules []Rule, usage *Usage) (json.RawMessage, error)
}

// Summarizer produces a one-line description of a document.
type Summarizer interface {
	Summarize(ctx context.Context, doc string) (string, error)
}

// Answer is a confirmation response.
type Answer int

const (
	AnswerNo Answer = iota
	AnswerYes
	AnswerQuit
)

// Confirmer asks whether an action should be applied.
type Confirmer interface {
	Confirm(ctx context.Context, summary string, action Action) (Answer, error)
}

// Reporter receives per-item progress for display.
type Reporter interface {
	Fetched(count int)
	Unsupported(n *github.Notification)
	FetchFailed(n *github.Notification, err error)
	Decided(ev *ItemEvent)
	Applied(n *github.Notification, action Action)
}

// ItemEvent describes one evaluated item before any action is taken.
type ItemEvent struct {
	Index        int
	Total        int
	Notification *github.Notification
	Document     string
	Summary      string
	Raw          json.RawMessage
	Decision     Decision
	Action       Action
	DryRun       bool
}

// Outcome is what happened to an item.
type Outcome string

const (
	OutcomeApplied     Outcome = "applied"
	OutcomeDeclined    Outcome = "declined"
	OutcomeDryRun      Outcome = "dry_run"
	OutcomeNoAction    Outcome = "no_action"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeQuit        Outcome = "quit"
)

// Hooks are optional callbacks fired as the run progresses.
type Hooks struct {
	OnLLMCall  func(purpose string, inputTokens, outputTokens int, duration float64)
	OnItem     func(action Action, outcome Outcome)
	OnComplete func(r *Report, status string)
}

// Options control a single run.
type Options struct {
	DryRun bool
	// JSON selects structured output; only valid with DryRun.
	JSON      bool
	Throttle  time.Duration
	List      github.ListOptions
	Evaluator Template
}

// Validate rejects option combinations that must fail before any fetch.
func (o Options) Validate() error {
	if o.JSON && !o.DryRun {
		return ErrJSONRequiresDryRun
	}
	if o.Throttle < 0 {
		return fmt.Errorf("throttle must not be negative, got %s", o.Throttle)
	}
	return nil
}

// Tally counts what a run did.
type Tally struct {
	Processed    int `json:"processed"`
	MarkedRead   int `json:"marked_read"`
	MarkedUnread int `json:"marked_unread"`
	Skipped      int `json:"skipped"`
}

// Report is the result of a run. On error it holds the partial tally.
type Report struct {
	RunID    string        `json:"run_id"`
	Tally    Tally         `json:"tally"`
	Usage    Usage         `json:"usage"`
	Quit     bool          `json:"quit"`
	DryRun   bool          `json:"dry_run"`
	Duration time.Duration `json:"duration"`
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Source     Source
	Evaluator  Evaluator
	Summarizer Summarizer
	Confirmer  Confirmer
	Reporter   Reporter
}

// Controller runs one triage pass over the inbox.
type Controller struct {
	deps   Deps
	rules  []Rule
	opts   Options
	logger log.Logger
	hooks  Hooks
	sleep  func(context.Context, time.Duration) error
}

// NewController creates a controller. rules are used read-only in the order
// given.
func NewController(deps Deps, rules []Rule, opts Options, logger log.Logger, hooks Hooks) *Controller {
	if logger == nil {
		logger = log.Nop()
	}
	if deps.Source == nil {
		panic(xerrors.New("triage source is required"))
	}
	if deps.Evaluator == nil {
		panic(xerrors.New("triage evaluator is required"))
	}
	if deps.Summarizer == nil {
		panic(xerrors.New("triage summarizer is required"))
	}
	if deps.Confirmer == nil {
		panic(xerrors.New("triage confirmer is required"))
	}
	if deps.Reporter == nil {
		deps.Reporter = nopReporter{}
	}
	return &Controller{
		deps:   deps,
		rules:  rules,
		opts:   opts,
		logger: logger,
		hooks:  hooks,
		sleep:  sleepCtx,
	}
}

// Run fetches the inbox and processes every item in source order.
func (c *Controller) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep := &Report{RunID: ulid.Make().String(), DryRun: c.opts.DryRun}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "triage.run",
		trace.WithAttributes(
			attribute.String("ghtriage.run.id", rep.RunID),
			attribute.Bool("ghtriage.run.dry_run", c.opts.DryRun),
			attribute.Int("ghtriage.run.rules", len(c.rules)),
		),
	)
	defer span.End()

	L := c.logger.With("run_id", rep.RunID)

	finish := func(err error) (*Report, error) {
		rep.Duration = time.Since(start)
		status := "complete"
		switch {
		case err != nil:
			status = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			L.Error(ctx, err, "triage run failed", "processed", rep.Tally.Processed)
		case rep.Quit:
			status = "quit"
		}
		span.SetAttributes(
			attribute.Int("ghtriage.run.processed", rep.Tally.Processed),
			attribute.Int("ghtriage.run.marked_read", rep.Tally.MarkedRead),
			attribute.Int("ghtriage.run.marked_unread", rep.Tally.MarkedUnread),
			attribute.Int("ghtriage.run.skipped", rep.Tally.Skipped),
			attribute.String("ghtriage.run.status", status),
		)
		if c.hooks.OnComplete != nil {
			c.hooks.OnComplete(rep, status)
		}
		if err == nil {
			L.Info(ctx, "triage run complete",
				"status", status,
				"processed", rep.Tally.Processed,
				"marked_read", rep.Tally.MarkedRead,
				"marked_unread", rep.Tally.MarkedUnread,
				"skipped", rep.Tally.Skipped,
				"input_tokens", rep.Usage.InputTokens,
				"output_tokens", rep.Usage.OutputTokens,
			)
		}
		return rep, err
	}

	items, err := c.deps.Source.ListNotifications(ctx, c.opts.List)
	if err != nil {
		return finish(fmt.Errorf("list notifications: %w", err))
	}
	c.deps.Reporter.Fetched(len(items))
	L.Info(ctx, "fetched notifications", "count", len(items))

	for i := range items {
		quit, err := c.processItem(ctx, L, rep, i, len(items), &items[i])
		if err != nil {
			return finish(err)
		}
		if quit {
			rep.Quit = true
			L.Info(ctx, "run stopped by user", "thread_id", items[i].ID)
			break
		}
		if i < len(items)-1 {
			if err := c.sleep(ctx, c.opts.Throttle); err != nil {
				return finish(err)
			}
		}
	}
	return finish(nil)
}

func (c *Controller) processItem(ctx context.Context, L log.Logger, rep *Report, idx, total int, n *github.Notification) (bool, error) {
	rep.Tally.Processed++

	ctx, span := otel.Tracer(tracerName).Start(ctx, "triage.item",
		trace.WithAttributes(
			attribute.String("ghtriage.thread.id", n.ID),
			attribute.String("ghtriage.thread.kind", n.Subject.Type),
			attribute.String("ghtriage.thread.repo", n.Repository.FullName),
		),
	)
	defer span.End()

	IL := L.With("thread_id", n.ID, "repo", n.Repository.FullName, "kind", n.Subject.Type)

	skip := func(action Action, outcome Outcome) {
		rep.Tally.Skipped++
		c.itemDone(span, action, outcome)
	}

	var subj document.Subject
	var err error
	switch n.Kind() {
	case github.KindIssue:
		subj.Issue, err = c.deps.Source.FetchIssue(ctx, n)
	case github.KindPullRequest:
		subj.PullRequest, err = c.deps.Source.FetchPullRequest(ctx, n)
	default:
		IL.Warn(ctx, "unsupported subject kind, skipping")
		c.deps.Reporter.Unsupported(n)
		skip(ActionSkip, OutcomeUnsupported)
		return false, nil
	}
	if err != nil {
		IL.Warn(ctx, "failed to fetch subject, skipping", "error", err)
		span.RecordError(err)
		c.deps.Reporter.FetchFailed(n, err)
		skip(ActionSkip, OutcomeFetchFailed)
		return false, nil
	}

	doc, err := document.Build(n, subj)
	if err != nil {
		return false, fmt.Errorf("build document for thread %s: %w", n.ID, err)
	}

	raw, err := c.deps.Evaluator.Evaluate(ctx, c.opts.Evaluator, doc, c.rules, &rep.Usage)
	if err != nil {
		return false, fmt.Errorf("evaluate thread %s: %w", n.ID, err)
	}

	summary, err := c.deps.Summarizer.Summarize(ctx, doc)
	if err != nil {
		IL.Warn(ctx, "summary failed, using placeholder", "error", err)
		summary = "Summary unavailable for: " + n.Subject.Title
	}

	decision, err := DecodeDecision(raw)
	if err != nil {
		return false, fmt.Errorf("thread %s: %w", n.ID, err)
	}
	action := Classify(decision)
	span.SetAttributes(attribute.String("ghtriage.decision.action", action.String()))

	c.deps.Reporter.Decided(&ItemEvent{
		Index:        idx,
		Total:        total,
		Notification: n,
		Document:     doc,
		Summary:      summary,
		Raw:          raw,
		Decision:     decision,
		Action:       action,
		DryRun:       c.opts.DryRun,
	})

	if action == ActionSkip {
		skip(action, OutcomeNoAction)
		return false, nil
	}
	if c.opts.DryRun {
		skip(action, OutcomeDryRun)
		return false, nil
	}

	ans, err := c.deps.Confirmer.Confirm(ctx, summary, action)
	if err != nil {
		return false, fmt.Errorf("confirm thread %s: %w", n.ID, err)
	}
	switch ans {
	case AnswerQuit:
		c.itemDone(span, action, OutcomeQuit)
		return true, nil
	case AnswerNo:
		skip(action, OutcomeDeclined)
		return false, nil
	}

	if action == ActionMarkRead {
		err = c.deps.Source.MarkRead(ctx, n.ID)
	} else {
		err = c.deps.Source.MarkUnread(ctx, n.ID)
	}
	if err != nil {
		return false, fmt.Errorf("mark thread %s %s: %w", n.ID, action, err)
	}
	if action == ActionMarkRead {
		rep.Tally.MarkedRead++
	} else {
		rep.Tally.MarkedUnread++
	}
	IL.Info(ctx, "applied action", "action", action.String())
	c.deps.Reporter.Applied(n, action)
	c.itemDone(span, action, OutcomeApplied)
	return false, nil
}

func (c *Controller) itemDone(span trace.Span, action Action, outcome Outcome) {
	span.SetAttributes(attribute.String("ghtriage.item.outcome", string(outcome)))
	if c.hooks.OnItem != nil {
		c.hooks.OnItem(action, outcome)
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopReporter struct{}

func (nopReporter) Fetched(int)                             {}
func (nopReporter) Unsupported(*github.Notification)        {}
func (nopReporter) FetchFailed(*github.Notification, error) {}
func (nopReporter) Decided(*ItemEvent)                      {}
func (nopReporter) Applied(*github.Notification, Action)    {}
