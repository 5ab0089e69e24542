package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"

	"github.com/linnemanlabs/ghtriage/internal/confirm"
	"github.com/linnemanlabs/ghtriage/internal/console"
	"github.com/linnemanlabs/ghtriage/internal/github"
	"github.com/linnemanlabs/ghtriage/internal/llm/claude"
	"github.com/linnemanlabs/ghtriage/internal/notify/slack"
	"github.com/linnemanlabs/ghtriage/internal/policy"
	"github.com/linnemanlabs/ghtriage/internal/summary"
	"github.com/linnemanlabs/ghtriage/internal/triage"
)

type processFlags struct {
	dryRun    bool
	quiet     bool
	detailed  bool
	json      bool
	noConfirm bool
}

func newProcessCmd(a *app) *cobra.Command {
	var f processFlags
	cmd := &cobra.Command{
		Use:   "process [policy-file...]",
		Short: "Evaluate every inbox notification against the policy files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProcess(cmd.Context(), f, args)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.dryRun, "dry-run", false, "report decisions without marking anything")
	fl.BoolVar(&f.quiet, "quiet", false, "suppress progress output")
	fl.BoolVar(&f.detailed, "detailed", false, "print full details for each notification")
	fl.BoolVar(&f.json, "json", false, "print decisions as JSON (requires --dry-run)")
	fl.BoolVar(&f.noConfirm, "no-confirm", false, "apply decisions without asking")
	return cmd
}

func (a *app) processOptions(f processFlags) triage.Options {
	since, before := a.cfg.Window()
	return triage.Options{
		DryRun:   f.dryRun,
		JSON:     f.json,
		Throttle: a.cfg.Throttle(),
		List: github.ListOptions{
			All:           a.cfg.All,
			Participating: a.cfg.Participating,
			Since:         since,
			Before:        before,
		},
		Evaluator: triage.Template{
			Model:     a.cfg.ClaudeModel,
			MaxTokens: a.cfg.EvaluatorMaxTokens,
			System:    policy.SystemPrompt,
		},
	}
}

func (a *app) runProcess(ctx context.Context, f processFlags, paths []string) error {
	L := a.logger

	// option conflicts fail before any file or network access
	opts := a.processOptions(f)
	if err := opts.Validate(); err != nil {
		return err
	}

	printer := console.New(a.stdout, a.stderr, console.Mode{Quiet: f.quiet, Detailed: f.detailed, JSON: f.json})

	rules, err := triage.LoadPolicies(paths...)
	if err != nil {
		return err
	}
	for _, p := range paths {
		printer.Loaded(p)
	}
	L.Info(ctx, "loaded policies", "files", len(paths), "rules", len(rules))

	gh, err := a.githubClient()
	if err != nil {
		return err
	}
	if err := a.cfg.RequireClaude(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := triage.NewMetrics(reg)
	hooks := m.Hooks()

	provider := claude.New(a.cfg.ClaudeAPIKey, a.cfg.ClaudeModel)
	L.Info(ctx, "initialized LLM provider", "provider", "claude", "model", a.cfg.ClaudeModel, "summary_model", a.cfg.SummaryModel)

	var confirmer triage.Confirmer = confirm.NewPrompt(a.stdin, a.stdout, f.quiet)
	if f.noConfirm {
		confirmer = confirm.Auto{}
	}

	ctrl := triage.NewController(triage.Deps{
		Source:    gh,
		Evaluator: policy.New(triage.Instrument(provider, "evaluate", hooks), L),
		Summarizer: summary.New(triage.Instrument(provider, "summarize", hooks), triage.Template{
			Model:     a.cfg.SummaryModel,
			MaxTokens: a.cfg.SummaryMaxTokens,
		}),
		Confirmer: confirmer,
		Reporter:  printer,
	}, rules, opts, L, hooks)

	rep, runErr := ctrl.Run(ctx)
	if runErr == nil {
		printer.Report(rep)
	}

	// post-run reporting uses a fresh context so an interrupt still reports
	reportCtx := context.WithoutCancel(ctx)
	if a.cfg.SlackWebhookURL != "" && rep != nil {
		if err := slack.New(a.cfg.SlackWebhookURL, L).Send(reportCtx, rep, runErr); err != nil {
			L.Error(ctx, err, "slack report failed")
		}
	}
	if a.cfg.PushgatewayURL != "" {
		if err := pushMetrics(reportCtx, a.cfg.PushgatewayURL, reg); err != nil {
			L.Error(ctx, err, "metrics push failed", "pushgateway_url", a.cfg.PushgatewayURL)
		}
	}
	return runErr
}

// pushMetrics replaces the job's metric group on the Pushgateway.
func pushMetrics(ctx context.Context, url string, g prometheus.Gatherer) error {
	if url == "" {
		return errors.New("pushgateway url is empty")
	}
	return push.New(url, appName).
		Gatherer(g).
		Grouping("command", "process").
		PushContext(ctx)
}
