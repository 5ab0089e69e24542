package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/otelx"
	v "github.com/linnemanlabs/go-core/version"

	gc "github.com/linnemanlabs/ghtriage/internal/cfg"
	"github.com/linnemanlabs/ghtriage/internal/github"
)

// app carries the shared configuration and process I/O for every command.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	// each package registers its own flags here; cobra sees them through
	// AddGoFlagSet
	flags    *flag.FlagSet
	cfg      gc.Config
	logCfg   log.Config
	traceCfg otelx.Config

	logger  log.Logger
	closers []func()
}

func newApp(stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) *app {
	a := &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		getenv: getenv,
		flags:  flag.NewFlagSet(appName, flag.ContinueOnError),
		logger: log.Nop(),
	}
	a.cfg.RegisterFlags(a.flags)
	a.logCfg.RegisterFlags(a.flags)
	a.traceCfg.RegisterFlags(a.flags)
	return a
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Triage GitHub notifications with LLM-evaluated policies",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().AddGoFlagSet(a.flags)

	root.AddCommand(
		newProcessCmd(a),
		newCheckPolicyCmd(a),
		newRenderCmd(a),
		newMarkReadPushesCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup layers configuration (command line, then GHTRIAGE_ env, then the
// config file, then credential fallbacks), validates it and starts logging
// and tracing.
func (a *app) setup(cmd *cobra.Command) error {
	v.AppName = appName
	v.Component = cmd.Name()
	vi := v.Get()

	syncChanged(cmd.Flags(), a.flags)

	// env vars do not override cmdline flags
	cfg.FillFromEnv(a.flags, "GHTRIAGE_", func(format string, args ...any) {
		_, _ = fmt.Fprintf(a.stderr, format+"\n", args...)
	})

	path, required := a.cfg.ConfigFile, true
	if path == "" {
		path, required = gc.DefaultConfigPath(), false
	}
	if err := gc.ApplyFile(a.flags, path, required); err != nil {
		return err
	}
	a.cfg.ApplyFallbacks(a.getenv)

	if err := errors.Join(
		a.cfg.Validate(),
		a.logCfg.Validate(),
		a.traceCfg.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(a.logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	a.closers = append(a.closers, func() { _ = lg.Sync() })

	L := lg.With("component", vi.Component)
	a.logger = L

	ctx := log.WithContext(cmd.Context(), L)

	L.Info(ctx, "initializing",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"github_api_url", a.cfg.GitHubAPIURL,
		"claude_model", a.cfg.ClaudeModel,
		"enable_tracing", a.traceCfg.EnableTracing,
	)

	traceOpts := a.traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = vi.Version

	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	if shutdownOtelx != nil {
		a.closers = append(a.closers, func() { _ = shutdownOtelx(context.Background()) })
	}

	cmd.SetContext(ctx)
	return nil
}

// close runs cleanup in reverse order of registration.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) githubClient() (*github.Client, error) {
	if err := a.cfg.RequireGitHub(); err != nil {
		return nil, err
	}
	return github.New(a.cfg.GitHubAPIURL, a.cfg.GitHubToken,
		github.WithTimeout(a.cfg.HTTPTimeout()),
		github.WithUserAgent(userAgent()),
	), nil
}

// userAgent identifies the build to the GitHub API.
func userAgent() string {
	vi := v.Get()
	if vi.Version == "" {
		return github.DefaultUserAgent
	}
	return github.DefaultUserAgent + "/" + vi.Version
}

// syncChanged marks flags set through cobra as set on the go FlagSet too, so
// FillFromEnv and the config file layer do not override them.
func syncChanged(pfs *pflag.FlagSet, gfs *flag.FlagSet) {
	pfs.Visit(func(f *pflag.Flag) {
		if gfs.Lookup(f.Name) != nil {
			_ = gfs.Set(f.Name, f.Value.String())
		}
	})
}
