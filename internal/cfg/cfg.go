package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultGitHubAPIURL = "https://api.github.com"
	DefaultClaudeModel  = "claude-sonnet-4-20250514"
)

// Config holds settings shared by every ghtriage command.
type Config struct {
	GitHubToken        string
	GitHubAPIURL       string
	HTTPTimeoutSeconds int
	ClaudeAPIKey       string
	ClaudeModel        string
	SummaryModel       string
	EvaluatorMaxTokens int
	SummaryMaxTokens   int
	ThrottleMS         int
	Participating      bool
	All                bool
	Since              string
	Before             string
	SlackWebhookURL    string
	PushgatewayURL     string
	ConfigFile         string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.GitHubToken, "github-token", "", "GitHub token (falls back to GITHUB_TOKEN)")
	fs.StringVar(&c.GitHubAPIURL, "github-api-url", DefaultGitHubAPIURL, "GitHub REST API base URL")
	fs.IntVar(&c.HTTPTimeoutSeconds, "http-timeout-seconds", 30, "GitHub request timeout in seconds (1..600)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude LLM provider (falls back to ANTHROPIC_API_KEY)")
	fs.StringVar(&c.ClaudeModel, "claude-model", DefaultClaudeModel, "Claude model used to evaluate policies")
	fs.StringVar(&c.SummaryModel, "summary-model", "", "Claude model used for one-line summaries (empty = claude-model)")
	fs.IntVar(&c.EvaluatorMaxTokens, "evaluator-max-tokens", 3333, "response token budget for policy evaluation (1..64000)")
	fs.IntVar(&c.SummaryMaxTokens, "summary-max-tokens", 128, "response token budget for summaries (1..4096)")
	fs.IntVar(&c.ThrottleMS, "throttle-ms", 1000, "pause between notifications in milliseconds (0..60000)")
	fs.BoolVar(&c.Participating, "participating", false, "only fetch notifications you participate in")
	fs.BoolVar(&c.All, "all", false, "include notifications already marked read")
	fs.StringVar(&c.Since, "since", "", "only fetch notifications updated after this RFC3339 time")
	fs.StringVar(&c.Before, "before", "", "only fetch notifications updated before this RFC3339 time")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for run reports")
	fs.StringVar(&c.PushgatewayURL, "pushgateway-url", "", "Prometheus Pushgateway URL to push run metrics to")
	fs.StringVar(&c.ConfigFile, "config", "", "YAML config file (default $XDG_CONFIG_HOME/ghtriage/config.yaml when present)")
}

// Validate checks all configuration fields for correctness.
// Credentials are checked separately by the commands that need them.
func (c *Config) Validate() error {
	var errs []error

	if err := validURL(c.GitHubAPIURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid GITHUB_API_URL %q: %w", c.GitHubAPIURL, err))
	}
	if c.HTTPTimeoutSeconds <= 0 || c.HTTPTimeoutSeconds > 600 {
		errs = append(errs, fmt.Errorf("invalid HTTP_TIMEOUT_SECONDS %d (must be 1..600)", c.HTTPTimeoutSeconds))
	}
	if c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required"))
	}
	if c.EvaluatorMaxTokens <= 0 || c.EvaluatorMaxTokens > 64000 {
		errs = append(errs, fmt.Errorf("invalid EVALUATOR_MAX_TOKENS %d (must be 1..64000)", c.EvaluatorMaxTokens))
	}
	if c.SummaryMaxTokens <= 0 || c.SummaryMaxTokens > 4096 {
		errs = append(errs, fmt.Errorf("invalid SUMMARY_MAX_TOKENS %d (must be 1..4096)", c.SummaryMaxTokens))
	}
	if c.ThrottleMS < 0 || c.ThrottleMS > 60000 {
		errs = append(errs, fmt.Errorf("invalid THROTTLE_MS %d (must be 0..60000)", c.ThrottleMS))
	}
	since, sinceErr := parseTime(c.Since)
	if sinceErr != nil {
		errs = append(errs, fmt.Errorf("invalid SINCE %q: %w", c.Since, sinceErr))
	}
	before, beforeErr := parseTime(c.Before)
	if beforeErr != nil {
		errs = append(errs, fmt.Errorf("invalid BEFORE %q: %w", c.Before, beforeErr))
	}
	if since != nil && before != nil && !since.Before(*before) {
		errs = append(errs, fmt.Errorf("SINCE %s must be earlier than BEFORE %s", c.Since, c.Before))
	}
	if c.SlackWebhookURL != "" {
		if err := validURL(c.SlackWebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid SLACK_WEBHOOK_URL: %w", err))
		}
	}
	if c.PushgatewayURL != "" {
		if err := validURL(c.PushgatewayURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid PUSHGATEWAY_URL: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RequireGitHub reports a missing GitHub token.
func (c *Config) RequireGitHub() error {
	if c.GitHubToken == "" {
		return errors.New("GITHUB_TOKEN is required")
	}
	return nil
}

// RequireClaude reports a missing Claude API key.
func (c *Config) RequireClaude() error {
	if c.ClaudeAPIKey == "" {
		return errors.New("CLAUDE_API_KEY is required")
	}
	return nil
}

// ApplyFallbacks fills credentials from the conventional environment
// variables and derives defaults that depend on other fields.
func (c *Config) ApplyFallbacks(getenv func(string) string) {
	if c.GitHubToken == "" {
		c.GitHubToken = getenv("GITHUB_TOKEN")
	}
	if c.ClaudeAPIKey == "" {
		c.ClaudeAPIKey = getenv("ANTHROPIC_API_KEY")
	}
	if c.SummaryModel == "" {
		c.SummaryModel = c.ClaudeModel
	}
}

// HTTPTimeout returns the GitHub request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Throttle returns the inter-item delay.
func (c *Config) Throttle() time.Duration {
	return time.Duration(c.ThrottleMS) * time.Millisecond
}

// Window returns the parsed since/before bounds; unset bounds are nil.
// Call after Validate.
func (c *Config) Window() (since, before *time.Time) {
	since, _ = parseTime(c.Since)
	before, _ = parseTime(c.Before)
	return since, before
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ghtriage", "config.yaml")
}

// ApplyFile sets flags from a YAML mapping of flag name to value. Flags
// already set on the command line or from the environment are left alone.
// A missing file is only an error when required is true.
func ApplyFile(fs *flag.FlagSet, path string, required bool) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	values := map[string]any{}
	if err := yaml.Unmarshal(b, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var errs []error
	for name, v := range values {
		if fs.Lookup(name) == nil {
			errs = append(errs, fmt.Errorf("config file %s: unknown setting %q", path, name))
			continue
		}
		if set[name] {
			continue
		}
		if err := fs.Set(name, fmt.Sprint(v)); err != nil {
			errs = append(errs, fmt.Errorf("config file %s: %s: %w", path, name, err))
		}
	}
	return errors.Join(errs...)
}

func validURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
