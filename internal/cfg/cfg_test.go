package cfg

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validBase returns a Config with all fields set to valid values.
func validBase() Config {
	return Config{
		GitHubToken:        "ghp_test",
		GitHubAPIURL:       DefaultGitHubAPIURL,
		HTTPTimeoutSeconds: 30,
		ClaudeAPIKey:       "sk-test-key",
		ClaudeModel:        DefaultClaudeModel,
		EvaluatorMaxTokens: 3333,
		SummaryMaxTokens:   128,
		ThrottleMS:         1000,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.GitHubAPIURL != DefaultGitHubAPIURL {
		t.Errorf("GitHubAPIURL = %q, want %q", c.GitHubAPIURL, DefaultGitHubAPIURL)
	}
	if c.HTTPTimeoutSeconds != 30 {
		t.Errorf("HTTPTimeoutSeconds = %d, want 30", c.HTTPTimeoutSeconds)
	}
	if c.EvaluatorMaxTokens != 3333 {
		t.Errorf("EvaluatorMaxTokens = %d, want 3333", c.EvaluatorMaxTokens)
	}
	if c.SummaryMaxTokens != 128 {
		t.Errorf("SummaryMaxTokens = %d, want 128", c.SummaryMaxTokens)
	}
	if c.Throttle() != time.Second {
		t.Errorf("Throttle = %s, want 1s", c.Throttle())
	}
	if c.ClaudeModel != "claude-sonnet-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-sonnet-4-20250514")
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-github-api-url", "https://ghe.example.com/api/v3",
		"-throttle-ms", "0",
		"-participating",
		"-claude-model", "claude-opus-4-20250514",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.GitHubAPIURL != "https://ghe.example.com/api/v3" {
		t.Errorf("GitHubAPIURL = %q", c.GitHubAPIURL)
	}
	if c.ThrottleMS != 0 {
		t.Errorf("ThrottleMS = %d, want 0", c.ThrottleMS)
	}
	if !c.Participating {
		t.Error("Participating = false, want true")
	}
	if c.ClaudeModel != "claude-opus-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-opus-4-20250514")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errSubstr []string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "throttle zero", mutate: func(c *Config) { c.ThrottleMS = 0 }},
		{name: "throttle negative", mutate: func(c *Config) { c.ThrottleMS = -1 }, wantErr: true, errSubstr: []string{"THROTTLE_MS"}},
		{name: "throttle above max", mutate: func(c *Config) { c.ThrottleMS = 60001 }, wantErr: true, errSubstr: []string{"THROTTLE_MS"}},
		{name: "timeout zero", mutate: func(c *Config) { c.HTTPTimeoutSeconds = 0 }, wantErr: true, errSubstr: []string{"HTTP_TIMEOUT_SECONDS"}},
		{name: "bad api url", mutate: func(c *Config) { c.GitHubAPIURL = "ftp://x" }, wantErr: true, errSubstr: []string{"GITHUB_API_URL"}},
		{name: "no model", mutate: func(c *Config) { c.ClaudeModel = "" }, wantErr: true, errSubstr: []string{"CLAUDE_MODEL"}},
		{name: "summary tokens", mutate: func(c *Config) { c.SummaryMaxTokens = 0 }, wantErr: true, errSubstr: []string{"SUMMARY_MAX_TOKENS"}},
		{name: "slack url", mutate: func(c *Config) { c.SlackWebhookURL = "hooks.slack.com" }, wantErr: true, errSubstr: []string{"SLACK_WEBHOOK_URL"}},
		{name: "window ok", mutate: func(c *Config) { c.Since = "2024-01-01T00:00:00Z"; c.Before = "2024-02-01T00:00:00+02:00" }},
		{name: "since not rfc3339", mutate: func(c *Config) { c.Since = "yesterday" }, wantErr: true, errSubstr: []string{"SINCE"}},
		{name: "since after before", mutate: func(c *Config) { c.Since = "2024-03-01T00:00:00Z"; c.Before = "2024-02-01T00:00:00Z" }, wantErr: true, errSubstr: []string{"earlier than BEFORE"}},
		{name: "pushgateway ok", mutate: func(c *Config) { c.PushgatewayURL = "http://pushgw:9091" }},
		{
			name: "multiple errors joined",
			mutate: func(c *Config) {
				c.ThrottleMS = -5
				c.EvaluatorMaxTokens = 0
			},
			wantErr:   true,
			errSubstr: []string{"THROTTLE_MS", "EVALUATOR_MAX_TOKENS"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := validBase()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, s := range tt.errSubstr {
				if !strings.Contains(err.Error(), s) {
					t.Errorf("error %q missing substring %q", err, s)
				}
			}
		})
	}
}

func TestRequireCredentials(t *testing.T) {
	t.Parallel()

	var c Config
	if err := c.RequireGitHub(); err == nil || !strings.Contains(err.Error(), "GITHUB_TOKEN") {
		t.Errorf("RequireGitHub() = %v", err)
	}
	if err := c.RequireClaude(); err == nil || !strings.Contains(err.Error(), "CLAUDE_API_KEY") {
		t.Errorf("RequireClaude() = %v", err)
	}
	c = validBase()
	if c.RequireGitHub() != nil || c.RequireClaude() != nil {
		t.Error("expected credentials to satisfy requirements")
	}
}

func TestApplyFallbacks(t *testing.T) {
	t.Parallel()

	env := map[string]string{"GITHUB_TOKEN": "from-env", "ANTHROPIC_API_KEY": "sk-env"}
	c := Config{ClaudeModel: "m", ClaudeAPIKey: "explicit"}
	c.ApplyFallbacks(func(k string) string { return env[k] })

	if c.GitHubToken != "from-env" {
		t.Errorf("GitHubToken = %q, want from-env", c.GitHubToken)
	}
	if c.ClaudeAPIKey != "explicit" {
		t.Errorf("ClaudeAPIKey = %q, want explicit", c.ClaudeAPIKey)
	}
	if c.SummaryModel != "m" {
		t.Errorf("SummaryModel = %q, want m", c.SummaryModel)
	}
}

func TestApplyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "throttle-ms: 250\nclaude-model: file-model\nparticipating: true\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse([]string{"-claude-model", "cli-model"}); err != nil {
		t.Fatal(err)
	}

	if err := ApplyFile(fs, path, true); err != nil {
		t.Fatalf("ApplyFile: %v", err)
	}
	if c.ThrottleMS != 250 {
		t.Errorf("ThrottleMS = %d, want 250", c.ThrottleMS)
	}
	if !c.Participating {
		t.Error("Participating = false, want true")
	}
	if c.ClaudeModel != "cli-model" {
		t.Errorf("ClaudeModel = %q, command line must win over file", c.ClaudeModel)
	}
}

func TestApplyFile_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c Config
	c.RegisterFlags(fs)

	missing := filepath.Join(dir, "missing.yaml")
	if err := ApplyFile(fs, missing, false); err != nil {
		t.Errorf("optional missing file: %v", err)
	}
	if err := ApplyFile(fs, missing, true); err == nil {
		t.Error("expected error for required missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("no-such-flag: 1\nthrottle-ms: fast\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := ApplyFile(fs, bad, true)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"no-such-flag", "throttle-ms"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestWindow(t *testing.T) {
	t.Parallel()

	c := validBase()
	if since, before := c.Window(); since != nil || before != nil {
		t.Errorf("Window() = %v, %v, want nil bounds", since, before)
	}

	c.Since = "2024-01-01T00:00:00Z"
	since, before := c.Window()
	if since == nil || !since.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("since = %v", since)
	}
	if before != nil {
		t.Errorf("before = %v, want nil", before)
	}
}
