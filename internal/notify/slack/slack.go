// Package slack posts triage run reports to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/ghtriage/internal/triage"
)

const (
	maxErrorLen = 1500
	httpTimeout = 10 * time.Second
)

// Notifier sends run reports to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
	now        func() time.Time
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
		now:    time.Now,
	}
}

// Send posts a run report. runErr, when set, marks the run as failed.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, r *triage.Report, runErr error) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(r, runErr, n.now()))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	n.logger.Info(ctx, "posted run report to slack", "run_id", r.RunID)
	return nil
}

func buildMessage(r *triage.Report, runErr error, now time.Time) map[string]any {
	blocks := []map[string]any{
		headerBlock(r, runErr),
		{"type": "divider"},
		fieldsBlock(r),
	}
	if runErr != nil {
		blocks = append(blocks, map[string]any{"type": "divider"}, errorBlock(runErr))
	}
	blocks = append(blocks, map[string]any{"type": "divider"}, contextBlock(r, now))
	return map[string]any{"blocks": blocks}
}

func headerBlock(r *triage.Report, runErr error) map[string]any {
	text := "\U0001f7e2 Notification triage complete" // green circle
	switch {
	case runErr != nil:
		text = "\U0001f534 Notification triage failed" // red circle
	case r.Quit:
		text = "\U0001f7e1 Notification triage stopped early" // yellow circle
	}
	if r.DryRun {
		text += " (dry run)"
	}
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(r *triage.Report) map[string]any {
	field := func(label string, value any) map[string]any {
		return map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s:* %v", label, value),
		}
	}
	return map[string]any{
		"type": "section",
		"fields": []map[string]any{
			field("Processed", r.Tally.Processed),
			field("Marked read", r.Tally.MarkedRead),
			field("Marked unread", r.Tally.MarkedUnread),
			field("Skipped", r.Tally.Skipped),
			field("Duration", fmt.Sprintf("%.1fs", r.Duration.Seconds())),
			field("Tokens", fmt.Sprintf("%d in / %d out", r.Usage.InputTokens, r.Usage.OutputTokens)),
		},
	}
}

func errorBlock(err error) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Error*\n\n```%s```", truncate(err.Error(), maxErrorLen)),
		},
	}
}

func contextBlock(r *triage.Report, now time.Time) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{{
			"type": "mrkdwn",
			"text": fmt.Sprintf("ghtriage • run %s • %s", r.RunID, now.UTC().Format("2006-01-02 15:04 UTC")),
		}},
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
