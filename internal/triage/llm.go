package triage

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Provider is the interface for any LLM backend.
type Provider interface {
	Send(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}

// Template carries the request settings shared by every call of one kind.
type Template struct {
	Model     string
	MaxTokens int
	System    string
}

// LLMRequest is a single-turn request to the provider.
type LLMRequest struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []Message
}

// NewRequest builds a request from t with prompt as the only user message.
func (t Template) NewRequest(prompt string) *LLMRequest {
	return &LLMRequest{
		Model:     t.Model,
		MaxTokens: t.MaxTokens,
		System:    t.System,
		Messages: []Message{{
			Role:    "user",
			Content: []ContentBlock{{Type: "text", Text: prompt}},
		}},
	}
}

// LLMResponse is the provider output and its token usage.
type LLMResponse struct {
	Content    []ContentBlock
	StopReason StopReason
	Usage      Usage
	Model      string
}

// Text concatenates the text blocks of the response.
func (r *LLMResponse) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopEnd       StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
)

// Message is one conversation turn.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage accumulates token counts across calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add folds o into u.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

const tracerName = "github.com/linnemanlabs/ghtriage/internal/triage"

// InstrumentedProvider wraps a Provider with an llm.call span and the
// OnLLMCall hook.
type InstrumentedProvider struct {
	next      Provider
	operation string
	hooks     Hooks
}

// Instrument wraps p. operation names the caller, e.g. "evaluate".
func Instrument(p Provider, operation string, hooks Hooks) *InstrumentedProvider {
	return &InstrumentedProvider{next: p, operation: operation, hooks: hooks}
}

// Send implements Provider.
func (p *InstrumentedProvider) Send(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "llm.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "llm.call"),
			attribute.String("gen_ai.request.model", req.Model),
			attribute.Int("gen_ai.request.max_tokens", req.MaxTokens),
			attribute.String("ghtriage.llm.purpose", p.operation),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := p.next.Send(ctx, req)
	dur := time.Since(start).Seconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.String("gen_ai.response.finish_reason", string(resp.StopReason)),
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	if p.hooks.OnLLMCall != nil {
		p.hooks.OnLLMCall(p.operation, resp.Usage.InputTokens, resp.Usage.OutputTokens, dur)
	}
	return resp, nil
}
