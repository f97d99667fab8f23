package codegen

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/martinemde/mojocode/unifiedllm"
)

// Model is a Streamer backed by a unifiedllm Client.
type Model struct {
	client      *unifiedllm.Client
	model       string
	provider    string
	temperature *float64
	retry       unifiedllm.RetryPolicy
	logger      *slog.Logger
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithModelID selects the model identifier sent with each request.
func WithModelID(id string) ModelOption {
	return func(m *Model) { m.model = id }
}

// WithProvider selects the provider the client routes to.
func WithProvider(name string) ModelOption {
	return func(m *Model) { m.provider = name }
}

// WithTemperature overrides the adapter's default temperature.
func WithTemperature(t float64) ModelOption {
	return func(m *Model) { m.temperature = &t }
}

// WithRetryPolicy replaces the policy used when opening the stream.
func WithRetryPolicy(p unifiedllm.RetryPolicy) ModelOption {
	return func(m *Model) { m.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ModelOption {
	return func(m *Model) { m.logger = l }
}

// NewModel creates a Model that streams through client.
func NewModel(client *unifiedllm.Client, opts ...ModelOption) *Model {
	m := &Model{
		client: client,
		retry:  unifiedllm.DefaultRetryPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stream opens a model stream for req and returns the snapshot sequence. An
// Update is sent each time the parsed snapshot changes.
func (m *Model) Stream(ctx context.Context, req Request) (<-chan Update, error) {
	llmReq := unifiedllm.Request{
		Model:       m.model,
		Provider:    m.provider,
		Messages:    BuildMessages(req),
		Temperature: m.temperature,
	}

	policy := m.retry
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		m.logger.Warn("retrying model stream", "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", err)
	}
	events, err := unifiedllm.Retry(ctx, policy, func(ctx context.Context) (<-chan unifiedllm.StreamEvent, error) {
		return m.client.Stream(ctx, llmReq)
	})
	if err != nil {
		return nil, err
	}

	out := make(chan Update)
	go func() {
		defer close(out)
		Accumulate(ctx, events, out)
	}()
	return out, nil
}

// Accumulate reads text deltas from events, parses the accumulated text,
// and sends a Snapshot to out whenever it changes. It returns when events is
// closed, after forwarding a stream error, or when ctx is done.
func Accumulate(ctx context.Context, events <-chan unifiedllm.StreamEvent, out chan<- Update) {
	var (
		text strings.Builder
		last Snapshot
		sent bool
	)
	emit := func(u Update) bool {
		select {
		case out <- u:
			return true
		case <-ctx.Done():
			return false
		}
	}
	publish := func() bool {
		snap := Parse(text.String())
		if sent && snap.Equal(last) {
			return true
		}
		last, sent = snap, true
		return emit(Update{Snapshot: snap})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case unifiedllm.TextDelta:
				text.WriteString(ev.Delta)
				if !publish() {
					return
				}
			case unifiedllm.StreamError:
				emit(Update{Err: ev.Error})
				return
			case unifiedllm.StreamFinish:
				// Adapters that buffer report the full text only here.
				if ev.Text != "" && ev.Text != text.String() {
					text.Reset()
					text.WriteString(ev.Text)
					publish()
				}
				return
			}
		}
	}
}
