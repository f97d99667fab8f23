package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/martinemde/mojocode/codegen"
	"github.com/martinemde/mojocode/internal/mcptest"
	"github.com/martinemde/mojocode/internal/observability"
	"github.com/martinemde/mojocode/mcpclient"
)

// scriptedModel replays a fixed snapshot sequence.
type scriptedModel struct {
	snapshots []codegen.Snapshot
	streamErr error // sent after the snapshots
	openErr   error
	hang      bool // keep the stream open until ctx is done

	mu   sync.Mutex
	reqs []codegen.Request
}

func (m *scriptedModel) Stream(ctx context.Context, req codegen.Request) (<-chan codegen.Update, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}

	ch := make(chan codegen.Update)
	go func() {
		defer close(ch)
		send := func(u codegen.Update) bool {
			select {
			case ch <- u:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, snap := range m.snapshots {
			if !send(codegen.Update{Snapshot: snap}) {
				return
			}
		}
		if m.streamErr != nil {
			send(codegen.Update{Err: m.streamErr})
			return
		}
		if m.hang {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (m *scriptedModel) requests() []codegen.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]codegen.Request(nil), m.reqs...)
}

// recorder collects emitted envelopes.
type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) sink(m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorder) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func (r *recorder) types() []MessageType {
	var out []MessageType
	for _, m := range r.messages() {
		out = append(out, m.Type)
	}
	return out
}

func (r *recorder) count(t MessageType) int {
	n := 0
	for _, m := range r.messages() {
		if m.Type == t {
			n++
		}
	}
	return n
}

// fakeSandbox serves the sandbox tools and records writes.
type fakeSandbox struct {
	id       string
	code     map[string]any
	manifest map[string]any

	mu     sync.Mutex
	writes []map[string]any
}

func (f *fakeSandbox) tools() []mcptest.Tool {
	return []mcptest.Tool{
		{
			Name:   ToolCreateEnvironment,
			Handle: mcptest.Static(map[string]any{"sandbox_id": f.id, "preview_url": "https://preview.test/" + f.id}),
		},
		{
			Name: ToolLoadCode,
			Handle: func(context.Context, map[string]any) (any, error) {
				return []any{f.code, f.manifest}, nil
			},
		},
		{
			Name: ToolEditCode,
			Handle: func(_ context.Context, args map[string]any) (any, error) {
				f.mu.Lock()
				defer f.mu.Unlock()
				f.writes = append(f.writes, args)
				return map[string]any{"ok": true}, nil
			},
		},
	}
}

func (f *fakeSandbox) written() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.writes...)
}

func (f *fakeSandbox) start(t *testing.T) mcpclient.Endpoint {
	t.Helper()
	return mcptest.Start(t, PrimaryServer, f.tools()...)
}

func newTestSession(eps Endpoints, model codegen.Streamer) *Session {
	return NewSession(Config{Endpoints: eps, Model: model, Logger: observability.Discard})
}

func snap(state codegen.PlanState, plan string, files ...codegen.File) codegen.Snapshot {
	return codegen.Snapshot{Plan: codegen.Plan{State: state, Value: plan}, Files: files}
}

func file(path, content string) codegen.File {
	return codegen.File{Path: path, Content: content}
}
