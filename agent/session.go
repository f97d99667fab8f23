package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/martinemde/mojocode/codegen"
	"github.com/martinemde/mojocode/internal/observability"
	"github.com/martinemde/mojocode/mcpclient"
)

var (
	// ErrSessionClosed is returned for requests made after Close.
	ErrSessionClosed = errors.New("agent: session closed")
	// ErrTurnInProgress is returned when a request arrives while another one
	// is still being processed.
	ErrTurnInProgress = errors.New("agent: turn in progress")
)

// State is the lifecycle state of a Session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateStreaming     State = "streaming"
	StateClosed        State = "closed"
)

// Config holds what a Session needs from the host.
type Config struct {
	Endpoints Endpoints
	Model     codegen.Streamer
	Logger    *slog.Logger
}

// Session is the per-client orchestrator. It owns the tool inventory, the
// sandbox id, and the conversation history.
type Session struct {
	id      string
	cfg     Config
	sandbox *Sandbox
	history *History
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	sandboxID string
	initData  map[string]any
	tools     []mcpclient.Tool
}

// NewSession creates an uninitialized session.
func NewSession(cfg Config) *Session {
	id := uuid.NewString()
	if cfg.Logger == nil {
		cfg.Logger = observability.Logger()
	}
	logger := cfg.Logger.With("session_id", id)
	return &Session{
		id:      id,
		cfg:     cfg,
		sandbox: NewSandbox(cfg.Endpoints, logger),
		history: &History{},
		logger:  logger,
		state:   StateUninitialized,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SandboxID returns the sandbox id assigned at initialization, or "" before.
func (s *Session) SandboxID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sandboxID
}

// Tools returns a copy of the tool inventory.
func (s *Session) Tools() []mcpclient.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mcpclient.Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// History returns a copy of the conversation history.
func (s *Session) History() []Entry {
	return s.history.Snapshot()
}

// transition moves from one of the allowed states to next.
func (s *Session) transition(next State, allowed ...State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range allowed {
		if s.state == st {
			s.state = next
			return nil
		}
	}
	switch s.state {
	case StateClosed:
		return ErrSessionClosed
	case StateInitializing, StateStreaming:
		return ErrTurnInProgress
	}
	return fmt.Errorf("agent: cannot move from %s to %s", s.state, next)
}

// finish returns the session to Ready unless it was closed meanwhile.
func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = StateReady
	}
}

// Init loads the tool inventory and creates the sandbox, in that order, and
// returns the init response. Both steps degrade rather than fail, so Init
// only errors when the session is closed or busy. Calling Init again reloads
// the tools but keeps the sandbox.
func (s *Session) Init(ctx context.Context) (Message, error) {
	if err := s.transition(StateInitializing, StateUninitialized, StateReady); err != nil {
		return Message{}, err
	}
	defer s.finish()

	s.initialize(ctx)
	return s.initMessage(), nil
}

func (s *Session) initialize(ctx context.Context) {
	start := time.Now()
	tools := LoadTools(ctx, s.cfg.Endpoints, s.logger)

	s.mu.Lock()
	s.tools = tools
	created := s.sandboxID != ""
	s.mu.Unlock()

	if !created {
		id, data := s.sandbox.Create(ctx)
		s.mu.Lock()
		s.sandboxID, s.initData = id, data
		s.mu.Unlock()
	}

	s.logger.Info("session initialized",
		"sandbox_id", s.SandboxID(),
		"tools", len(tools),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Session) initMessage() Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make(map[string]any, len(s.initData)+1)
	for k, v := range s.initData {
		data[k] = v
	}
	data["sandbox_id"] = s.sandboxID
	data["tools"] = ToolNames(s.tools)
	return NewMessage(TypeInit, data)
}

// SendFeedback runs one feedback turn and sends its envelopes to emit:
// update_in_progress, the plan messages, one update_file per distinct path,
// and update_completed after the code has been written back. An
// uninitialized session is initialized first.
//
// A model failure or cancellation ends the turn with an error and without
// writing anything to the sandbox.
func (s *Session) SendFeedback(ctx context.Context, feedback string, emit Sink) error {
	if s.cfg.Model == nil {
		return errors.New("agent: no model configured")
	}
	if s.State() == StateUninitialized {
		if _, err := s.Init(ctx); err != nil {
			return err
		}
	}
	if err := s.transition(StateStreaming, StateReady); err != nil {
		return err
	}
	defer s.finish()

	start := time.Now()
	logger := s.logger.With("turn", uuid.NewString())

	if err := emit(NewMessage(TypeUpdateInProgress, nil)); err != nil {
		return err
	}

	sandboxID := s.SandboxID()
	code, manifest := s.sandbox.LoadCode(ctx, sandboxID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := s.cfg.Model.Stream(ctx, codegen.Request{
		History:  s.history.Messages(),
		Feedback: feedback,
		Files:    code.Files(),
		Manifest: manifest,
	})
	if err != nil {
		logger.Error("model stream failed to start", "error", err)
		return fmt.Errorf("agent: start model stream: %w", err)
	}

	t := newTurn(feedback, s.history, emit)
	if err := t.run(ctx, updates); err != nil {
		logger.Warn("turn abandoned",
			"snapshots", t.snapshots,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return err
	}

	s.sandbox.WriteCode(ctx, sandboxID, t.code)
	if err := emit(NewMessage(TypeUpdateCompleted, nil)); err != nil {
		return err
	}

	logger.Info("turn completed",
		"snapshots", t.snapshots,
		"files", len(t.code),
		"plan_final", t.planFinal,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// LoadCode returns the load_code response for sandboxID, or for the
// session's own sandbox when sandboxID is empty. It leaves history and turn
// state alone.
func (s *Session) LoadCode(ctx context.Context, sandboxID string) (Message, error) {
	if s.State() == StateClosed {
		return Message{}, ErrSessionClosed
	}
	if sandboxID == "" {
		sandboxID = s.SandboxID()
	}
	if sandboxID == "" {
		sandboxID = DefaultSandboxID
	}
	code, manifest := s.sandbox.LoadCode(ctx, sandboxID)
	return NewMessage(TypeLoadCode, map[string]any{
		"sandbox_id":   sandboxID,
		"code_map":     map[string]string(code),
		"package_json": manifest,
	}), nil
}

// CallTool invokes any tool on the primary ("main") or a named auxiliary
// server. Unlike the sandbox operations, failures are returned.
func (s *Session) CallTool(ctx context.Context, server, tool string, args map[string]any) (*mcpclient.Result, error) {
	if s.State() == StateClosed {
		return nil, ErrSessionClosed
	}
	res, err := s.cfg.Endpoints.Call(ctx, server, tool, args)
	if err != nil {
		s.logger.Warn("tool call failed", "endpoint", server, "tool", tool, "error", err)
	}
	return res, err
}

// Handle dispatches one request envelope and sends the replies to emit.
// Requests of unknown type are answered with an empty acknowledgement.
func (s *Session) Handle(ctx context.Context, req Message, emit Sink) error {
	switch req.Type {
	case TypeInit:
		msg, err := s.Init(ctx)
		if err != nil {
			return err
		}
		return emit(msg)
	case TypeUser:
		return s.SendFeedback(ctx, req.Text(), emit)
	case TypeLoadCode:
		msg, err := s.LoadCode(ctx, req.Field("sandbox_id"))
		if err != nil {
			return err
		}
		return emit(msg)
	default:
		s.logger.Debug("unhandled message type", "type", req.Type)
		return emit(EmptyAck())
	}
}

// Close ends the session. Later requests fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	return nil
}
