package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/martinemde/mojocode/agent"
	"github.com/martinemde/mojocode/internal/observability"
)

// TypeError carries a failure back to the client as {"error": "..."}.
const TypeError agent.MessageType = "error"

const (
	writeWait      = 10 * time.Second
	maxFrameSize   = 1 << 20
	requestBacklog = 16
)

// Server is an http.Handler serving /ws and /health.
type Server struct {
	cfg            agent.Config
	relay          Relay
	logger         *slog.Logger
	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
	mux            *http.ServeMux

	baseCtx context.Context
	stop    context.CancelFunc

	mu     sync.Mutex // guards closed and conns.Add against Close
	closed bool
	conns  sync.WaitGroup
	active atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithRelay mirrors every emitted envelope to r.
func WithRelay(r Relay) Option {
	return func(s *Server) { s.relay = r }
}

// WithAllowedOrigins restricts browser origins. An empty list allows all.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		for _, o := range origins {
			s.allowedOrigins[o] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a Server that builds each connection's session from cfg.
func NewServer(cfg agent.Config, opts ...Option) *Server {
	s := &Server{
		cfg:            cfg,
		logger:         observability.Logger(),
		allowedOrigins: make(map[string]bool),
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Logger == nil {
		s.cfg.Logger = s.logger
	}
	s.baseCtx, s.stop = context.WithCancel(context.Background())
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Active returns the number of open connections.
func (s *Server) Active() int64 { return s.active.Load() }

// Close cancels every in-flight turn, closes all connections and waits for
// their handlers to return. Upgrades after Close are refused.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()
	s.conns.Wait()
	return nil
}

// track registers a connection unless the server is closed.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients
	}
	return s.allowedOrigins[origin]
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.conns.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.active.Add(1)
	defer s.active.Add(-1)

	c := &connection{
		server:  s,
		conn:    conn,
		session: agent.NewSession(s.cfg),
	}
	c.logger = s.logger.With("session_id", c.session.ID(), "remote", r.RemoteAddr)
	c.serve()
}

// connection is one websocket client and its session.
type connection struct {
	server  *Server
	conn    *websocket.Conn
	session *agent.Session
	logger  *slog.Logger
	writeMu sync.Mutex
}

func (c *connection) serve() {
	ctx, cancel := context.WithCancel(observability.WithSessionID(c.server.baseCtx, c.session.ID()))
	defer cancel()
	defer c.session.Close()

	// Closing the socket unblocks the reader when the server shuts down.
	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	c.logger.Info("client connected")
	start := time.Now()
	defer func() {
		c.logger.Info("client disconnected", "elapsed_ms", time.Since(start).Milliseconds())
	}()

	requests := make(chan []byte, requestBacklog)
	go c.read(ctx, cancel, requests)

	for raw := range requests {
		var req agent.Message
		if err := json.Unmarshal(raw, &req); err != nil {
			c.logger.Warn("invalid frame", "error", err)
			c.writeError(ctx, fmt.Errorf("invalid message: %w", err))
			continue
		}
		if err := c.session.Handle(ctx, req, c.sink(ctx)); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("request failed", "type", req.Type, "error", err)
			c.writeError(ctx, err)
		}
	}
}

// read forwards frames until the connection fails, then cancels the
// connection context so an in-flight turn is abandoned.
func (c *connection) read(ctx context.Context, cancel context.CancelFunc, requests chan<- []byte) {
	defer close(requests)
	defer cancel()
	c.conn.SetReadLimit(maxFrameSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}
		select {
		case requests <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (c *connection) sink(ctx context.Context) agent.Sink {
	return func(msg agent.Message) error {
		if err := c.write(msg); err != nil {
			return err
		}
		if c.server.relay != nil && !msg.IsEmpty() {
			if err := c.server.relay.Publish(ctx, c.session.ID(), msg); err != nil {
				c.logger.Warn("relay publish failed", "type", msg.Type, "error", err)
			}
		}
		return nil
	}
}

func (c *connection) write(msg agent.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *connection) writeError(ctx context.Context, err error) {
	_ = c.sink(ctx)(agent.NewMessage(TypeError, map[string]any{"error": err.Error()}))
}
