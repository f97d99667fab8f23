// Package mcpclient is a thin scoped client for Model Context Protocol tool
// servers. A Session is acquired with Dial, used to list or call tools, and
// released with Close; WithSession wraps that lifecycle so the connection is
// released on every exit path.
package mcpclient

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	clientName    = "mojocode-agent"
	clientVersion = "0.1.0"
)

// Transport selects the MCP wire transport for an endpoint.
type Transport string

const (
	TransportStreamable Transport = "streamable"
	TransportSSE        Transport = "sse"
)

// Endpoint addresses one tool server. An Endpoint with an empty URL is
// absent.
type Endpoint struct {
	Name      string    `yaml:"-" json:"name"`
	URL       string    `yaml:"url" json:"url"`
	Transport Transport `yaml:"transport,omitempty" json:"transport,omitempty"`
}

// Absent reports whether the endpoint has no address configured.
func (e Endpoint) Absent() bool { return e.URL == "" }

// Tool describes one tool exposed by an endpoint.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	Server      string         `json:"server"`
}

// Session is an initialized connection to one endpoint. It must not be used
// after Close.
type Session struct {
	endpoint Endpoint
	client   *client.Client
	mu       sync.Mutex
	closed   bool
}

// Dial connects to ep and performs the MCP initialize handshake.
func Dial(ctx context.Context, ep Endpoint) (*Session, error) {
	if ep.Absent() {
		return nil, &ConnectionError{ToolError{Endpoint: ep.Name, Message: "no url configured"}}
	}

	var (
		c   *client.Client
		err error
	)
	switch ep.Transport {
	case TransportSSE:
		c, err = client.NewSSEMCPClient(ep.URL)
	default:
		c, err = client.NewStreamableHttpClient(ep.URL)
	}
	if err != nil {
		return nil, &ConnectionError{ToolError{Endpoint: ep.Name, Message: "create client", Cause: err}}
	}

	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, classify(err, ep.Name, "")
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, classify(err, ep.Name, "")
	}

	return &Session{endpoint: ep, client: c}, nil
}

// WithSession dials ep, runs fn, and closes the session whether fn succeeds,
// fails, or ctx is cancelled.
func WithSession(ctx context.Context, ep Endpoint, fn func(ctx context.Context, s *Session) error) error {
	s, err := Dial(ctx, ep)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ListTools returns the tools exposed by the endpoint in server order.
func (s *Session) ListTools(ctx context.Context) ([]Tool, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	res, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, classify(err, s.endpoint.Name, "")
	}
	tools := make([]Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: inputSchema(t),
			Server:      s.endpoint.Name,
		})
	}
	return tools, nil
}

// CallTool invokes the named tool. A tool that reports failure yields a
// *RemoteError carrying the tool's own message along with its Result. A
// request the endpoint rejects with a protocol error also yields a
// *RemoteError, but with a nil Result.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*Result, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	if args == nil {
		args = map[string]any{}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := s.client.CallTool(ctx, req)
	if err != nil {
		return nil, classify(err, s.endpoint.Name, name)
	}

	result := newResult(res)
	if result.IsError {
		return result, &RemoteError{ToolError{Endpoint: s.endpoint.Name, Tool: name, Message: result.Text()}}
	}
	return result, nil
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.client.Close()
}

func inputSchema(t mcp.Tool) map[string]any {
	raw := t.RawInputSchema
	if len(raw) == 0 {
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil
		}
		raw = b
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	return schema
}
