// Package mcptest starts in-process MCP tool servers for tests.
package mcptest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/martinemde/mojocode/mcpclient"
)

// HandlerFunc handles one tool call. The returned value is JSON encoded into
// a text result; a returned error becomes an error result.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool is a tool served by a test server.
type Tool struct {
	Name        string
	Description string
	Handle      HandlerFunc
	// Fail, when set, is returned from the server handler itself so the call
	// fails with a protocol error instead of an error result.
	Fail error
}

// Start serves tools over SSE until the test ends and returns the endpoint.
func Start(t testing.TB, name string, tools ...Tool) mcpclient.Endpoint {
	t.Helper()

	s := server.NewMCPServer(name, "test")
	for _, tool := range tools {
		handle, fail := tool.Handle, tool.Fail
		s.AddTool(
			mcp.NewTool(tool.Name, mcp.WithDescription(tool.Description)),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				if fail != nil {
					return nil, fail
				}
				if handle == nil {
					return mcp.NewToolResultText("{}"), nil
				}
				out, err := handle(ctx, req.GetArguments())
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				if text, ok := out.(string); ok {
					return mcp.NewToolResultText(text), nil
				}
				b, err := json.Marshal(out)
				if err != nil {
					return nil, err
				}
				return mcp.NewToolResultText(string(b)), nil
			},
		)
	}

	ts := server.NewTestServer(s)
	t.Cleanup(ts.Close)

	return mcpclient.Endpoint{
		Name:      name,
		URL:       ts.URL + "/sse",
		Transport: mcpclient.TransportSSE,
	}
}

// Hanging returns an endpoint that accepts connections and never answers.
// Requests are released when the test ends.
func Hanging(t testing.TB, name string) mcpclient.Endpoint {
	t.Helper()

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	return mcpclient.Endpoint{
		Name:      name,
		URL:       ts.URL + "/sse",
		Transport: mcpclient.TransportSSE,
	}
}

// Unreachable returns an endpoint that refuses connections.
func Unreachable(name string) mcpclient.Endpoint {
	return mcpclient.Endpoint{
		Name:      name,
		URL:       "http://127.0.0.1:1/sse",
		Transport: mcpclient.TransportSSE,
	}
}

// Static returns a handler that always answers with v.
func Static(v any) HandlerFunc {
	return func(context.Context, map[string]any) (any, error) { return v, nil }
}
