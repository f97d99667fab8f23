package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSessionClosed is returned by calls made on a released Session.
var ErrSessionClosed = errors.New("mcpclient: session closed")

// ToolError is the base type for tool-invocation failures.
type ToolError struct {
	Endpoint string
	Tool     string
	Message  string
	Cause    error
}

func (e *ToolError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Endpoint)
	if e.Tool != "" {
		sb.WriteString("/" + e.Tool)
	}
	sb.WriteString(": " + e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// ConnectionError means the endpoint was absent, unreachable, or rejected
// the handshake.
type ConnectionError struct{ ToolError }

// ToolNotFoundError means the endpoint does not expose the named tool.
type ToolNotFoundError struct{ ToolError }

// InvalidArgumentsError means the endpoint rejected the call arguments.
type InvalidArgumentsError struct{ ToolError }

// RemoteError means the tool ran and reported a failure.
type RemoteError struct{ ToolError }

// TimeoutError means the call did not complete before its deadline.
type TimeoutError struct{ ToolError }

// IsConnectivity reports whether err is a failure to reach the endpoint at
// all, as opposed to a failure reported by a reachable tool.
func IsConnectivity(err error) bool {
	var ce *ConnectionError
	var te *TimeoutError
	return errors.As(err, &ce) || errors.As(err, &te)
}

// classify maps an error from the MCP transport into the typed hierarchy.
func classify(err error, endpoint, tool string) error {
	if err == nil {
		return nil
	}
	base := ToolError{Endpoint: endpoint, Tool: tool, Message: err.Error(), Cause: err}
	if errors.Is(err, context.DeadlineExceeded) {
		base.Message = "deadline exceeded"
		return &TimeoutError{base}
	}
	if errors.Is(err, context.Canceled) {
		base.Message = "cancelled"
		return &ConnectionError{base}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case tool != "" && strings.Contains(lower, "not found"):
		base.Message = "tool not found"
		return &ToolNotFoundError{base}
	case strings.Contains(lower, "invalid param") || strings.Contains(lower, "invalid argument"):
		base.Message = "invalid arguments"
		return &InvalidArgumentsError{base}
	case strings.Contains(lower, "timeout"):
		base.Message = "timed out"
		return &TimeoutError{base}
	case tool == "":
		return &ConnectionError{base}
	default:
		return &RemoteError{base}
	}
}
