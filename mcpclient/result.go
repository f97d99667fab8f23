package mcpclient

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Result is the text payload of a tool call.
type Result struct {
	Texts   []string
	IsError bool
}

func newResult(res *mcp.CallToolResult) *Result {
	r := &Result{IsError: res.IsError}
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			r.Texts = append(r.Texts, tc.Text)
		case *mcp.TextContent:
			r.Texts = append(r.Texts, tc.Text)
		}
	}
	return r
}

// Text returns the first text part, or "" when there is none.
func (r *Result) Text() string {
	if r == nil || len(r.Texts) == 0 {
		return ""
	}
	return r.Texts[0]
}

// Decode unmarshals the first text part as JSON into v.
func (r *Result) Decode(v any) error {
	text := r.Text()
	if text == "" {
		return errors.New("mcpclient: empty tool result")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("mcpclient: decode tool result: %w", err)
	}
	return nil
}
