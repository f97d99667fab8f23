package agent

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/martinemde/mojocode/internal/mcptest"
	"github.com/martinemde/mojocode/internal/observability"
	"github.com/martinemde/mojocode/mcpclient"
)

func TestLoadToolsEmpty(t *testing.T) {
	tools := LoadTools(context.Background(), Endpoints{}, observability.Discard)
	if tools == nil || len(tools) != 0 {
		t.Errorf("expected empty non-nil inventory, got %#v", tools)
	}
}

func TestLoadToolsOrder(t *testing.T) {
	primary := mcptest.Start(t, PrimaryServer, mcptest.Tool{Name: "create_app_environment"}, mcptest.Tool{Name: "load_code"})
	exa := mcptest.Start(t, "exa", mcptest.Tool{Name: "web_search"})
	ctx7 := mcptest.Start(t, "context7", mcptest.Tool{Name: "resolve_library_id"}, mcptest.Tool{Name: "get_library_docs"})

	eps := Endpoints{
		Primary:   primary,
		Auxiliary: map[string]mcpclient.Endpoint{"exa": exa, "context7": ctx7},
	}
	tools := LoadTools(context.Background(), eps, observability.Discard)

	var servers []string
	for _, tool := range tools {
		servers = append(servers, tool.Server)
	}
	want := []string{"main", "main", "context7", "context7", "exa"}
	if !reflect.DeepEqual(servers, want) {
		t.Errorf("servers = %v, want %v", servers, want)
	}
}

func TestLoadToolsToleratesFailingEndpoints(t *testing.T) {
	thinking := mcptest.Start(t, "thinking", mcptest.Tool{Name: "sequentialthinking"})
	eps := Endpoints{
		Primary: mcptest.Unreachable(PrimaryServer),
		Auxiliary: map[string]mcpclient.Endpoint{
			"exa":      mcptest.Unreachable("exa"),
			"thinking": thinking,
		},
	}

	tools := LoadTools(context.Background(), eps, observability.Discard)
	if got := ToolNames(tools); !reflect.DeepEqual(got, []string{"sequentialthinking"}) {
		t.Errorf("tools = %v", got)
	}
}

func TestLoadToolsDoesNotWaitOnHangingEndpoint(t *testing.T) {
	primary := mcptest.Start(t, PrimaryServer, mcptest.Tool{Name: "p1"})
	eps := Endpoints{
		Primary:   primary,
		Auxiliary: map[string]mcpclient.Endpoint{"exa": mcptest.Hanging(t, "exa")},
		Timeout:   300 * time.Millisecond,
	}

	start := time.Now()
	tools := LoadTools(context.Background(), eps, observability.Discard)
	elapsed := time.Since(start)

	if got := ToolNames(tools); !reflect.DeepEqual(got, []string{"p1"}) {
		t.Errorf("tools = %v", got)
	}
	if elapsed > 3*time.Second {
		t.Errorf("LoadTools took %v with a hanging endpoint", elapsed)
	}
}

func TestLoadToolsAbsentPrimary(t *testing.T) {
	aux := mcptest.Start(t, "exa", mcptest.Tool{Name: "web_search"})
	eps := Endpoints{Auxiliary: map[string]mcpclient.Endpoint{"exa": aux}}

	tools := LoadTools(context.Background(), eps, observability.Discard)
	if got := ToolNames(tools); !reflect.DeepEqual(got, []string{"web_search"}) {
		t.Errorf("tools = %v", got)
	}
}

func TestEndpointsLookup(t *testing.T) {
	eps := Endpoints{
		Primary:   mcpclient.Endpoint{URL: "http://primary.test/mcp"},
		Auxiliary: map[string]mcpclient.Endpoint{"exa": {URL: "http://exa.test/mcp"}, "thinking": {}},
	}

	tests := []struct {
		server  string
		wantURL string
		wantErr bool
	}{
		{server: "main", wantURL: "http://primary.test/mcp"},
		{server: "", wantURL: "http://primary.test/mcp"},
		{server: "exa", wantURL: "http://exa.test/mcp"},
		{server: "thinking", wantErr: true},
		{server: "nope", wantErr: true},
	}
	for _, tt := range tests {
		ep, err := eps.Lookup(tt.server)
		if (err != nil) != tt.wantErr {
			t.Errorf("Lookup(%q) err = %v, wantErr %v", tt.server, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && ep.URL != tt.wantURL {
			t.Errorf("Lookup(%q) url = %q, want %q", tt.server, ep.URL, tt.wantURL)
		}
	}
}

func TestEndpointsCall(t *testing.T) {
	aux := mcptest.Start(t, "context7", mcptest.Tool{
		Name: "resolve_library_id",
		Handle: func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"id": "/facebook/" + args["libraryName"].(string)}, nil
		},
	})
	eps := Endpoints{Auxiliary: map[string]mcpclient.Endpoint{"context7": aux}}

	res, err := eps.Call(context.Background(), "context7", "resolve_library_id", map[string]any{"libraryName": "react"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct{ ID string }
	if err := res.Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ID != "/facebook/react" {
		t.Errorf("id = %q", out.ID)
	}
}
