package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/martinemde/mojocode/mcpclient"
)

// PrimaryServer is the name the primary endpoint answers to in CallTool.
const PrimaryServer = "main"

// Endpoints names the tool servers a session talks to.
type Endpoints struct {
	Primary   mcpclient.Endpoint
	Auxiliary map[string]mcpclient.Endpoint
	// Timeout bounds each connect plus call. Zero leaves only the caller's
	// context.
	Timeout time.Duration
}

// ordered returns the primary endpoint followed by the auxiliary endpoints
// sorted by name. Absent endpoints are kept so callers can skip them.
func (e Endpoints) ordered() []mcpclient.Endpoint {
	primary := e.Primary
	if primary.Name == "" {
		primary.Name = PrimaryServer
	}
	out := []mcpclient.Endpoint{primary}

	names := make([]string, 0, len(e.Auxiliary))
	for name := range e.Auxiliary {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ep := e.Auxiliary[name]
		ep.Name = name
		out = append(out, ep)
	}
	return out
}

// Lookup resolves a server name to its endpoint. "main" is the primary.
func (e Endpoints) Lookup(server string) (mcpclient.Endpoint, error) {
	var ep mcpclient.Endpoint
	if server == PrimaryServer || server == "" {
		ep = e.Primary
		ep.Name = PrimaryServer
	} else {
		aux, ok := e.Auxiliary[server]
		if !ok {
			return mcpclient.Endpoint{}, fmt.Errorf("agent: unknown tool server %q", server)
		}
		ep = aux
		ep.Name = server
	}
	if ep.Absent() {
		return mcpclient.Endpoint{}, fmt.Errorf("agent: no url configured for %s tool server", ep.Name)
	}
	return ep, nil
}

func (e Endpoints) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.Timeout)
}

// call opens a session on ep, invokes tool, and releases the session before
// returning.
func (e Endpoints) call(ctx context.Context, ep mcpclient.Endpoint, tool string, args map[string]any) (*mcpclient.Result, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	var result *mcpclient.Result
	err := mcpclient.WithSession(ctx, ep, func(ctx context.Context, s *mcpclient.Session) error {
		var err error
		result, err = s.CallTool(ctx, tool, args)
		return err
	})
	return result, err
}

// Call invokes tool on the named server.
func (e Endpoints) Call(ctx context.Context, server, tool string, args map[string]any) (*mcpclient.Result, error) {
	ep, err := e.Lookup(server)
	if err != nil {
		return nil, err
	}
	return e.call(ctx, ep, tool, args)
}

// LoadTools lists the tools of every configured endpoint: the primary first,
// then the auxiliary endpoints by name. Each endpoint is tried independently
// and a failing one is logged and left out. An absent primary contributes
// nothing.
func LoadTools(ctx context.Context, eps Endpoints, logger *slog.Logger) []mcpclient.Tool {
	if logger == nil {
		logger = slog.Default()
	}
	endpoints := eps.ordered()
	results := make([][]mcpclient.Tool, len(endpoints))

	var wg sync.WaitGroup
	for i, ep := range endpoints {
		if ep.Absent() {
			continue
		}
		wg.Add(1)
		go func(idx int, ep mcpclient.Endpoint) {
			defer wg.Done()
			tools, err := listTools(ctx, eps, ep)
			if err != nil {
				logger.Warn("tool listing failed", "endpoint", ep.Name, "connectivity", mcpclient.IsConnectivity(err), "error", err)
				return
			}
			logger.Debug("loaded tools", "endpoint", ep.Name, "count", len(tools))
			results[idx] = tools
		}(i, ep)
	}
	wg.Wait()

	var all []mcpclient.Tool
	for _, tools := range results {
		all = append(all, tools...)
	}
	if all == nil {
		all = []mcpclient.Tool{}
	}
	return all
}

func listTools(ctx context.Context, eps Endpoints, ep mcpclient.Endpoint) ([]mcpclient.Tool, error) {
	ctx, cancel := eps.bound(ctx)
	defer cancel()

	var tools []mcpclient.Tool
	err := mcpclient.WithSession(ctx, ep, func(ctx context.Context, s *mcpclient.Session) error {
		var err error
		tools, err = s.ListTools(ctx)
		return err
	})
	return tools, err
}

// ToolNames returns the names of tools in order.
func ToolNames(tools []mcpclient.Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}
