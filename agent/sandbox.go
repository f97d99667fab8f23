package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/martinemde/mojocode/codegen"
	"github.com/martinemde/mojocode/mcpclient"
)

// DefaultSandboxID stands in for the sandbox when the environment could not
// be created.
const DefaultSandboxID = "default"

// Sandbox tools exposed by the primary endpoint.
const (
	ToolCreateEnvironment = "create_app_environment"
	ToolLoadCode          = "load_code"
	ToolEditCode          = "edit_code"
)

var errNoPrimary = errors.New("no primary endpoint configured")

// CodeMap maps sandbox-relative paths to full file content.
type CodeMap map[string]string

// Files returns the map as codegen files sorted by path.
func (c CodeMap) Files() []codegen.File {
	files := make([]codegen.File, 0, len(c))
	for path, content := range c {
		files = append(files, codegen.File{Path: path, Content: content})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// Sandbox manages the remote code sandbox through the primary endpoint.
// Every operation degrades to a safe default on failure and reports the
// failure only in the log.
type Sandbox struct {
	endpoints Endpoints
	logger    *slog.Logger
}

// NewSandbox returns a Sandbox that reaches the primary endpoint of eps.
func NewSandbox(eps Endpoints, logger *slog.Logger) *Sandbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sandbox{endpoints: eps, logger: logger}
}

func (s *Sandbox) call(ctx context.Context, tool string, args map[string]any, v any) error {
	if s.endpoints.Primary.Absent() {
		return errNoPrimary
	}
	ep := s.endpoints.Primary
	if ep.Name == "" {
		ep.Name = PrimaryServer
	}
	res, err := s.endpoints.call(ctx, ep, tool, args)
	if err != nil {
		return err
	}
	return res.Decode(v)
}

// Create asks the primary endpoint for a new app environment and returns its
// id along with everything the endpoint reported about it. The id is
// DefaultSandboxID when creation fails or the response carries none.
func (s *Sandbox) Create(ctx context.Context) (string, map[string]any) {
	var env map[string]any
	if err := s.call(ctx, ToolCreateEnvironment, map[string]any{}, &env); err != nil {
		s.logger.Warn("sandbox creation failed, using default", "tool", ToolCreateEnvironment,
			"connectivity", mcpclient.IsConnectivity(err), "error", err)
		return DefaultSandboxID, map[string]any{"sandbox_id": DefaultSandboxID}
	}
	if env == nil {
		env = map[string]any{}
	}
	id, _ := env["sandbox_id"].(string)
	if id == "" {
		s.logger.Warn("sandbox creation returned no id, using default", "tool", ToolCreateEnvironment)
		id = DefaultSandboxID
	}
	env["sandbox_id"] = id
	return id, env
}

// LoadCode returns the sandbox's files and package manifest. Both are empty
// when the sandbox cannot be read.
func (s *Sandbox) LoadCode(ctx context.Context, sandboxID string) (CodeMap, map[string]any) {
	var raw json.RawMessage
	err := s.call(ctx, ToolLoadCode, map[string]any{"sandbox_id": sandboxID}, &raw)
	if err == nil {
		var code CodeMap
		var manifest map[string]any
		if code, manifest, err = decodeCode(raw); err == nil {
			return code, manifest
		}
	}
	s.logger.Warn("loading code failed, using empty code map", "tool", ToolLoadCode, "sandbox_id", sandboxID,
		"connectivity", mcpclient.IsConnectivity(err), "error", err)
	return CodeMap{}, map[string]any{}
}

// decodeCode accepts the pair form [code_map, manifest] and the object form
// {"code_map": ..., "package_json": ...}.
func decodeCode(raw json.RawMessage) (CodeMap, map[string]any, error) {
	var (
		code     CodeMap
		manifest map[string]any
	)

	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err == nil {
		if len(pair) == 0 {
			return nil, nil, errors.New("empty load_code result")
		}
		if err := json.Unmarshal(pair[0], &code); err != nil {
			return nil, nil, fmt.Errorf("decode code map: %w", err)
		}
		if len(pair) > 1 {
			if err := json.Unmarshal(pair[1], &manifest); err != nil {
				return nil, nil, fmt.Errorf("decode manifest: %w", err)
			}
		}
	} else {
		var obj struct {
			CodeMap     CodeMap        `json:"code_map"`
			PackageJSON map[string]any `json:"package_json"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, nil, fmt.Errorf("decode load_code result: %w", err)
		}
		code, manifest = obj.CodeMap, obj.PackageJSON
	}

	if code == nil {
		code = CodeMap{}
	}
	if manifest == nil {
		manifest = map[string]any{}
	}
	return code, manifest, nil
}

// WriteCode writes code back to the sandbox and returns the endpoint's
// confirmation, or an empty map when the write failed.
func (s *Sandbox) WriteCode(ctx context.Context, sandboxID string, code CodeMap) map[string]any {
	if code == nil {
		code = CodeMap{}
	}
	var confirmation any
	err := s.call(ctx, ToolEditCode, map[string]any{
		"sandbox_id": sandboxID,
		"code_map":   map[string]string(code),
	}, &confirmation)
	if err != nil {
		s.logger.Warn("writing code failed", "tool", ToolEditCode, "sandbox_id", sandboxID, "files", len(code),
			"connectivity", mcpclient.IsConnectivity(err), "error", err)
		return map[string]any{}
	}
	switch c := confirmation.(type) {
	case map[string]any:
		return c
	case nil:
		return map[string]any{}
	default:
		return map[string]any{"result": c}
	}
}
