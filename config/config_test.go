package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/martinemde/mojocode/mcpclient"
)

// clearEnv unsets every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"MOJOCODE_LISTEN", "MOJOCODE_LOG_LEVEL", "MOJOCODE_MCP_URL", "REDIS_URL",
		"MOJOCODE_PROVIDER", "MOJOCODE_MODEL", "MOJOCODE_TOOL_TIMEOUT", "MOJOCODE_MAX_TOKENS",
		"MOJOCODE_ALLOWED_ORIGINS", "MOJOCODE_API_KEY",
	}
	for k := range auxiliaryEnv {
		keys = append(keys, k)
	}
	for _, k := range providerKeyEnv {
		keys = append(keys, k)
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mojocode.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.Model.Provider != "openai" || cfg.Model.MaxTokens != 8192 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if time.Duration(cfg.ToolTimeout) != 30*time.Second {
		t.Errorf("tool_timeout = %v", time.Duration(cfg.ToolTimeout))
	}
	eps := cfg.Endpoints()
	if !eps.Primary.Absent() || len(eps.Auxiliary) != 0 {
		t.Errorf("expected no endpoints, got %+v", eps)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
listen: ":9000"
log_level: debug
primary:
  url: http://sandbox.internal/mcp
auxiliary:
  context7:
    url: http://context7.internal/sse
    transport: sse
tool_timeout: 5s
model:
  provider: anthropic
  name: claude-sonnet-4-5
  temperature: 0.5
redis_url: redis://localhost:6379/0
allowed_origins: ["https://app.mojocode.dev"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.LogLevel != "debug" {
		t.Errorf("listen/log_level = %q/%q", cfg.Listen, cfg.LogLevel)
	}
	if cfg.Primary.URL != "http://sandbox.internal/mcp" || cfg.Primary.Transport != mcpclient.TransportStreamable || cfg.Primary.Name != "main" {
		t.Errorf("primary = %+v", cfg.Primary)
	}
	ctx7 := cfg.Auxiliary["context7"]
	if ctx7.Name != "context7" || ctx7.Transport != mcpclient.TransportSSE {
		t.Errorf("context7 = %+v", ctx7)
	}
	if cfg.Model.Provider != "anthropic" || cfg.Model.MaxTokens != 8192 || cfg.Model.Temperature != 0.5 {
		t.Errorf("model = %+v", cfg.Model)
	}
	if got := cfg.Endpoints().Timeout; got != 5*time.Second {
		t.Errorf("timeout = %v", got)
	}
	if len(cfg.AllowedOrigins) != 1 {
		t.Errorf("allowed_origins = %v", cfg.AllowedOrigins)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "primary:\n  url: http://from-file/mcp\nauxiliary:\n  exa:\n    url: http://exa-file/sse\n    transport: sse\n")
	t.Setenv("MOJOCODE_MCP_URL", "http://from-env/mcp")
	t.Setenv("EXA_MCP_URL", "http://exa-env/sse")
	t.Setenv("THINKING_MCP_URL", "http://thinking-env/mcp")
	t.Setenv("MOJOCODE_TOOL_TIMEOUT", "250ms")
	t.Setenv("MOJOCODE_ALLOWED_ORIGINS", "https://a.test, https://b.test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Primary.URL != "http://from-env/mcp" {
		t.Errorf("primary url = %q", cfg.Primary.URL)
	}
	if exa := cfg.Auxiliary["exa"]; exa.URL != "http://exa-env/sse" || exa.Transport != mcpclient.TransportSSE {
		t.Errorf("exa = %+v", exa)
	}
	if names := strings.Join(cfg.AuxiliaryNames(), ","); names != "exa,thinking" {
		t.Errorf("auxiliary names = %s", names)
	}
	if time.Duration(cfg.ToolTimeout) != 250*time.Millisecond {
		t.Errorf("tool_timeout = %v", time.Duration(cfg.ToolTimeout))
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.test" {
		t.Errorf("allowed origins = %v", cfg.AllowedOrigins)
	}
}

func TestAPIKeyFromProviderEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOJOCODE_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.APIKey != "sk-ant" {
		t.Errorf("api key = %q", cfg.Model.APIKey)
	}

	t.Setenv("MOJOCODE_API_KEY", "sk-explicit")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.APIKey != "sk-explicit" {
		t.Errorf("api key = %q", cfg.Model.APIKey)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{name: "bad duration", body: "tool_timeout: soon\n", want: "soon"},
		{name: "bad transport", body: "primary:\n  url: http://x\n  transport: grpc\n", want: "unknown transport"},
		{name: "bad level", body: "log_level: chatty\n", want: "unknown log level"},
		{name: "reserved aux name", body: "auxiliary:\n  main:\n    url: http://x\n", want: "may not be named"},
		{name: "bad yaml", body: "listen: [\n", want: "parse"},
		{name: "bad env timeout", env: map[string]string{"MOJOCODE_TOOL_TIMEOUT": "fast"}, want: "MOJOCODE_TOOL_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
