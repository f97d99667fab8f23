// Package config loads service configuration from an optional YAML file and
// the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/martinemde/mojocode/agent"
	"github.com/martinemde/mojocode/internal/observability"
	"github.com/martinemde/mojocode/mcpclient"
)

// auxiliaryEnv maps environment variables to the auxiliary server they
// address.
var auxiliaryEnv = map[string]string{
	"THINKING_MCP_URL": "thinking",
	"CONTEXT7_MCP_URL": "context7",
	"EXA_MCP_URL":      "exa",
}

// providerKeyEnv names the conventional API key variable per provider.
var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"groq":      "GROQ_API_KEY",
	"mistral":   "MISTRAL_API_KEY",
	"cohere":    "COHERE_API_KEY",
}

// Duration is a time.Duration written as "30s" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Model configures the code generation model.
type Model struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Config is the service configuration.
type Config struct {
	Listen             string                        `yaml:"listen"`
	LogLevel           string                        `yaml:"log_level"`
	Primary            mcpclient.Endpoint            `yaml:"primary"`
	Auxiliary          map[string]mcpclient.Endpoint `yaml:"auxiliary"`
	ToolTimeout        Duration                      `yaml:"tool_timeout"`
	Model              Model                         `yaml:"model"`
	RedisURL           string                        `yaml:"redis_url"`
	RelayChannelPrefix string                        `yaml:"relay_channel_prefix"`
	AllowedOrigins     []string                      `yaml:"allowed_origins"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Listen:             ":8080",
		LogLevel:           "info",
		Primary:            mcpclient.Endpoint{Transport: mcpclient.TransportStreamable},
		Auxiliary:          map[string]mcpclient.Endpoint{},
		ToolTimeout:        Duration(30 * time.Second),
		RelayChannelPrefix: "response",
		Model: Model{
			Provider:    "openai",
			MaxTokens:   8192,
			Temperature: 0.2,
		},
	}
}

// Load reads path, if non-empty, over the defaults and then applies the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *Config) applyEnv() error {
	c.Listen = getEnv("MOJOCODE_LISTEN", c.Listen)
	c.LogLevel = getEnv("MOJOCODE_LOG_LEVEL", c.LogLevel)
	c.Primary.URL = getEnv("MOJOCODE_MCP_URL", c.Primary.URL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.Model.Provider = getEnv("MOJOCODE_PROVIDER", c.Model.Provider)
	c.Model.Name = getEnv("MOJOCODE_MODEL", c.Model.Name)

	if c.Auxiliary == nil {
		c.Auxiliary = map[string]mcpclient.Endpoint{}
	}
	for key, name := range auxiliaryEnv {
		if url := os.Getenv(key); url != "" {
			ep := c.Auxiliary[name]
			ep.URL = url
			c.Auxiliary[name] = ep
		}
	}

	if v := os.Getenv("MOJOCODE_TOOL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: MOJOCODE_TOOL_TIMEOUT: %w", err)
		}
		c.ToolTimeout = Duration(d)
	}
	if v := os.Getenv("MOJOCODE_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: MOJOCODE_MAX_TOKENS: %w", err)
		}
		c.Model.MaxTokens = n
	}
	if v := os.Getenv("MOJOCODE_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	c.Model.APIKey = getEnv("MOJOCODE_API_KEY", c.Model.APIKey)
	if c.Model.APIKey == "" {
		if key, ok := providerKeyEnv[strings.ToLower(c.Model.Provider)]; ok {
			c.Model.APIKey = os.Getenv(key)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalize fills endpoint names and default transports.
func (c *Config) normalize() {
	c.Primary.Name = agent.PrimaryServer
	if c.Primary.Transport == "" {
		c.Primary.Transport = mcpclient.TransportStreamable
	}
	for name, ep := range c.Auxiliary {
		ep.Name = name
		if ep.Transport == "" {
			ep.Transport = mcpclient.TransportStreamable
		}
		c.Auxiliary[name] = ep
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen must not be empty"))
	}
	if _, err := observability.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.ToolTimeout < 0 {
		errs = append(errs, errors.New("tool_timeout must not be negative"))
	}
	if c.Model.MaxTokens < 0 {
		errs = append(errs, errors.New("model.max_tokens must not be negative"))
	}
	if err := checkTransport(agent.PrimaryServer, c.Primary.Transport); err != nil {
		errs = append(errs, err)
	}
	for _, name := range c.AuxiliaryNames() {
		if name == agent.PrimaryServer {
			errs = append(errs, fmt.Errorf("auxiliary server may not be named %q", name))
		}
		if err := checkTransport(name, c.Auxiliary[name].Transport); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func checkTransport(name string, t mcpclient.Transport) error {
	switch t {
	case "", mcpclient.TransportStreamable, mcpclient.TransportSSE:
		return nil
	}
	return fmt.Errorf("%s: unknown transport %q", name, t)
}

// AuxiliaryNames returns the configured auxiliary server names in order.
func (c *Config) AuxiliaryNames() []string {
	names := make([]string, 0, len(c.Auxiliary))
	for name := range c.Auxiliary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoints returns the tool servers for a session.
func (c *Config) Endpoints() agent.Endpoints {
	aux := make(map[string]mcpclient.Endpoint, len(c.Auxiliary))
	for name, ep := range c.Auxiliary {
		if !ep.Absent() {
			aux[name] = ep
		}
	}
	return agent.Endpoints{
		Primary:   c.Primary,
		Auxiliary: aux,
		Timeout:   time.Duration(c.ToolTimeout),
	}
}
