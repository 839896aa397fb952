package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Store        StoreConfig        `koanf:"store"`
	Agent        AgentConfig        `koanf:"agent"`
	Tools        ToolsConfig        `koanf:"tools"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Log          LogConfig          `koanf:"log"`
}

type ServerConfig struct {
	Port int    `koanf:"port"` // default 7420
	Host string `koanf:"host"` // default "127.0.0.1"
}

type StoreConfig struct {
	Type    string        `koanf:"type"`     // "memory" or "bolt"
	DataDir string        `koanf:"data_dir"` // default "~/.relay/data"
	TTL     time.Duration `koanf:"ttl"`      // finished runs are deleted this long after finishing; 0 keeps them
}

type AgentConfig struct {
	Generator       string  `koanf:"generator"`         // "static", "cli" or "anthropic"
	StaticText      string  `koanf:"static_text"`       // reply of the static generator
	ClaudeCLI       string  `koanf:"claude_cli"`        // path to claude binary (default: "claude", resolved via PATH)
	Model           string  `koanf:"model"`             // default "claude-sonnet-4-20250514"
	MaxTokens       int     `koanf:"max_tokens"`        // default 4096
	AnthropicAPIKey string  `koanf:"anthropic_api_key"` // required when generator is "anthropic"
	Temperature     float64 `koanf:"temperature"`       // default 0.7
}

type ToolsConfig struct {
	CacheSize      int           `koanf:"cache_size"`       // resolved tool cache; 0 resolves on every call
	GitHubAPIURL   string        `koanf:"github_api_url"`   // empty keeps github:create_issue mocked
	GitHubToken    string        `koanf:"github_token"`     // sent as a bearer token when set
	HTTPTimeout    time.Duration `koanf:"http_timeout"`     // default 30s
	MaxReviewFiles int           `koanf:"max_review_files"` // default 10
}

type OrchestratorConfig struct {
	MaxAttempts    int           `koanf:"max_attempts"`    // default 1 (no retry)
	InitialBackoff time.Duration `koanf:"initial_backoff"` // default 500ms
	MaxBackoff     time.Duration `koanf:"max_backoff"`     // default 10s
	TaskTimeout    time.Duration `koanf:"task_timeout"`    // 0 means none
}

type LogConfig struct {
	Level  string `koanf:"level"`  // default "info"
	Format string `koanf:"format"` // "json" (default) or "console"
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 7420,
			Host: "127.0.0.1",
		},
		Store: StoreConfig{
			Type:    "memory",
			DataDir: defaultDataDir(),
		},
		Agent: AgentConfig{
			Generator:   "static",
			StaticText:  "Code review completed successfully",
			ClaudeCLI:   "claude",
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Tools: ToolsConfig{
			CacheSize:      64,
			HTTPTimeout:    30 * time.Second,
			MaxReviewFiles: 10,
		},
		Orchestrator: OrchestratorConfig{
			MaxAttempts:    1,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ServerAddress returns the listen address in "host:port" format.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DBPath returns the full path to the BoltDB file (DataDir + "/relay.db").
func (c *Config) DBPath() string {
	return filepath.Join(c.Store.DataDir, "relay.db")
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	switch c.Store.Type {
	case "memory", "bolt":
	default:
		return fmt.Errorf("store.type must be memory or bolt, got %q", c.Store.Type)
	}
	if c.Store.TTL < 0 {
		return fmt.Errorf("store.ttl must not be negative")
	}
	switch c.Agent.Generator {
	case "static", "cli":
	case "anthropic":
		if c.Agent.AnthropicAPIKey == "" {
			return fmt.Errorf("agent.anthropic_api_key is required for the anthropic generator")
		}
	default:
		return fmt.Errorf("agent.generator must be static, cli or anthropic, got %q", c.Agent.Generator)
	}
	if c.Tools.CacheSize < 0 {
		return fmt.Errorf("tools.cache_size must not be negative")
	}
	if c.Tools.HTTPTimeout <= 0 {
		return fmt.Errorf("tools.http_timeout must be positive")
	}
	if c.Orchestrator.MaxAttempts < 1 {
		return fmt.Errorf("orchestrator.max_attempts must be at least 1, got %d", c.Orchestrator.MaxAttempts)
	}
	if c.Orchestrator.TaskTimeout < 0 {
		return fmt.Errorf("orchestrator.task_timeout must not be negative")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// defaultDataDir resolves the default data directory.
// It uses os.UserHomeDir() + "/.relay/data", falling back to "/tmp/relay/data"
// if the home directory cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "relay", "data")
	}
	return filepath.Join(home, ".relay", "data")
}
