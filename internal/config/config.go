// Package config loads and validates the daemon configuration from a
// JSON file, with NAIA_-prefixed environment variable overrides and
// optional hot reload on file change.
package config

import (
	"fmt"
	"strings"

	"github.com/arief/naia/internal/logger"
)

// Config is the root daemon configuration.
type Config struct {
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`
	Models    ModelsConfig    `json:"models" mapstructure:"models"`
	Agent     AgentConfig     `json:"agent" mapstructure:"agent"`
	Session   SessionConfig   `json:"session" mapstructure:"session"`
	Metrics   MetricsConfig   `json:"metrics" mapstructure:"metrics"`
	Logging   logger.Config   `json:"logging" mapstructure:"logging"`
	DataDir   string          `json:"data_dir" mapstructure:"data_dir"`
}

// ProvidersConfig holds backend credentials and endpoints.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `json:"openai" mapstructure:"openai"`
	Anthropic ProviderConfig `json:"anthropic" mapstructure:"anthropic"`
}

// ProviderConfig is one backend's connection settings.
type ProviderConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

// ModelsConfig names the models the router chooses between and which
// models may receive tool definitions.
type ModelsConfig struct {
	Default     string   `json:"default" mapstructure:"default"`
	Reasoning   string   `json:"reasoning" mapstructure:"reasoning"`
	Tooling     string   `json:"tooling" mapstructure:"tooling"`
	ToolSupport []string `json:"tool_support" mapstructure:"tool_support"`
}

// SupportsTools reports whether model may be sent tool definitions.
// An empty list means every model supports them.
func (m ModelsConfig) SupportsTools(model string) bool {
	if len(m.ToolSupport) == 0 {
		return true
	}
	for _, entry := range m.ToolSupport {
		if entry == model {
			return true
		}
		if strings.HasSuffix(entry, "*") && strings.HasPrefix(model, strings.TrimSuffix(entry, "*")) {
			return true
		}
	}
	return false
}

// AgentConfig tunes the conversation loop.
type AgentConfig struct {
	MaxTurns     int    `json:"max_turns" mapstructure:"max_turns"`
	SystemPrompt string `json:"system_prompt" mapstructure:"system_prompt"`
	ToolTimeout  int    `json:"tool_timeout" mapstructure:"tool_timeout"` // seconds
}

// SessionConfig tunes session retention.
type SessionConfig struct {
	CleanupSchedule string `json:"cleanup_schedule" mapstructure:"cleanup_schedule"`
	MaxIdleDays     int    `json:"max_idle_days" mapstructure:"max_idle_days"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			Default:   "gpt-4o-mini",
			Reasoning: "gpt-4o-mini",
			Tooling:   "gpt-4o-mini",
		},
		Agent: AgentConfig{
			MaxTurns:    8,
			ToolTimeout: 60,
		},
		Session: SessionConfig{
			CleanupSchedule: "0 * * * *",
			MaxIdleDays:     7,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
		Logging: logger.DefaultConfig(),
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Models.Default == "" {
		return fmt.Errorf("models.default must be set")
	}
	if c.Models.Reasoning == "" {
		return fmt.Errorf("models.reasoning must be set")
	}
	if c.Models.Tooling == "" {
		return fmt.Errorf("models.tooling must be set")
	}
	if c.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent.max_turns must be positive, got %d", c.Agent.MaxTurns)
	}
	if c.Agent.ToolTimeout < 0 {
		return fmt.Errorf("agent.tool_timeout must not be negative, got %d", c.Agent.ToolTimeout)
	}
	if c.Session.MaxIdleDays <= 0 {
		return fmt.Errorf("session.max_idle_days must be positive, got %d", c.Session.MaxIdleDays)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	return nil
}
