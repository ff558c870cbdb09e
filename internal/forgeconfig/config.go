// Package forgeconfig loads forge's configuration from a TOML file and/or
// environment variables, per spec.md §6. The loader shape (defaults, then
// file, then env overrides win) is grounded on
// emergent-company-specmcp's internal/config/config.go, the one pack member
// that actually depends on github.com/BurntSushi/toml.
package forgeconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/cowork-forge/forge/internal/forgeerr"
)

// LLMConfig holds the required LLM endpoint settings (spec.md §6).
type LLMConfig struct {
	APIBaseURL string `toml:"api_base_url"`
	APIKey     string `toml:"api_key"`
	ModelName  string `toml:"model_name"`
}

// EmbeddingConfig is optional; if APIBaseURL is empty, embedding features
// are disabled (spec.md §6).
type EmbeddingConfig struct {
	APIBaseURL string `toml:"api_base_url"`
	APIKey     string `toml:"api_key"`
	ModelName  string `toml:"model_name"`
}

// Enabled reports whether embedding config was supplied.
func (e EmbeddingConfig) Enabled() bool { return e.APIBaseURL != "" }

// CodingAgentConfig wires an optional external coding agent (spec.md §6).
type CodingAgentConfig struct {
	Enabled   bool     `toml:"enabled"`
	AgentType string   `toml:"agent_type"`
	Command   string   `toml:"command"`
	Args      []string `toml:"args"`
	Transport string   `toml:"transport"`
}

// Config is the top-level configuration surface (spec.md §6).
type Config struct {
	LLM          LLMConfig         `toml:"llm"`
	Embedding    EmbeddingConfig   `toml:"embedding"`
	CodingAgent  CodingAgentConfig `toml:"coding_agent"`
}

func defaults() *Config {
	return &Config{
		CodingAgent: CodingAgentConfig{
			Enabled:   false,
			Transport: "stdio",
		},
	}
}

// Load reads configuration from configPath (if non-empty), falling back to
// ./config.toml, then an OS-appropriate app-config dir
// (os.UserConfigDir()/forge/config.toml), then applies environment
// overrides, and finally validates required fields.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	path := resolveConfigPath(configPath)
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, forgeerr.Wrap(forgeerr.Serialize, fmt.Sprintf("parsing config file %s", path), err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("config.toml"); err == nil {
		return "config.toml"
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(dir, "forge", "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	envOverride("FORGE_LLM_API_BASE_URL", &c.LLM.APIBaseURL)
	envOverride("FORGE_LLM_API_KEY", &c.LLM.APIKey)
	envOverride("FORGE_LLM_MODEL_NAME", &c.LLM.ModelName)

	envOverride("FORGE_EMBEDDING_API_BASE_URL", &c.Embedding.APIBaseURL)
	envOverride("FORGE_EMBEDDING_API_KEY", &c.Embedding.APIKey)
	envOverride("FORGE_EMBEDDING_MODEL_NAME", &c.Embedding.ModelName)

	envOverride("FORGE_CODING_AGENT_AGENT_TYPE", &c.CodingAgent.AgentType)
	envOverride("FORGE_CODING_AGENT_COMMAND", &c.CodingAgent.Command)
	envOverride("FORGE_CODING_AGENT_TRANSPORT", &c.CodingAgent.Transport)

	if v := os.Getenv("FORGE_CODING_AGENT_ENABLED"); v != "" {
		c.CodingAgent.Enabled = v == "true" || v == "1"
	}
}

// Validate checks the required fields from spec.md §6 are present.
func (c *Config) Validate() error {
	if c.LLM.APIBaseURL == "" {
		return forgeerr.New(forgeerr.ConfigMissing, "llm.api_base_url is required")
	}
	if c.LLM.APIKey == "" {
		return forgeerr.New(forgeerr.ConfigMissing, "llm.api_key is required")
	}
	if c.LLM.ModelName == "" {
		return forgeerr.New(forgeerr.ConfigMissing, "llm.model_name is required")
	}
	if c.CodingAgent.Enabled && c.CodingAgent.Command == "" {
		return forgeerr.New(forgeerr.ConfigMissing, "coding_agent.command is required when coding_agent.enabled is true")
	}
	return nil
}

func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
