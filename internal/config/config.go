// Package config loads the metaloom.yaml tuning file. Secrets (Discord
// token, etc.) stay in the environment; the YAML file only carries knobs
// worth editing by hand.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avint/metaloom/internal/meta"
)

// Ollama holds local LLM server settings
type Ollama struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// Config is the full daemon configuration
type Config struct {
	Engine meta.Config `yaml:"engine"`
	Ollama Ollama      `yaml:"ollama"`

	// TickInterval is how often the scheduler re-checks the cycle guards,
	// in minutes. The guards themselves gate actual work.
	TickIntervalMinutes int `yaml:"tick_interval_minutes"`
}

// Default returns a config with all defaults applied
func Default() Config {
	cfg := Config{}
	cfg.apply()
	return cfg
}

func (c *Config) apply() {
	c.Engine.Normalize()
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = "llama3.2"
	}
	if c.TickIntervalMinutes == 0 {
		c.TickIntervalMinutes = 1
	}
}

// Load reads a YAML config file. A missing file is not an error: defaults
// apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.apply()
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.apply()
	return cfg, nil
}
