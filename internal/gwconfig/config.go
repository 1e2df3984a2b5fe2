// Package gwconfig loads the gateway's startup configuration from an
// optional YAML file with environment-variable expansion.
package gwconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the gateway's full startup configuration. Every field has
// an environment-variable override, applied after the YAML file is
// parsed so a deployment can layer secrets on top of a checked-in file.
type Config struct {
	PipelineID string `yaml:"pipeline_id"`
	Port       int    `yaml:"port"`
	ValvesPath string `yaml:"valves_path"`

	Backend struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"backend"`

	Anthropic struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"anthropic"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the gateway's baked-in defaults, matching the
// defaults registered in internal/valves.RegisterDefaults.
func Default() Config {
	var c Config
	c.PipelineID = "myndy-gateway"
	c.Port = 8080
	c.LogLevel = "info"
	c.Backend.BaseURL = "http://localhost:8420"
	return c
}

// Load reads path (if non-empty and present) as YAML over Default(),
// then applies environment-variable overrides. A missing path is not
// an error: the gateway can run purely off environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("gwconfig: reading %s: %w", path, err)
			}
		} else {
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return Config{}, fmt.Errorf("gwconfig: parsing %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MYNDY_PIPELINE_ID"); v != "" {
		cfg.PipelineID = v
	}
	if v := os.Getenv("MYNDY_GATEWAY_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Port)
	}
	if v := os.Getenv("MYNDY_VALVES_PATH"); v != "" {
		cfg.ValvesPath = v
	}
	if v := os.Getenv("MYNDY_BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("MYNDY_BACKEND_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("MYNDY_ANTHROPIC_API_KEY"); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := os.Getenv("MYNDY_ANTHROPIC_BASE_URL"); v != "" {
		cfg.Anthropic.BaseURL = v
	}
	if v := os.Getenv("MYNDY_ANTHROPIC_MODEL"); v != "" {
		cfg.Anthropic.Model = v
	}
	if v := os.Getenv("MYNDY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
