package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/tailscale/hujson"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates,
// unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variable templates (before standardizing, since templates are in strings)
	expanded := expandEnvTemplates(string(data))

	std, err := hujson.Standardize([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("standardize jsonc: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a Config with all defaults applied, used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Broker.Socket == "" {
		cfg.Broker.Socket = SocketPath()
	}
	if len(cfg.Broker.Roots) == 0 {
		cfg.Broker.Roots = []string{BasePath()}
	}
	if cfg.Privfs.Elevator == "" {
		cfg.Privfs.Elevator = "su"
	}
	if cfg.Privfs.Timeout == 0 {
		cfg.Privfs.Timeout = Duration(10 * time.Second)
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.UIDMon.SystemDir == "" {
		cfg.UIDMon.SystemDir = "/data/system"
	}
	if cfg.UIDMon.Debounce == 0 {
		cfg.UIDMon.Debounce = Duration(time.Second)
	}
	if cfg.UIDMon.ReconcileCron == "" {
		cfg.UIDMon.ReconcileCron = "*/30 * * * *"
	}
	if cfg.Stages.ScriptTimeout == 0 {
		cfg.Stages.ScriptTimeout = Duration(2 * time.Minute)
	}
}
