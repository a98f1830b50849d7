package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mcpboost/mcpboost/opt"
)

// LoadConfig reads an optimizer config file over the built-in defaults.
// Parsing is strict: unknown fields are errors, so a typo in a key cannot
// silently fall back to a default.
func LoadConfig(path string) (opt.Config, error) {
	cfg := opt.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %q: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// resolveConfig returns the effective config for a command run: the file
// named by --config when given, defaults otherwise.
func resolveConfig() (opt.Config, error) {
	if configPath == "" {
		return opt.DefaultConfig(), nil
	}
	return LoadConfig(configPath)
}
