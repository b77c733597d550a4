// Package config binds SEFS's daemon settings from flags, environment
// variables, and an optional YAML file, and validates them before the
// engine starts. It is intentionally small: spec.md has no config
// schema of its own, so this is the ambient layer a daemon needs
// regardless, shaped the way the teacher's pkg/userconfig loads its
// own settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Config is the bound, validated runtime configuration for one
// `sefs serve` or `sefs scan` invocation.
type Config struct {
	// Root is the directory SEFS manages.
	Root string `yaml:"root"`
	// Listen is the API server's bind address, e.g. ":8080".
	Listen string `yaml:"listen"`
	// ProviderKind selects the embedding/summary provider: "local" or
	// "remote" (spec.md §4.2).
	ProviderKind string `yaml:"provider"`
	// ProviderHost overrides the remote provider's base URL.
	ProviderHost string `yaml:"provider_host,omitempty"`
	// EmbedModel names the embedding model tag recorded alongside
	// every vector (spec.md §4.3).
	EmbedModel string `yaml:"embed_model,omitempty"`
	// LLMModel names the model used for naming/summarization.
	LLMModel string `yaml:"llm_model,omitempty"`
	// APIKey authenticates the remote provider. It is never read from
	// the YAML file; only SEFS_API_KEY sets it.
	APIKey string `yaml:"-"`
	// LogPath is the daemon's rotating log file path.
	LogPath string `yaml:"log_path,omitempty"`
}

// Default returns a Config with the teacher-style sane defaults: local
// provider, port 8080 on all interfaces, and a log file under the
// user's config directory.
func Default() Config {
	return Config{
		Listen:       ":8080",
		ProviderKind: "local",
		LogPath:      filepath.Join(ConfigDir(), "sefs.log"),
	}
}

// ConfigDir returns SEFS's per-user config directory, falling back to
// the temp directory when the home directory can't be resolved
// (mirrors the teacher's pkg/userconfig path helper).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".sefs-config")
	}
	return filepath.Join(home, ".config", "sefs")
}

// GlobalDBPath is the fixed location of the process-wide settings
// database (spec.md §4.3: "one global settings DB under the user
// config dir").
func GlobalDBPath() string {
	return filepath.Join(ConfigDir(), "global.db")
}

// Load reads an optional YAML config file at path (if it exists),
// layers environment variable overrides, and returns the result
// without validating it. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// no file: defaults + env/flags only.
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SEFS_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("SEFS_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("SEFS_PROVIDER"); v != "" {
		cfg.ProviderKind = v
	}
	if v := os.Getenv("SEFS_PROVIDER_HOST"); v != "" {
		cfg.ProviderHost = v
	}
	if v := os.Getenv("SEFS_EMBED_MODEL"); v != "" {
		cfg.EmbedModel = v
	}
	if v := os.Getenv("SEFS_LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("SEFS_API_KEY"); v != "" {
		cfg.APIKey = v
	}
}

// Validate checks the config is usable, creating Root if it does not
// yet exist (spec.md §6: "non-zero reserved for startup failures...
// root-creation failure").
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("config: root directory is required")
	}
	if err := os.MkdirAll(c.Root, 0o755); err != nil {
		return fmt.Errorf("config: create root %s: %w", c.Root, err)
	}
	if c.ProviderKind != "local" && c.ProviderKind != "remote" {
		return fmt.Errorf("config: provider must be %q or %q, got %q", "local", "remote", c.ProviderKind)
	}
	if c.ProviderKind == "remote" && c.APIKey == "" {
		return errors.New("config: remote provider requires an API key")
	}
	return nil
}
