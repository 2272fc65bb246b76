package ollamacheck

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the well-known config location probed when no
// explicit path is given.
const DefaultConfigPath = "config.json"

type ServerConfig struct {
	Host              string `json:"host" yaml:"host"`
	Port              int    `json:"port" yaml:"port"`
	Model             string `json:"model" yaml:"model"`
	TimeoutSeconds    int    `json:"timeout" yaml:"timeout"`
	MaxRetries        int    `json:"max_retries" yaml:"max_retries"`
	RetryDelaySeconds int    `json:"retry_delay" yaml:"retry_delay"`
}

type BasicCase struct {
	Query       string `json:"query" yaml:"query"`
	StreamQuery string `json:"stream_query,omitempty" yaml:"stream_query,omitempty"`
}

type CasesConfig struct {
	Basic BasicCase `json:"basic" yaml:"basic"`
}

// Config is loaded once at startup and treated as read-only for the rest
// of the run, apart from the command-line query override.
type Config struct {
	Server ServerConfig `json:"server" yaml:"server"`
	Cases  CasesConfig  `json:"test_cases" yaml:"test_cases"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:              "localhost",
			Port:              9621,
			Model:             "lightrag:latest",
			TimeoutSeconds:    30,
			MaxRetries:        3,
			RetryDelaySeconds: 1,
		},
		Cases: CasesConfig{
			Basic: BasicCase{Query: "唐僧有几个徒弟"},
		},
	}
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Server.RetryDelaySeconds) * time.Second
}

// BaseURL returns the server root, e.g. "http://localhost:9621".
func (c Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

// LoadConfig reads the configuration from path, falling back to
// DefaultConfigPath when path is empty. An absent file is not an error:
// the built-in defaults are returned. Malformed content in an existing
// file is fatal. File values override defaults at the leaf level only.
// Paths ending in .yaml or .yml are parsed as YAML, everything else as
// JSON.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return DefaultConfig(), nil
		}
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config %q not found", path)
		}
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	return cfg, nil
}

// WriteDefaultConfig serializes the built-in defaults to path (JSON).
// It refuses to clobber: if a file already exists there, nothing is
// written and false is returned.
func WriteDefaultConfig(path string) (bool, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config %q: %w", path, err)
	}

	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return false, fmt.Errorf("write config %q: %w", path, err)
	}
	return true, nil
}
