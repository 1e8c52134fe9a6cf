package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	// Base model artifact and its family (causal or seq2seq).
	ModelPath   string `json:"model_path" yaml:"model_path" toml:"model_path"`
	ModelFamily string `json:"model_family" yaml:"model_family" toml:"model_family"`
	ModelName   string `json:"model_name" yaml:"model_name" toml:"model_name"`

	// Optional low-rank adapter composed over the base weights.
	AdapterPath   string `json:"adapter_path" yaml:"adapter_path" toml:"adapter_path"`
	AdapterFamily string `json:"adapter_family" yaml:"adapter_family" toml:"adapter_family"`
	MergeAdapter  bool   `json:"merge_adapter" yaml:"merge_adapter" toml:"merge_adapter"`

	// InstructionMode selects the instruction template as the default for
	// requests that omit one; otherwise raw is the default.
	InstructionMode bool `json:"instruction_mode" yaml:"instruction_mode" toml:"instruction_mode"`

	// Backend selects the inference implementation: builtin or llama.
	Backend string `json:"backend" yaml:"backend" toml:"backend"`

	// MaxQueueDepth bounds waiting sessions (0 = unbounded).
	MaxQueueDepth int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	// SessionTimeoutSeconds is the per-session wall clock budget (0 = none).
	SessionTimeoutSeconds int `json:"session_timeout_seconds" yaml:"session_timeout_seconds" toml:"session_timeout_seconds"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
