// Package config loads and saves questloom's YAML configuration. Defaults
// work out of the box; a missing config file is not an error. The Gemini
// API key can always be supplied through QUESTLOOM_API_KEY instead of the
// file, and the env value wins.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// APIKeyEnv overrides the configured generator API key when set.
const APIKeyEnv = "QUESTLOOM_API_KEY"

// GeneratorConfig tunes the narration generator.
type GeneratorConfig struct {
	APIKey          string  `yaml:"api_key,omitempty"`
	Model           string  `yaml:"model"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float32 `yaml:"temperature"`
}

// WindowConfig sizes the token window budget.
type WindowConfig struct {
	Total           int `yaml:"total"`
	Instruction     int `yaml:"instruction"`
	History         int `yaml:"history"`
	ResponseReserve int `yaml:"response_reserve"`
	SafetyMargin    int `yaml:"safety_margin"`
}

// QuestConfig tunes quest setup and storage paths.
type QuestConfig struct {
	DefaultEncounters int    `yaml:"default_encounters"`
	Difficulty        string `yaml:"difficulty"`
	DatabasePath      string `yaml:"database_path"`
	TransitionLogPath string `yaml:"transition_log_path"`
}

// LoggingConfig controls the categorized debug file logger.
type LoggingConfig struct {
	Dir        string          `yaml:"dir"`
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// Config is the full questloom configuration.
type Config struct {
	Generator GeneratorConfig `yaml:"generator"`
	Window    WindowConfig    `yaml:"window"`
	Quest     QuestConfig     `yaml:"quest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Generator: GeneratorConfig{
			Model:           "gemini-2.0-flash",
			MaxOutputTokens: 512,
			Temperature:     0.9,
		},
		Window: WindowConfig{
			Total:           4096,
			Instruction:     256,
			History:         0,
			ResponseReserve: 512,
			SafetyMargin:    128,
		},
		Quest: QuestConfig{
			DefaultEncounters: 8,
			Difficulty:        "normal",
			DatabasePath:      "questloom.db",
			TransitionLogPath: "questloom-turns.jsonl",
		},
		Logging: LoggingConfig{
			Dir:   ".",
			Level: "info",
		},
	}
}

// Load reads the config at path, filling unset fields with defaults and
// applying the API key env override. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	fillDefaults(&cfg)
	applyEnv(&cfg)
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
func (c Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	if key := os.Getenv(APIKeyEnv); key != "" {
		c.Generator.APIKey = key
	}
}

// fillDefaults restores fields the YAML left unset where the zero value is
// never a sensible setting.
func fillDefaults(c *Config) {
	d := Default()
	if c.Generator.Model == "" {
		c.Generator.Model = d.Generator.Model
	}
	if c.Generator.MaxOutputTokens == 0 {
		c.Generator.MaxOutputTokens = d.Generator.MaxOutputTokens
	}
	if c.Window.Total == 0 {
		c.Window.Total = d.Window.Total
	}
	if c.Window.ResponseReserve == 0 {
		c.Window.ResponseReserve = d.Window.ResponseReserve
	}
	if c.Window.SafetyMargin == 0 {
		c.Window.SafetyMargin = d.Window.SafetyMargin
	}
	if c.Quest.DefaultEncounters == 0 {
		c.Quest.DefaultEncounters = d.Quest.DefaultEncounters
	}
	if c.Quest.Difficulty == "" {
		c.Quest.Difficulty = d.Quest.Difficulty
	}
	if c.Quest.DatabasePath == "" {
		c.Quest.DatabasePath = d.Quest.DatabasePath
	}
	if c.Quest.TransitionLogPath == "" {
		c.Quest.TransitionLogPath = d.Quest.TransitionLogPath
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = d.Logging.Dir
	}
}
