// Package config loads convo-memory settings from defaults, a YAML file,
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Search    SearchConfig    `yaml:"search"`
	Window    WindowConfig    `yaml:"window"`
	Extract   ExtractConfig   `yaml:"extract"`
	LLM       LLMConfig       `yaml:"llm"`
	CoreFacts CoreFactsConfig `yaml:"core_facts"`
	LogLevel  string          `yaml:"log_level"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
}

type WindowConfig struct {
	RecentTurns     int `yaml:"recent_turns"`
	TriggerTurns    int `yaml:"trigger_turns"`
	MaxSummaryChars int `yaml:"max_summary_chars"`
}

type ExtractConfig struct {
	MaxTurns      int `yaml:"max_turns"`
	MaxCandidates int `yaml:"max_candidates"`
}

type LLMConfig struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"-"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
}

type CoreFactsConfig struct {
	MaxChars      int     `yaml:"max_chars"`
	PerItemChars  int     `yaml:"per_item_chars"`
	MinImportance float64 `yaml:"min_importance"`
}

// Default returns the built-in configuration. Store.Path is left empty and
// resolved by Load once the backend is known.
func Default() *Config {
	return &Config{
		Store:     StoreConfig{Backend: "file"},
		Search:    SearchConfig{DefaultK: 8},
		Window:    WindowConfig{RecentTurns: 10, TriggerTurns: 20},
		Extract:   ExtractConfig{MaxTurns: 6, MaxCandidates: 5},
		LLM:       LLMConfig{Timeout: 30 * time.Second, MaxTokens: 1024},
		CoreFacts: CoreFactsConfig{MaxChars: 1600, PerItemChars: 640, MinImportance: 0.8},
		LogLevel:  "info",
	}
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then .env, then CONVO_MEMORY_* and provider key variables. A missing
// .env is ignored; a missing explicit config file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONVO_MEMORY_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.resolvePath()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})
	if err := yaml.Unmarshal([]byte(resolved), c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	str("CONVO_MEMORY_STORE", &c.Store.Path)
	str("CONVO_MEMORY_BACKEND", &c.Store.Backend)
	str("CONVO_MEMORY_LOG_LEVEL", &c.LogLevel)
	str("CONVO_MEMORY_LLM_PROVIDER", &c.LLM.Provider)
	str("CONVO_MEMORY_LLM_MODEL", &c.LLM.Model)
	str("CONVO_MEMORY_LLM_BASE_URL", &c.LLM.BaseURL)

	if v := os.Getenv("CONVO_MEMORY_LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CONVO_MEMORY_LLM_TIMEOUT: %w", err)
		}
		c.LLM.Timeout = d
	}
	for name, dst := range map[string]*int{
		"CONVO_MEMORY_SEARCH_K":      &c.Search.DefaultK,
		"CONVO_MEMORY_RECENT_TURNS":  &c.Window.RecentTurns,
		"CONVO_MEMORY_TRIGGER_TURNS": &c.Window.TriggerTurns,
	} {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	switch c.LLM.Provider {
	case "anthropic":
		str("ANTHROPIC_API_KEY", &c.LLM.APIKey)
	case "openai":
		str("OPENAI_API_KEY", &c.LLM.APIKey)
	}
	return nil
}

func (c *Config) resolvePath() {
	if c.Store.Path != "" {
		return
	}
	name := "memory.json"
	if c.Store.Backend == "sqlite" {
		name = "memory.db"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		c.Store.Path = name
		return
	}
	c.Store.Path = filepath.Join(home, ".convo-memory", name)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("store.backend %q (valid: file, sqlite)", c.Store.Backend)
	}
	switch c.LLM.Provider {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("llm.provider %q (valid: anthropic, openai, or empty)", c.LLM.Provider)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}
	if c.Window.RecentTurns <= 0 || c.Window.TriggerTurns <= 0 {
		return errors.New("window.recent_turns and window.trigger_turns must be positive")
	}
	if c.Search.DefaultK <= 0 {
		return errors.New("search.default_k must be positive")
	}
	if c.Extract.MaxTurns <= 0 || c.Extract.MaxCandidates <= 0 {
		return errors.New("extract.max_turns and extract.max_candidates must be positive")
	}
	if c.CoreFacts.MinImportance < 0 || c.CoreFacts.MinImportance > 1 {
		return errors.New("core_facts.min_importance must be within [0,1]")
	}
	return nil
}
