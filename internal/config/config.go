// Package config loads the continuity engine configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpearleverett/story-continuity/internal/arc"
	"github.com/jpearleverett/story-continuity/internal/thread"
)

// Config holds all engine configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Provider ProviderConfig `yaml:"provider"`
	Threads  ThreadsConfig  `yaml:"threads"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Arc      ArcConfig      `yaml:"arc"`
	Cache    CacheConfig    `yaml:"cache"`
	Prompt   PromptConfig   `yaml:"prompt"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StoreConfig locates the arc database and session files.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	SessionDir   string `yaml:"session_dir"`
}

// ProviderConfig selects and tunes the generation provider.
type ProviderConfig struct {
	Name      string `yaml:"name"` // openai, gemini, offline
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"` // empty picks the provider default
	Timeout   string `yaml:"timeout"`
	MaxOutput int64  `yaml:"max_output_tokens"`
	// Fallback routes failed calls to the offline generator.
	Fallback   bool   `yaml:"fallback"`
	CacheTTL   string `yaml:"cache_ttl"`
	MaxRetries int    `yaml:"max_retries"`
}

// ThreadsConfig tunes extraction, dedupe and the active cap.
type ThreadsConfig struct {
	MaxActive           int     `yaml:"max_active"`
	NormalShare         float64 `yaml:"normal_share"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	RecentLimit         int     `yaml:"recent_limit"`
}

// ArchiveConfig bounds the resolved-thread archive.
type ArchiveConfig struct {
	Retention  int `yaml:"retention_chapters"`
	MaxEntries int `yaml:"max_entries"`
	DescLimit  int `yaml:"description_limit"`
}

// ArcConfig holds the drift thresholds.
type ArcConfig struct {
	Drift arc.DriftConfig `yaml:"drift"`
}

// CacheConfig holds the generation cache-key version counters.
type CacheConfig struct {
	StaticVersion  int `yaml:"static_version"`
	ChapterVersion int `yaml:"chapter_version"`
}

// PromptConfig bounds the dynamic prompt section.
type PromptConfig struct {
	TokenBudget int `yaml:"token_budget"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`  // debug, info, warn, error
	Format      string `yaml:"format"` // json, console
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".story-continuity")
	return &Config{
		Store: StoreConfig{
			DatabasePath: filepath.Join(base, "arcs.db"),
			SessionDir:   filepath.Join(base, "sessions"),
		},
		Provider: ProviderConfig{
			Name:       "offline",
			Timeout:    "180s",
			MaxOutput:  8000,
			Fallback:   true,
			CacheTTL:   "1h",
			MaxRetries: 3,
		},
		Threads: ThreadsConfig{
			MaxActive:           20,
			NormalShare:         0.6,
			SimilarityThreshold: 0.75,
			RecentLimit:         20,
		},
		Archive: ArchiveConfig{
			Retention:  6,
			MaxEntries: 30,
			DescLimit:  80,
		},
		Arc: ArcConfig{Drift: arc.DefaultDriftConfig()},
		Cache: CacheConfig{
			StaticVersion:  3,
			ChapterVersion: 1,
		},
		Prompt: PromptConfig{TokenBudget: 6000},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Provider.APIKey = key
		if c.Provider.Name == "" || c.Provider.Name == "offline" {
			c.Provider.Name = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if c.Provider.Name == "gemini" || c.Provider.APIKey == "" {
			c.Provider.APIKey = key
			c.Provider.Name = "gemini"
		}
	}
	if name := os.Getenv("CONTINUITY_PROVIDER"); name != "" {
		c.Provider.Name = name
	}
	if path := os.Getenv("CONTINUITY_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if dir := os.Getenv("CONTINUITY_SESSIONS"); dir != "" {
		c.Store.SessionDir = dir
	}
}

// ValidProviders lists the supported generation providers.
var ValidProviders = []string{"openai", "gemini", "offline"}

// Validate checks the provider selection and numeric limits.
func (c *Config) Validate() error {
	if err := c.ValidateLimits(); err != nil {
		return err
	}
	valid := false
	for _, p := range ValidProviders {
		if c.Provider.Name == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid provider: %s (valid: %v)", c.Provider.Name, ValidProviders)
	}
	if c.Provider.Name != "offline" && c.Provider.APIKey == "" {
		return fmt.Errorf("provider %s needs an API key (set OPENAI_API_KEY or GEMINI_API_KEY)", c.Provider.Name)
	}
	return nil
}

// ValidateLimits checks the thread and archive limits. Commands that never
// call a provider check only these.
func (c *Config) ValidateLimits() error {
	if c.Threads.MaxActive <= 0 {
		return fmt.Errorf("threads.max_active must be positive")
	}
	if c.Threads.NormalShare < 0 || c.Threads.NormalShare > 1 {
		return fmt.Errorf("threads.normal_share must be within [0, 1]")
	}
	if c.Archive.Retention <= 0 {
		return fmt.Errorf("archive.retention_chapters must be positive")
	}
	if c.Archive.MaxEntries <= 0 {
		return fmt.Errorf("archive.max_entries must be positive")
	}
	if c.Archive.DescLimit < thread.MinArchiveDescLimit {
		return fmt.Errorf("archive.description_limit must be at least %d", thread.MinArchiveDescLimit)
	}
	return nil
}

// GetProviderTimeout returns the per-call provider timeout.
func (c *Config) GetProviderTimeout() time.Duration {
	d, err := time.ParseDuration(c.Provider.Timeout)
	if err != nil {
		return 180 * time.Second
	}
	return d
}

// GetCacheTTL returns the provider context-cache lifetime.
func (c *Config) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Provider.CacheTTL)
	if err != nil {
		return time.Hour
	}
	return d
}
