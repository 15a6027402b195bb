package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// FeedSource is a single named syndication feed inside a topic registry.
type FeedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Topic binds a recognized subject to its ordered feed list and default tag.
type Topic struct {
	Name  string       `yaml:"name"`
	Tag   string       `yaml:"tag"`
	Feeds []FeedSource `yaml:"feeds"`
}

type AIConfig struct {
	Provider string `yaml:"provider"` // "openai" or "claude"
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

type Config struct {
	ListenAddr   string    `yaml:"listen_addr"`
	PromptFile   string    `yaml:"prompt_file"`
	MaxResults   int       `yaml:"max_results"`
	LookbackDays int       `yaml:"lookback_days"`
	HistoryLimit int       `yaml:"history_limit"`
	Workers      int       `yaml:"workers,omitempty"`
	Retention    string    `yaml:"retention,omitempty"`
	AI           *AIConfig `yaml:"ai,omitempty"`
	Topics       []Topic   `yaml:"topics"`
}

// AIEnabled returns true if AI is configured with a valid API key.
func (c *Config) AIEnabled() bool {
	return c.AI != nil && c.AIKey() != ""
}

// AIKey returns the resolved API key (config or env var).
func (c *Config) AIKey() string {
	if c.AI != nil && c.AI.APIKey != "" {
		return c.AI.APIKey
	}
	return os.Getenv("HRNEWS_AI_KEY")
}

func (c *Config) GetListenAddr() string {
	if c.ListenAddr == "" {
		return ":8080"
	}
	return c.ListenAddr
}

func (c *Config) GetPromptFile() string {
	if c.PromptFile == "" {
		return "prompts.json"
	}
	return c.PromptFile
}

func (c *Config) GetMaxResults() int {
	if c.MaxResults <= 0 {
		return 15
	}
	return c.MaxResults
}

func (c *Config) GetLookbackDays() int {
	if c.LookbackDays <= 0 {
		return 30
	}
	return c.LookbackDays
}

func (c *Config) GetHistoryLimit() int {
	if c.HistoryLimit <= 0 {
		return 10
	}
	return c.HistoryLimit
}

func (c *Config) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

func (c *Config) RetentionDuration() time.Duration {
	if c.Retention == "" {
		return 90 * 24 * time.Hour
	}
	// Support "Nd" day syntax
	if len(c.Retention) > 1 && c.Retention[len(c.Retention)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(c.Retention, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(c.Retention)
	if err != nil {
		return 90 * 24 * time.Hour
	}
	return d
}

// TopicNames returns the registered topic names in registry order.
func (c *Config) TopicNames() []string {
	names := make([]string, 0, len(c.Topics))
	for _, t := range c.Topics {
		names = append(names, t.Name)
	}
	return names
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "hrnews", "config.yaml")
}

func ArchivePath() string {
	return filepath.Join(xdg.CacheHome, "hrnews", "hrnews.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Write defaults to config path on first run
			if err := writeDefaults(path); err != nil {
				// Non-fatal: just use embedded defaults
				return defaults, nil
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(cfg.Topics) == 0 {
		cfg.Topics = defaults.Topics
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	for i, t := range cfg.Topics {
		if t.Name == "" {
			return fmt.Errorf("topic %d: name is required", i)
		}
		if len(t.Feeds) == 0 {
			return fmt.Errorf("topic %q: at least one feed is required", t.Name)
		}
		for _, f := range t.Feeds {
			if f.Name == "" {
				return fmt.Errorf("topic %q: feed name is required", t.Name)
			}
			if f.URL == "" {
				return fmt.Errorf("feed %q: url is required", f.Name)
			}
			u, err := url.Parse(f.URL)
			if err != nil {
				return fmt.Errorf("feed %q: invalid url: %w", f.Name, err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("feed %q: url scheme must be http or https, got %q", f.Name, u.Scheme)
			}
		}
	}
	return nil
}
