package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const appName = "tganalytics"

// LLM providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Messaging sources
const (
	SourceMTProto = "mtproto"
	SourcePreview = "preview"
)

// Config holds all application configuration
type Config struct {
	Version   int             `toml:"version"`
	Telegram  TelegramConfig  `toml:"telegram"`
	Bot       BotConfig       `toml:"bot"`
	Database  DatabaseConfig  `toml:"database"`
	Collector CollectorConfig `toml:"collector"`
	Analysis  AnalysisConfig  `toml:"analysis"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	API       APIConfig       `toml:"api"`
	Log       LogConfig       `toml:"log"`
}

type TelegramConfig struct {
	APIID          int    `toml:"api_id"`
	APIHash        string `toml:"api_hash"`
	Phone          string `toml:"phone"`
	Password       string `toml:"password"`
	SessionPath    string `toml:"session_path"`
	Source         string `toml:"source"`
	Headless       bool   `toml:"headless"`
	DefaultChannel string `toml:"default_channel"`
}

type BotConfig struct {
	Token string `toml:"token"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type CollectorConfig struct {
	PostsLimit    int `toml:"posts_limit"`
	PageSize      int `toml:"page_size"`
	CommentPosts  int `toml:"comment_posts"`
	CommentsLimit int `toml:"comments_limit"`
	Concurrency   int `toml:"concurrency"`
}

type AnalysisConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"api_key"`
	Model           string `toml:"model"`
	PostsLimit      int    `toml:"posts_limit"`
	CommentsPerPost int    `toml:"comments_per_post"`
	PlanDays        int    `toml:"plan_days"`
	CacheExchanges  bool   `toml:"cache_exchanges"`
}

type ScheduleConfig struct {
	Enabled     bool     `toml:"enabled"`
	Channels    []string `toml:"channels"`
	CollectCron string   `toml:"collect_cron"`
	AnalyzeAt   string   `toml:"analyze_at"`
	Timezone    string   `toml:"timezone"`
}

type APIConfig struct {
	Host   string `toml:"host"`
	Port   int    `toml:"port"`
	Prefix string `toml:"prefix"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Addr returns host:port for the REST listener
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Telegram: TelegramConfig{
			SessionPath: "",
			Source:      SourceMTProto,
			Headless:    true,
		},
		Database: DatabaseConfig{},
		Collector: CollectorConfig{
			PostsLimit:    100,
			PageSize:      100,
			CommentPosts:  10,
			CommentsLimit: 50,
			Concurrency:   4,
		},
		Analysis: AnalysisConfig{
			Provider:        ProviderOpenAI,
			Model:           DefaultModel(ProviderOpenAI),
			PostsLimit:      50,
			CommentsPerPost: 10,
			PlanDays:        7,
		},
		Schedule: ScheduleConfig{
			Channels:    []string{},
			CollectCron: "0 */6 * * *",
			AnalyzeAt:   "09:00",
			Timezone:    "UTC",
		},
		API: APIConfig{
			Host:   "0.0.0.0",
			Port:   8000,
			Prefix: "/api/v1",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultModel returns the model used when none is configured
func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderGemini:
		return "gemini-2.5-flash"
	default:
		return "gpt-4o"
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from path (the default location when empty), writing
// the defaults on first run, then applies .env and environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := cfg.SaveTo(path); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.fillPaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and deploy settings from the environment
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a number: %w", key, err)
		}
		*dst = n
		return nil
	}

	if err := num("TG_API_ID", &c.Telegram.APIID); err != nil {
		return err
	}
	str("TG_API_HASH", &c.Telegram.APIHash)
	str("TG_PHONE", &c.Telegram.Phone)
	str("TG_PASSWORD", &c.Telegram.Password)
	str("TG_BOT_TOKEN", &c.Bot.Token)
	str("CHANNEL_USERNAME", &c.Telegram.DefaultChannel)
	str("DATABASE_PATH", &c.Database.Path)
	str("API_HOST", &c.API.Host)
	if err := num("API_PORT", &c.API.Port); err != nil {
		return err
	}
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("LLM_PROVIDER"); ok && v != "" && v != c.Analysis.Provider {
		c.Analysis.Provider = strings.ToLower(v)
		c.Analysis.Model = DefaultModel(c.Analysis.Provider)
	}
	switch c.Analysis.Provider {
	case ProviderOpenAI:
		str("OPENAI_API_KEY", &c.Analysis.APIKey)
	case ProviderAnthropic:
		str("ANTHROPIC_API_KEY", &c.Analysis.APIKey)
	case ProviderGemini:
		str("GEMINI_API_KEY", &c.Analysis.APIKey)
	}
	return nil
}

func (c *Config) fillPaths() error {
	if c.Database.Path != "" && c.Telegram.SessionPath != "" {
		return nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(dir, "tganalytics.db")
	}
	if c.Telegram.SessionPath == "" {
		c.Telegram.SessionPath = filepath.Join(dir, "session.json")
	}
	return nil
}

// Requirement names what a run mode needs from the config
type Requirement int

const (
	RequireCollector Requirement = iota
	RequireBot
	RequireLLM
)

// Validate checks that the settings needed by the given requirements are present
func (c *Config) Validate(reqs ...Requirement) error {
	var errs []error
	for _, r := range reqs {
		switch r {
		case RequireCollector:
			switch c.Telegram.Source {
			case SourceMTProto:
				if c.Telegram.APIID == 0 || c.Telegram.APIHash == "" {
					errs = append(errs, errors.New("telegram.api_id and telegram.api_hash are required"))
				}
			case SourcePreview:
			default:
				errs = append(errs, fmt.Errorf("unknown telegram.source %q", c.Telegram.Source))
			}
		case RequireBot:
			if c.Bot.Token == "" {
				errs = append(errs, errors.New("bot.token is required"))
			}
		case RequireLLM:
			switch c.Analysis.Provider {
			case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
			default:
				errs = append(errs, fmt.Errorf("unknown analysis.provider %q", c.Analysis.Provider))
			}
			if c.Analysis.APIKey == "" {
				errs = append(errs, errors.New("analysis.api_key is required"))
			}
		}
	}
	return errors.Join(errs...)
}

// SaveTo writes config to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
