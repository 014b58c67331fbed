// Package config loads clip2epub settings from defaults, an optional YAML
// file and CLIP2EPUB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of tunables.
type Config struct {
	OutputDir       string        `mapstructure:"output_dir"`
	DefaultAuthor   string        `mapstructure:"default_author"`
	DefaultLanguage string        `mapstructure:"default_language"`
	DefaultStyle    string        `mapstructure:"default_style"`
	WordsPerChapter int           `mapstructure:"words_per_chapter"`
	SplitChapters   bool          `mapstructure:"split_chapters"`
	ForceTOC        bool          `mapstructure:"force_toc"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	TemplateDirs    []string      `mapstructure:"template_dirs"`
	Cache           CacheConfig   `mapstructure:"cache"`
	Image           ImageConfig   `mapstructure:"image"`
	History         HistoryConfig `mapstructure:"history"`
}

type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Backend    string        `mapstructure:"backend"` // memory or sqlite
	Path       string        `mapstructure:"path"`
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type ImageConfig struct {
	MaxWidth    int `mapstructure:"max_width"`
	JPEGQuality int `mapstructure:"jpeg_quality"`
}

type HistoryConfig struct {
	Limit int `mapstructure:"limit"`
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	envPrefix     = "CLIP2EPUB"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// appDir is where per-user state lives.
func appDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clip2epub"
	}
	return filepath.Join(home, ".clip2epub")
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Documents", "ClipToEpub")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", defaultOutputDir())
	v.SetDefault("default_author", "Unknown Author")
	v.SetDefault("default_language", "en")
	v.SetDefault("default_style", "default")
	v.SetDefault("words_per_chapter", 3000)
	v.SetDefault("split_chapters", true)
	v.SetDefault("force_toc", false)
	v.SetDefault("fetch_timeout", 10*time.Second)
	v.SetDefault("template_dirs", []string{filepath.Join(appDir(), "templates")})
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.path", filepath.Join(appDir(), "clip2epub.db"))
	v.SetDefault("cache.max_entries", 100)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("image.max_width", 1200)
	v.SetDefault("image.jpeg_quality", 85)
	v.SetDefault("history.limit", 100)
}

// SearchPaths lists where Load looks for a config file when none is given.
func SearchPaths() []string {
	return []string{
		"clip2epub.yaml",
		filepath.Join(appDir(), "config.yaml"),
	}
}

// Load reads the configuration. cfgFile, when set, must exist; otherwise the
// first file in SearchPaths is used if present.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				cfgFile = p
				break
			}
		}
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.OutputDir = expandHome(cfg.OutputDir)
	cfg.Cache.Path = expandHome(cfg.Cache.Path)
	for i, d := range cfg.TemplateDirs {
		cfg.TemplateDirs[i] = expandHome(d)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("%w: cache.backend must be %q or %q, got %q", ErrInvalidConfig, BackendMemory, BackendSQLite, c.Cache.Backend)
	}
	if c.WordsPerChapter < 0 {
		return fmt.Errorf("%w: words_per_chapter must not be negative", ErrInvalidConfig)
	}
	if c.Image.JPEGQuality < 0 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("%w: image.jpeg_quality must be between 1 and 100", ErrInvalidConfig)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("%w: fetch_timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
