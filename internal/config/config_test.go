package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	chdir(t, t.TempDir())
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DefaultAuthor != "Unknown Author" || cfg.DefaultLanguage != "en" || cfg.DefaultStyle != "default" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.WordsPerChapter != 3000 || !cfg.SplitChapters || cfg.ForceTOC {
		t.Errorf("unexpected chapter defaults: %+v", cfg)
	}
	if cfg.FetchTimeout != 10*time.Second || cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("durations = %v / %v", cfg.FetchTimeout, cfg.Cache.TTL)
	}
	if cfg.OutputDir != filepath.Join(home, "Documents", "ClipToEpub") {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
	if cfg.Cache.Backend != BackendMemory || !cfg.Cache.Enabled {
		t.Errorf("cache = %+v", cfg.Cache)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	data := `output_dir: ~/books
default_style: modern
words_per_chapter: 500
fetch_timeout: 3s
template_dirs:
  - ~/styles
cache:
  backend: sqlite
  ttl: 1h
image:
  max_width: 800
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	t.Setenv("CLIP2EPUB_DEFAULT_AUTHOR", "Env Author")
	t.Setenv("CLIP2EPUB_IMAGE_MAX_WIDTH", "640")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.OutputDir != filepath.Join(home, "books") {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
	if cfg.DefaultStyle != "modern" || cfg.WordsPerChapter != 500 || cfg.FetchTimeout != 3*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.TemplateDirs, []string{filepath.Join(home, "styles")}) {
		t.Errorf("TemplateDirs = %v", cfg.TemplateDirs)
	}
	if cfg.Cache.Backend != BackendSQLite || cfg.Cache.TTL != time.Hour {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.DefaultAuthor != "Env Author" {
		t.Errorf("DefaultAuthor = %q, want env value", cfg.DefaultAuthor)
	}
	if cfg.Image.MaxWidth != 640 {
		t.Errorf("Image.MaxWidth = %d, env should win over file", cfg.Image.MaxWidth)
	}
}

func TestLoad_SearchPath(t *testing.T) {
	isolate(t)
	if err := os.WriteFile("clip2epub.yaml", []byte("default_language: ja\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DefaultLanguage != "ja" {
		t.Errorf("DefaultLanguage = %q, want ja from ./clip2epub.yaml", cfg.DefaultLanguage)
	}
}

func TestLoad_Invalid(t *testing.T) {
	isolate(t)
	tests := []struct {
		name string
		data string
	}{
		{"bad backend", "cache:\n  backend: redis\n"},
		{"bad quality", "image:\n  jpeg_quality: 150\n"},
		{"negative words", "words_per_chapter: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
				t.Fatalf("WriteFile() failed: %v", err)
			}
			if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() should fail for a missing explicit config file")
	}
}

func TestWriteDefault(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault() failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "# clip2epub configuration.") {
		t.Errorf("missing header:\n%s", data)
	}
	if !strings.Contains(string(data), "fetch_timeout: 10s") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(written) failed: %v", err)
	}
	if cfg.FetchTimeout != 10*time.Second || cfg.Cache.TTL != 24*time.Hour || cfg.WordsPerChapter != 3000 {
		t.Errorf("written defaults did not round trip: %+v", cfg)
	}

	if err := WriteDefault(path, false); !errors.Is(err, ErrConfigExists) {
		t.Errorf("second WriteDefault() error = %v, want ErrConfigExists", err)
	}
	if err := WriteDefault(path, true); err != nil {
		t.Errorf("forced WriteDefault() failed: %v", err)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
