package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/sys/atomicwriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var ErrConfigExists = errors.New("config file already exists")

const header = `# clip2epub configuration.
# Every key can also be set through the environment, e.g.
# CLIP2EPUB_OUTPUT_DIR or CLIP2EPUB_CACHE_BACKEND.
`

// DefaultYAML renders the default settings as a commented YAML document.
func DefaultYAML() ([]byte, error) {
	v := viper.New()
	setDefaults(v)

	body, err := yaml.Marshal(yamlValues(v.AllSettings()))
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	return append([]byte(header), body...), nil
}

// WriteDefault writes the default configuration to path. An existing file is
// only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	data, err := DefaultYAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := atomicwriter.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// yamlValues makes durations human readable ("10s" rather than nanoseconds).
func yamlValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case time.Duration:
			out[k] = val.String()
		case map[string]any:
			out[k] = yamlValues(val)
		default:
			out[k] = val
		}
	}
	return out
}
