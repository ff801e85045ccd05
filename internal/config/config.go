// Package config provides configuration management for snowball.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/snowball/pkg/similarity"
	"github.com/thebtf/snowball/pkg/snowball"
)

const (
	// DefaultThreshold is used by the CLI when -threshold is not given.
	DefaultThreshold = 0.5

	// EnvPrefix prefixes every settings key and environment override.
	EnvPrefix = "SNOWBALL_"
)

// Settings keys. The same names are read from the settings file and the environment.
const (
	KeyDistanceFunction = EnvPrefix + "DISTANCE_FUNCTION"
	KeyComparison       = EnvPrefix + "COMPARISON"
	KeyClusterSize      = EnvPrefix + "CLUSTER_SIZE"
	KeyThreshold        = EnvPrefix + "THRESHOLD"
	KeyExtension        = EnvPrefix + "EXTENSION"
	KeySourceTable      = EnvPrefix + "SOURCE_TABLE"
	KeyShowProgress     = EnvPrefix + "SHOW_PROGRESS"
	KeyLoadConcurrency  = EnvPrefix + "LOAD_CONCURRENCY"
	KeyIgnore           = EnvPrefix + "WATCH_IGNORE"
)

// Config holds the application configuration.
type Config struct {
	DistanceFunction string  `json:"distance_function" yaml:"distance_function"`
	Comparison       string  `json:"comparison" yaml:"comparison"` // "at_least" or "directional"
	ClusterSize      int     `json:"cluster_size" yaml:"cluster_size"`
	Threshold        float64 `json:"threshold" yaml:"threshold"`

	// Source settings
	Extension       string `json:"extension" yaml:"extension"`
	SourceTable     string `json:"source_table" yaml:"source_table"`
	LoadConcurrency int    `json:"load_concurrency" yaml:"load_concurrency"`

	ShowProgress bool `json:"show_progress" yaml:"show_progress"`

	// WatchIgnore lists file name patterns that never trigger a re-run in watch mode.
	WatchIgnore []string `json:"watch_ignore" yaml:"watch_ignore"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (~/.snowball).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".snowball")
}

// SettingsPath returns the JSON settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// YAMLSettingsPath returns the YAML settings file path, read when no JSON file exists.
func YAMLSettingsPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings creates a default settings file if it doesn't exist.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	defaultSettings := `{
  "SNOWBALL_DISTANCE_FUNCTION": "l2",
  "SNOWBALL_CLUSTER_SIZE": 3,
  "SNOWBALL_THRESHOLD": 0.5,
  "SNOWBALL_EXTENSION": "json",
  "SNOWBALL_SHOW_PROGRESS": true
}
`
	return os.WriteFile(path, []byte(defaultSettings), 0600)
}

// EnsureAll ensures all required directories and files exist.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Default returns a Config with default values.
func Default() *Config {
	engine := snowball.DefaultConfig()
	return &Config{
		DistanceFunction: engine.DistanceFunction.String(),
		Comparison:       engine.Comparison.String(),
		ClusterSize:      engine.ClusterSize,
		Threshold:        DefaultThreshold,
		Extension:        engine.Extension,
		ShowProgress:     engine.ShowProgress,
		WatchIgnore:      []string{".*", "*~", "*.swp"},
	}
}

// Load loads configuration from the settings file, merging with defaults,
// then applies SNOWBALL_* environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	settings, err := readSettings()
	if err != nil {
		return nil, err
	}
	cfg.apply(func(key string) (any, bool) {
		v, ok := settings[key]
		return v, ok
	})

	cfg.apply(func(key string) (any, bool) {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil, false
		}
		return v, true
	})

	return cfg, nil
}

// readSettings returns the raw settings map. A missing file yields an empty
// map; a file that does not parse is ignored and defaults apply.
func readSettings() (map[string]any, error) {
	settings := map[string]any{}

	data, err := os.ReadFile(SettingsPath())
	if err == nil {
		if json.Unmarshal(data, &settings) != nil {
			return map[string]any{}, nil
		}
		return settings, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	data, err = os.ReadFile(YAMLSettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}
	if yaml.Unmarshal(data, &settings) != nil {
		return map[string]any{}, nil
	}
	return settings, nil
}

// apply maps settings values onto cfg. Values may be typed (from JSON or
// YAML) or strings (from the environment).
func (c *Config) apply(lookup func(key string) (any, bool)) {
	if v, ok := lookup(KeyDistanceFunction); ok {
		if s := asString(v); s != "" {
			c.DistanceFunction = s
		}
	}
	if v, ok := lookup(KeyComparison); ok {
		if s := asString(v); s != "" {
			c.Comparison = s
		}
	}
	if v, ok := lookup(KeyClusterSize); ok {
		if n, ok := asFloat(v); ok && n > 0 {
			c.ClusterSize = int(n)
		}
	}
	if v, ok := lookup(KeyThreshold); ok {
		if n, ok := asFloat(v); ok {
			c.Threshold = n
		}
	}
	if v, ok := lookup(KeyExtension); ok {
		if s := asString(v); s != "" {
			c.Extension = s
		}
	}
	if v, ok := lookup(KeySourceTable); ok {
		if s := asString(v); s != "" {
			c.SourceTable = s
		}
	}
	if v, ok := lookup(KeyLoadConcurrency); ok {
		if n, ok := asFloat(v); ok && n > 0 {
			c.LoadConcurrency = int(n)
		}
	}
	if v, ok := lookup(KeyShowProgress); ok {
		if b, ok := asBool(v); ok {
			c.ShowProgress = b
		}
	}
	if v, ok := lookup(KeyIgnore); ok {
		switch list := v.(type) {
		case []any:
			patterns := make([]string, 0, len(list))
			for _, p := range list {
				if s := asString(p); s != "" {
					patterns = append(patterns, s)
				}
			}
			c.WatchIgnore = patterns
		case string:
			c.WatchIgnore = splitTrim(list)
		}
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	default:
		return false, false
	}
}

// splitTrim splits a comma-separated string and trims whitespace.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Engine converts the settings into an engine configuration.
// Names are validated here so a bad settings file fails before any data is loaded.
func (c *Config) Engine() (snowball.Config, error) {
	metric, err := similarity.ParseMetric(c.DistanceFunction)
	if err != nil {
		return snowball.Config{}, err
	}
	comparison, err := similarity.ParseComparison(c.Comparison)
	if err != nil {
		return snowball.Config{}, err
	}

	cfg := snowball.DefaultConfig()
	cfg.DistanceFunction = metric
	cfg.Comparison = comparison
	cfg.ClusterSize = c.ClusterSize
	cfg.Extension = c.Extension
	cfg.SourceTable = c.SourceTable
	cfg.LoadConcurrency = c.LoadConcurrency
	cfg.ShowProgress = c.ShowProgress
	return cfg, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
