package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/snowball/pkg/similarity"
	"github.com/thebtf/snowball/pkg/snowball"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir string
}

func (s *ConfigSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.T().Setenv("HOME", s.tempDir)
	for _, key := range []string{
		KeyDistanceFunction, KeyComparison, KeyClusterSize, KeyThreshold,
		KeyExtension, KeySourceTable, KeyShowProgress, KeyLoadConcurrency, KeyIgnore,
	} {
		s.T().Setenv(key, "")
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) writeSettings(name, content string) {
	s.Require().NoError(EnsureDataDir())
	s.Require().NoError(os.WriteFile(filepath.Join(DataDir(), name), []byte(content), 0600))
}

func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal("l2", cfg.DistanceFunction)
	s.Equal("at_least", cfg.Comparison)
	s.Equal(snowball.DefaultClusterSize, cfg.ClusterSize)
	s.Equal(DefaultThreshold, cfg.Threshold)
	s.Equal("json", cfg.Extension)
	s.True(cfg.ShowProgress)
	s.NotEmpty(cfg.WatchIgnore)
}

func (s *ConfigSuite) TestPaths() {
	s.Equal(filepath.Join(s.tempDir, ".snowball"), DataDir())
	s.Contains(SettingsPath(), "settings.json")
	s.Contains(YAMLSettingsPath(), "settings.yaml")
}

func (s *ConfigSuite) TestEnsureAll() {
	s.Require().NoError(EnsureAll())

	info, err := os.Stat(DataDir())
	s.Require().NoError(err)
	s.True(info.IsDir())

	data, err := os.ReadFile(SettingsPath())
	s.Require().NoError(err)
	s.Contains(string(data), KeyDistanceFunction)

	// Existing files are left alone.
	s.Require().NoError(os.WriteFile(SettingsPath(), []byte(`{}`), 0600))
	s.Require().NoError(EnsureSettings())
	data, err = os.ReadFile(SettingsPath())
	s.Require().NoError(err)
	s.Equal(`{}`, string(data))
}

func (s *ConfigSuite) TestLoad_NoFile() {
	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(Default(), cfg)
}

func (s *ConfigSuite) TestLoad_JSON() {
	s.writeSettings("settings.json", `{
  "SNOWBALL_DISTANCE_FUNCTION": "cosine",
  "SNOWBALL_COMPARISON": "directional",
  "SNOWBALL_CLUSTER_SIZE": 5,
  "SNOWBALL_THRESHOLD": 0.9,
  "SNOWBALL_EXTENSION": "yaml",
  "SNOWBALL_SOURCE_TABLE": "embeddings",
  "SNOWBALL_LOAD_CONCURRENCY": 2,
  "SNOWBALL_SHOW_PROGRESS": false,
  "SNOWBALL_WATCH_IGNORE": ["*.tmp"]
}`)

	cfg, err := Load()
	s.Require().NoError(err)

	s.Equal("cosine", cfg.DistanceFunction)
	s.Equal("directional", cfg.Comparison)
	s.Equal(5, cfg.ClusterSize)
	s.Equal(0.9, cfg.Threshold)
	s.Equal("yaml", cfg.Extension)
	s.Equal("embeddings", cfg.SourceTable)
	s.Equal(2, cfg.LoadConcurrency)
	s.False(cfg.ShowProgress)
	s.Equal([]string{"*.tmp"}, cfg.WatchIgnore)
}

func (s *ConfigSuite) TestLoad_YAML() {
	s.writeSettings("settings.yaml", `
SNOWBALL_DISTANCE_FUNCTION: cosine
SNOWBALL_CLUSTER_SIZE: 4
SNOWBALL_THRESHOLD: 0.75
SNOWBALL_SHOW_PROGRESS: false
`)

	cfg, err := Load()
	s.Require().NoError(err)

	s.Equal("cosine", cfg.DistanceFunction)
	s.Equal(4, cfg.ClusterSize)
	s.Equal(0.75, cfg.Threshold)
	s.False(cfg.ShowProgress)
}

func (s *ConfigSuite) TestLoad_JSONWinsOverYAML() {
	s.writeSettings("settings.json", `{"SNOWBALL_CLUSTER_SIZE": 7}`)
	s.writeSettings("settings.yaml", "SNOWBALL_CLUSTER_SIZE: 4\n")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(7, cfg.ClusterSize)
}

func (s *ConfigSuite) TestLoad_InvalidFileFallsBackToDefaults() {
	s.writeSettings("settings.json", `{not json`)

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(Default(), cfg)
}

func (s *ConfigSuite) TestLoad_InvalidValuesIgnored() {
	s.writeSettings("settings.json", `{
  "SNOWBALL_CLUSTER_SIZE": -1,
  "SNOWBALL_DISTANCE_FUNCTION": 3,
  "SNOWBALL_SHOW_PROGRESS": "maybe"
}`)

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(snowball.DefaultClusterSize, cfg.ClusterSize)
	s.Equal("l2", cfg.DistanceFunction)
	s.True(cfg.ShowProgress)
}

func (s *ConfigSuite) TestLoad_EnvOverrides() {
	s.writeSettings("settings.json", `{"SNOWBALL_CLUSTER_SIZE": 7, "SNOWBALL_DISTANCE_FUNCTION": "cosine"}`)
	s.T().Setenv(KeyClusterSize, "9")
	s.T().Setenv(KeyThreshold, "1.25")
	s.T().Setenv(KeyShowProgress, "false")
	s.T().Setenv(KeyIgnore, "*.bak, *.tmp")

	cfg, err := Load()
	s.Require().NoError(err)

	s.Equal(9, cfg.ClusterSize)
	s.Equal("cosine", cfg.DistanceFunction)
	s.Equal(1.25, cfg.Threshold)
	s.False(cfg.ShowProgress)
	s.Equal([]string{"*.bak", "*.tmp"}, cfg.WatchIgnore)
}

func (s *ConfigSuite) TestEngine() {
	cfg := Default()
	cfg.DistanceFunction = "cosine"
	cfg.Comparison = "directional"
	cfg.ClusterSize = 4
	cfg.SourceTable = "embeddings"
	cfg.LoadConcurrency = 3

	engine, err := cfg.Engine()
	s.Require().NoError(err)
	s.Equal(similarity.MetricCosine, engine.DistanceFunction)
	s.Equal(similarity.CompareDirectional, engine.Comparison)
	s.Equal(4, engine.ClusterSize)
	s.Equal("embeddings", engine.SourceTable)
	s.Equal(3, engine.LoadConcurrency)
	s.Equal("json", engine.Extension)
}

func (s *ConfigSuite) TestEngine_Invalid() {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "distance function", mutate: func(c *Config) { c.DistanceFunction = "manhattan" }},
		{name: "comparison", mutate: func(c *Config) { c.Comparison = "sideways" }},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			cfg := Default()
			tt.mutate(cfg)
			_, err := cfg.Engine()
			s.Error(err)
		})
	}
	_, err := (&Config{DistanceFunction: "manhattan"}).Engine()
	s.ErrorIs(err, similarity.ErrInvalidDistanceFunction)
}

func TestSplitTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTrim(" a, ,b ,"))
	assert.Empty(t, splitTrim(""))
}
