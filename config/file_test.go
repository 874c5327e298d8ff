package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile_NoFile(t *testing.T) {
	// HOME without a .harvest directory
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfigFile("")
	require.NoError(t, err)
	assert.Nil(t, cfg, "Should return nil when config file doesn't exist")
}

func TestLoadConfigFile_DefaultPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	harvestDir := filepath.Join(tmpDir, ".harvest")
	require.NoError(t, os.MkdirAll(harvestDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(harvestDir, "config.yaml"), []byte("log_level: debug\n"), 0o600))

	cfg, err := LoadConfigFile("")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigFile_ValidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "harvest.yaml")
	configContent := `log_level: warn
crawl:
  seed_url: "https://example.com/forms"
  output: "/tmp/corpus.txt"
  workers: 4
pdfs:
  listing_url: "https://example.com/board"
  dir: "/tmp/pdfs"
  metadata: "/tmp/meta.csv"
  heading_tags: [h2, h3]
  validate: true
fetch:
  page_timeout: 5s
  download_timeout: 1m
  delay: 250ms
  retries: 2
  retry_wait: 1s
  respect_robots: true
  user_agent: "custom/1.0"
catalog:
  dsn: "/tmp/catalog.db"
clean:
  domains: [facebook.com, x.com]
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	cfg, err := LoadConfigFile(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "https://example.com/forms", cfg.Crawl.SeedURL)
	assert.Equal(t, 4, cfg.Crawl.Workers)
	assert.Equal(t, []string{"h2", "h3"}, cfg.PDFs.HeadingTags)
	require.NotNil(t, cfg.PDFs.Validate)
	assert.True(t, *cfg.PDFs.Validate)
	assert.Equal(t, "250ms", cfg.Fetch.Delay)
	require.NotNil(t, cfg.Fetch.Retries)
	assert.Equal(t, 2, *cfg.Fetch.Retries)
	assert.Equal(t, "/tmp/catalog.db", cfg.Catalog.DSN)
	assert.Equal(t, []string{"facebook.com", "x.com"}, cfg.Clean.Domains)
}

func TestLoadConfigFile_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("crawl:\n  workers: [not an int\n"), 0o600))

	cfg, err := LoadConfigFile(configPath)
	assert.Error(t, err, "Should return error for invalid YAML")
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfigFile_PartialConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("pdfs:\n  dir: \"./out\"\n"), 0o600))

	cfg, err := LoadConfigFile(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "./out", cfg.PDFs.Dir)
	assert.Empty(t, cfg.Crawl.SeedURL)
	assert.Nil(t, cfg.Fetch.Retries)
	assert.Nil(t, cfg.PDFs.Validate)
}
