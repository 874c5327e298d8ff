package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FetchConfig represents the fetch section of the config file. Durations are
// strings in time.ParseDuration format.
type FetchConfig struct {
	PageTimeout     string `yaml:"page_timeout"`
	DownloadTimeout string `yaml:"download_timeout"`
	Delay           string `yaml:"delay"`
	Retries         *int   `yaml:"retries"`
	RetryWait       string `yaml:"retry_wait"`
	RespectRobots   *bool  `yaml:"respect_robots"`
	UserAgent       string `yaml:"user_agent"`
}

// FileConfig represents the structure of ~/.harvest/config.yaml. Every field
// is optional; unset fields keep their defaults.
type FileConfig struct {
	LogLevel string `yaml:"log_level"`
	Crawl    struct {
		SeedURL string `yaml:"seed_url"`
		Output  string `yaml:"output"`
		Workers int    `yaml:"workers"`
	} `yaml:"crawl"`
	PDFs struct {
		ListingURL  string   `yaml:"listing_url"`
		Dir         string   `yaml:"dir"`
		Metadata    string   `yaml:"metadata"`
		HeadingTags []string `yaml:"heading_tags"`
		Validate    *bool    `yaml:"validate"`
	} `yaml:"pdfs"`
	Fetch   FetchConfig `yaml:"fetch"`
	Catalog struct {
		DSN string `yaml:"dsn"`
	} `yaml:"catalog"`
	Clean struct {
		Domains []string `yaml:"domains"`
	} `yaml:"clean"`
}

// DefaultConfigPath returns ~/.harvest/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".harvest", "config.yaml"), nil
}

// LoadConfigFile loads configuration from path, or from DefaultConfigPath
// when path is empty. Returns nil if the file doesn't exist (not an error).
// Returns error if the file exists but cannot be parsed.
func LoadConfigFile(path string) (*FileConfig, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}
